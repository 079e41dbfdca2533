package ldapline

import (
	"errors"
	"testing"
	"time"

	"github.com/ldapline/ldapline/internal/ldaptest"
)

const (
	testBase   = "dc=example,dc=com"
	peopleBase = "ou=people,dc=example,dc=com"
)

func person(uid, sn, mail string) *ldaptest.Entry {
	return &ldaptest.Entry{
		DN: "uid=" + uid + "," + peopleBase,
		Attributes: map[string][]string{
			"objectClass": {"person", "inetOrgPerson"},
			"uid":         {uid},
			"sn":          {sn},
			"mail":        {mail},
		},
	}
}

func startDirectory(t *testing.T) *ldaptest.Server {
	t.Helper()
	srv, err := ldaptest.Start(
		&ldaptest.Entry{DN: testBase, Attributes: map[string][]string{"objectClass": {"domain"}}},
		&ldaptest.Entry{DN: peopleBase, Attributes: map[string][]string{"objectClass": {"organizationalUnit"}}},
		person("amy", "Adams", "amy@example.com"),
		person("bob", "Baker", "bob@example.com"),
		person("carol", "Clark", "carol@example.com"),
		person("dave", "Davis", "dave@example.com"),
		person("erin", "Evans", "erin@example.com"),
	)
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func mustConnect(t *testing.T, cfg Config) *Conn {
	t.Helper()
	conn, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnectAndClose(t *testing.T) {
	srv := startDirectory(t)
	conn := mustConnect(t, Config{URL: srv.URL()})

	if conn.Pending() != 0 {
		t.Errorf("Pending() = %d after connect, want 0", conn.Pending())
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !conn.Closed() {
		t.Error("Closed() = false after Close")
	}
	// Closing again is a no-op.
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	srv := startDirectory(t)
	conn := mustConnect(t, Config{URL: srv.URL()})
	conn.Close()

	if _, err := conn.Search(&SearchRequest{Base: testBase, Scope: ScopeSubtree}); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Search() after close = %v, want ErrConnClosed", err)
	}
	if err := conn.Delete("cn=x," + testBase); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Delete() after close = %v, want ErrConnClosed", err)
	}
}

func TestCloseAbandonsPendingSearches(t *testing.T) {
	srv := startDirectory(t)
	srv.SearchDelay = 200 * time.Millisecond
	conn := mustConnect(t, Config{URL: srv.URL(), Async: true})

	op, err := conn.Search(&SearchRequest{Base: peopleBase, Scope: ScopeSubtree})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if conn.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", conn.Pending())
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if conn.Pending() != 0 {
		t.Errorf("Pending() = %d after close, want 0", conn.Pending())
	}
	_ = op
}

func TestBindInvalidCredentials(t *testing.T) {
	srv := startDirectory(t)
	srv.SetCredentials("cn=admin,"+testBase, "secret")

	_, err := Connect(Config{URL: srv.URL(), BindDN: "cn=admin," + testBase, Password: "wrong"})
	if err == nil {
		t.Fatal("Connect() with bad password: error = nil")
	}
	if !IsResultCode(err, 49) {
		t.Errorf("error = %v, want invalid credentials result", err)
	}
}

func TestWhoAmIAnonymous(t *testing.T) {
	srv := startDirectory(t)
	conn := mustConnect(t, Config{URL: srv.URL()})

	identity, err := conn.WhoAmI()
	if err != nil {
		t.Fatalf("WhoAmI() error = %v", err)
	}
	if identity != "anonym" {
		t.Errorf("WhoAmI() = %q, want anonym", identity)
	}
}

func TestWhoAmIBound(t *testing.T) {
	srv := startDirectory(t)
	srv.SetCredentials("cn=admin,"+testBase, "secret")
	conn := mustConnect(t, Config{
		URL:      srv.URL(),
		BindDN:   "cn=admin," + testBase,
		Password: "secret",
	})

	identity, err := conn.WhoAmI()
	if err != nil {
		t.Fatalf("WhoAmI() error = %v", err)
	}
	if want := "dn:cn=admin," + testBase; identity != want {
		t.Errorf("WhoAmI() = %q, want %q", identity, want)
	}
}

func TestResultUnknownID(t *testing.T) {
	srv := startDirectory(t)
	conn := mustConnect(t, Config{URL: srv.URL()})

	_, err := conn.Result(42)
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindUsage {
		t.Fatalf("Result(42) error = %v, want usage error", err)
	}
}
