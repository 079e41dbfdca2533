package ldapline

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestConfigNormalizeDefaults(t *testing.T) {
	cfg := Config{URL: "ldap://ds.example.com"}
	u, err := cfg.normalize()
	if err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if cfg.Mechanism != MechSimple {
		t.Errorf("Mechanism = %q, want SIMPLE", cfg.Mechanism)
	}
	if cfg.DialTimeout != 30*time.Second {
		t.Errorf("DialTimeout = %v, want 30s", cfg.DialTimeout)
	}
	if u.Address() != "ds.example.com:389" {
		t.Errorf("Address() = %q", u.Address())
	}
}

func TestConfigNormalizeFoldsURLDefaults(t *testing.T) {
	cfg := Config{URL: "ldap://ds.example.com/ou=people,dc=example,dc=com?uid?one?(uid=*)"}
	if _, err := cfg.normalize(); err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if cfg.BaseDN != "ou=people,dc=example,dc=com" {
		t.Errorf("BaseDN = %q", cfg.BaseDN)
	}
	if cfg.Scope != ScopeOneLevel {
		t.Errorf("Scope = %v, want one", cfg.Scope)
	}
	if cfg.Filter != "(uid=*)" {
		t.Errorf("Filter = %q", cfg.Filter)
	}
	if !reflect.DeepEqual(cfg.Attributes, []string{"uid"}) {
		t.Errorf("Attributes = %v", cfg.Attributes)
	}
}

func TestConfigNormalizeKeepsExplicitOverURL(t *testing.T) {
	cfg := Config{
		URL:    "ldap://ds.example.com/ou=people,dc=example,dc=com??one",
		BaseDN: "ou=groups,dc=example,dc=com",
		Scope:  ScopeSubtree,
	}
	if _, err := cfg.normalize(); err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if cfg.BaseDN != "ou=groups,dc=example,dc=com" {
		t.Errorf("BaseDN = %q, explicit value should win over the URL", cfg.BaseDN)
	}
	if cfg.Scope != ScopeSubtree {
		t.Errorf("Scope = %v, explicit value should win over the URL", cfg.Scope)
	}
}

func TestConfigNormalizeMechanismCase(t *testing.T) {
	cfg := Config{URL: "ldap://ds.example.com", Mechanism: "simple"}
	if _, err := cfg.normalize(); err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if cfg.Mechanism != MechSimple {
		t.Errorf("Mechanism = %q, want upper-cased SIMPLE", cfg.Mechanism)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anonymous simple", Config{Mechanism: MechSimple}, false},
		{"authenticated simple", Config{Mechanism: MechSimple, BindDN: "cn=admin", Password: "s3cret"}, false},
		{"password without DN", Config{Mechanism: MechSimple, Password: "s3cret"}, true},
		{"SASL creds on simple", Config{Mechanism: MechSimple, AuthcID: "user"}, true},
		{"gssapi with authcid", Config{Mechanism: MechGSSAPI, AuthcID: "user@EXAMPLE.COM"}, false},
		{"gssapi with ccache", Config{Mechanism: MechGSSAPI, KerberosCCache: "/tmp/krb5cc_0"}, false},
		{"gssapi without identity", Config{Mechanism: MechGSSAPI}, true},
		{"gssapi with bind DN", Config{Mechanism: MechGSSAPI, AuthcID: "u", BindDN: "cn=x"}, true},
		{"external", Config{Mechanism: MechExternal}, false},
		{"external with password", Config{Mechanism: MechExternal, Password: "x"}, true},
		{"unknown mechanism", Config{Mechanism: "DIGEST-MD5"}, true},
		{"negative page size", Config{Mechanism: MechSimple, PageSize: -1}, true},
		{"empty sort attribute", Config{Mechanism: MechSimple, SortKeys: []SortKey{{}}}, true},
		{"valid sort keys", Config{Mechanism: MechSimple, SortKeys: []SortKey{{Attribute: "sn", Reverse: true}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var e *Error
				if !errors.As(err, &e) || e.Kind != KindUsage {
					t.Errorf("validate() error kind = %v, want usage", err)
				}
			}
		})
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in   string
		want Scope
		ok   bool
	}{
		{"base", ScopeBase, true},
		{"one", ScopeOneLevel, true},
		{"onelevel", ScopeOneLevel, true},
		{"sub", ScopeSubtree, true},
		{"SUB", ScopeSubtree, true},
		{"tree", ScopeUnset, false},
		{"", ScopeUnset, false},
	}
	for _, tt := range tests {
		got, ok := ParseScope(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseScope(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
