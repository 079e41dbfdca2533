package ldapline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPoolGetPutReuse(t *testing.T) {
	srv := startDirectory(t)
	pool, err := NewPool(PoolConfig{Conn: Config{URL: srv.URL()}})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Close()

	conn, err := pool.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := pool.Stats(); got.Created != 1 || got.Active != 1 {
		t.Errorf("stats after first Get = %+v", got)
	}
	pool.Put(conn)
	if got := pool.Stats(); got.Idle != 1 || got.Active != 0 {
		t.Errorf("stats after Put = %+v", got)
	}

	again, err := pool.Get(context.Background())
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if again != conn {
		t.Error("second Get did not reuse the idle session")
	}
	if got := pool.Stats(); got.Created != 1 {
		t.Errorf("Created = %d after reuse, want 1", got.Created)
	}
	pool.Put(again)
}

func TestPoolDropsStaleIdle(t *testing.T) {
	srv := startDirectory(t)
	pool, err := NewPool(PoolConfig{
		Conn:        Config{URL: srv.URL()},
		MaxIdleTime: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Close()

	conn, err := pool.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	pool.Put(conn)
	time.Sleep(10 * time.Millisecond)

	again, err := pool.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() after idle expiry error = %v", err)
	}
	if again == conn {
		t.Error("Get reused a session past its idle limit")
	}
	if !conn.Closed() {
		t.Error("stale idle session was not closed")
	}
	pool.Put(again)
}

func TestPoolDropsClosedOnPut(t *testing.T) {
	srv := startDirectory(t)
	pool, err := NewPool(PoolConfig{Conn: Config{URL: srv.URL()}})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Close()

	conn, err := pool.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	conn.Close()
	pool.Put(conn)
	if got := pool.Stats().Idle; got != 0 {
		t.Errorf("Idle = %d after returning a closed session, want 0", got)
	}
}

func TestPoolWith(t *testing.T) {
	srv := startDirectory(t)
	pool, err := NewPool(PoolConfig{Conn: Config{URL: srv.URL()}})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Close()

	var seen int
	err = pool.With(context.Background(), func(c *Conn) error {
		entries, err := c.SearchAll(&SearchRequest{
			Base:   peopleBase,
			Scope:  ScopeSubtree,
			Filter: "(objectClass=person)",
		})
		seen = len(entries)
		return err
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	if seen != 5 {
		t.Errorf("entries inside With = %d, want 5", seen)
	}
	if got := pool.Stats(); got.Idle != 1 || got.Active != 0 {
		t.Errorf("stats after With = %+v", got)
	}
}

func TestPoolClosed(t *testing.T) {
	srv := startDirectory(t)
	pool, err := NewPool(PoolConfig{Conn: Config{URL: srv.URL()}})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	conn, err := pool.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	pool.Put(conn)

	if err := pool.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !conn.Closed() {
		t.Error("idle session survived pool Close")
	}
	if _, err := pool.Get(context.Background()); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Get() on closed pool = %v, want ErrConnClosed", err)
	}
	if err := pool.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestPoolPutAfterClose(t *testing.T) {
	srv := startDirectory(t)
	pool, err := NewPool(PoolConfig{Conn: Config{URL: srv.URL()}})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	conn, err := pool.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if err := pool.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// The session was handed out when the pool closed; returning it must
	// discard it rather than touch the closed idle channel.
	pool.Put(conn)
	if !conn.Closed() {
		t.Error("session returned after pool Close was not closed")
	}
	if got := pool.Stats().Idle; got != 0 {
		t.Errorf("Idle = %d after late Put, want 0", got)
	}
}

func TestNewPoolValidation(t *testing.T) {
	srv := startDirectory(t)
	tests := []struct {
		name string
		cfg  PoolConfig
	}{
		{"bad URL", PoolConfig{Conn: Config{URL: "http://x"}}},
		{"too many conns", PoolConfig{Conn: Config{URL: srv.URL()}, MaxConns: maxPoolConns + 1}},
		{"backoff factor below one", PoolConfig{Conn: Config{URL: srv.URL()}, BackoffFactor: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPool(tt.cfg); err == nil {
				t.Error("NewPool() error = nil, want error")
			}
		})
	}
}
