package ldapline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creasty/defaults"
)

// PoolConfig sizes and tunes a Pool. Zero values take the struct defaults.
type PoolConfig struct {
	// Conn is the session config every pooled connection is built from.
	Conn Config

	MaxConns    int           `default:"8"`
	MaxIdleTime time.Duration `default:"5m"`

	// Retry policy for establishing connections.
	MaxRetries     int           `default:"2"`
	InitialBackoff time.Duration `default:"250ms"`
	MaxBackoff     time.Duration `default:"5s"`
	BackoffFactor  float64       `default:"2.0"`
}

// maxPoolConns caps the pool size to keep a misconfigured client from
// exhausting server-side connection limits.
const maxPoolConns = 100

// PoolStats is a snapshot of pool activity.
type PoolStats struct {
	Idle    int
	Active  int64
	Created int64
	Errors  int64
	Uptime  time.Duration
}

type idleConn struct {
	conn     *Conn
	lastUsed time.Time
}

// Pool keeps a set of bound sessions ready for reuse. Get hands one out,
// Put returns it; connections past their idle limit are dropped instead
// of reused.
type Pool struct {
	cfg   PoolConfig
	idle  chan idleConn
	start time.Time

	mu     sync.RWMutex
	closed bool

	active  atomic.Int64
	created atomic.Int64
	errors  atomic.Int64
}

// NewPool validates the config and builds an empty pool. Connections are
// dialed lazily by Get.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if _, err := cfg.Conn.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Conn.validate(); err != nil {
		return nil, err
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, usageError("pool", "apply pool defaults: %v", err)
	}
	if cfg.MaxConns < 1 || cfg.MaxConns > maxPoolConns {
		return nil, usageError("pool", "MaxConns must be between 1 and %d, got %d", maxPoolConns, cfg.MaxConns)
	}
	if cfg.BackoffFactor < 1 {
		return nil, usageError("pool", "BackoffFactor must be at least 1, got %v", cfg.BackoffFactor)
	}
	return &Pool{
		cfg:   cfg,
		idle:  make(chan idleConn, cfg.MaxConns),
		start: time.Now(),
	}, nil
}

// Get returns a ready session, reusing an idle one when available. The
// context bounds the retry loop for a fresh dial.
func (p *Pool) Get(ctx context.Context) (*Conn, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, closedError("pool-get")
	}

	for {
		select {
		case ic := <-p.idle:
			// A zero value means the channel was closed under us.
			if ic.conn == nil {
				return nil, closedError("pool-get")
			}
			if time.Since(ic.lastUsed) > p.cfg.MaxIdleTime || ic.conn.Closed() {
				ic.conn.Close()
				continue
			}
			p.active.Add(1)
			return ic.conn, nil
		default:
			return p.dial(ctx)
		}
	}
}

// dial establishes a fresh bound session with exponential backoff.
func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	backoff := p.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, resourceError("pool-get", "canceled while retrying: %v", ctx.Err())
			case <-time.After(backoff):
			}
			backoff = min(time.Duration(float64(backoff)*p.cfg.BackoffFactor), p.cfg.MaxBackoff)
		}
		conn, err := Connect(p.cfg.Conn)
		if err != nil {
			lastErr = err
			p.errors.Add(1)
			continue
		}
		p.created.Add(1)
		p.active.Add(1)
		return conn, nil
	}
	return nil, lastErr
}

// Put returns a session to the pool. Closed sessions and overflow are
// discarded.
//
// The read lock is held across the closed-check and the channel send:
// Close takes the write lock before closing the idle channel, so a Put
// that saw the pool open cannot race the close of the channel.
func (p *Pool) Put(conn *Conn) {
	if conn == nil {
		return
	}
	p.active.Add(-1)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || conn.Closed() {
		conn.Close()
		return
	}
	select {
	case p.idle <- idleConn{conn: conn, lastUsed: time.Now()}:
	default:
		conn.Close()
	}
}

// With runs fn on a pooled session and returns it afterwards.
func (p *Pool) With(ctx context.Context, fn func(*Conn) error) error {
	conn, err := p.Get(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)
	return fn(conn)
}

// Close shuts the pool and every idle session. Sessions currently handed
// out are closed when returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.idle)
	for ic := range p.idle {
		ic.conn.Close()
	}
	return nil
}

// Stats returns a point-in-time snapshot of the pool.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Idle:    len(p.idle),
		Active:  p.active.Load(),
		Created: p.created.Load(),
		Errors:  p.errors.Load(),
		Uptime:  time.Since(p.start),
	}
}
