package ldapline

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/ldapline/ldapline/internal/wire"
)

// Conn is a single LDAP session. One TCP (or TLS) connection, one message
// counter, and a table of in-flight searches keyed by message ID.
//
// A Conn is safe for use from multiple goroutines; every operation runs
// under the session lock, so messages never interleave on the wire.
type Conn struct {
	cfg Config
	url *serverURL
	log *slog.Logger

	mu      sync.Mutex
	nc      net.Conn
	fr      *wire.Framer
	nextID  int
	pending map[int]*SearchOperation
	backlog map[int][]*wire.Envelope
	closed  bool
}

// Connect dials the server named by cfg.URL, negotiates TLS when asked,
// and binds with the configured mechanism. The returned Conn is ready for
// operations.
func Connect(cfg Config) (*Conn, error) {
	u, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Conn{
		cfg:     cfg,
		url:     u,
		log:     cfg.logger(),
		pending: make(map[int]*SearchOperation),
		backlog: make(map[int][]*wire.Envelope),
	}
	if u.Host == "" {
		if err := c.locate(); err != nil {
			return nil, err
		}
	} else if err := c.dial(); err != nil {
		return nil, err
	}
	if err := c.bind(); err != nil {
		c.teardown()
		return nil, err
	}
	c.log.Debug("session established", "server", u.Address(), "mechanism", string(cfg.Mechanism))
	return c, nil
}

func (c *Conn) dial() error {
	addr := c.url.Address()
	tc, err := c.tlsConfig()
	if err != nil {
		return err
	}

	if c.url.TLS() {
		dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
		nc, err := tls.DialWithDialer(dialer, "tcp", addr, tc)
		if err != nil {
			return resourceError("connect", "dial %s: %v", addr, err)
		}
		c.nc = nc
	} else {
		nc, err := net.DialTimeout("tcp", addr, c.cfg.DialTimeout)
		if err != nil {
			return resourceError("connect", "dial %s: %v", addr, err)
		}
		c.nc = nc
		if c.cfg.StartTLS {
			if err := c.startTLS(tc); err != nil {
				c.nc.Close()
				return err
			}
		}
	}
	c.fr = wire.NewFramer(c.nc)
	return nil
}

// tlsConfig assembles the TLS configuration for the session: the caller's
// config (or a fresh one), the URL host as ServerName when unset, and the
// CA bundle from CACertFile folded into the roots.
func (c *Conn) tlsConfig() (*tls.Config, error) {
	tc := c.cfg.TLSConfig
	if tc == nil {
		tc = &tls.Config{}
	} else {
		tc = tc.Clone()
	}
	if tc.ServerName == "" {
		tc.ServerName = c.url.Host
	}
	if c.cfg.CACertFile != "" {
		pem, err := os.ReadFile(c.cfg.CACertFile)
		if err != nil {
			return nil, resourceError("connect", "read CA bundle %s: %v", c.cfg.CACertFile, err)
		}
		if tc.RootCAs == nil {
			tc.RootCAs = x509.NewCertPool()
		}
		if !tc.RootCAs.AppendCertsFromPEM(pem) {
			return nil, usageError("connect", "no certificates found in CA bundle %s", c.cfg.CACertFile)
		}
	}
	return tc, nil
}

// startTLS sends the RFC 4511 StartTLS extended operation and upgrades the
// socket on success. Runs before the framer exists, so it frames its one
// exchange by hand.
func (c *Conn) startTLS(tc *tls.Config) error {
	c.fr = wire.NewFramer(c.nc)
	id := c.allocateID()
	if err := c.write(id, wire.Extended(wire.OIDStartTLS, nil), nil); err != nil {
		return err
	}
	env, err := c.fr.Next(true)
	if err != nil {
		return networkError("starttls", err)
	}
	ext, err := wire.ParseExtended(env.Op)
	if err != nil {
		return decodeError("starttls", err)
	}
	if !ext.Success() {
		return protocolError("starttls", ext.Result)
	}
	tlsConn := tls.Client(c.nc, tc)
	if err := tlsConn.Handshake(); err != nil {
		return resourceError("starttls", "TLS handshake: %v", err)
	}
	c.nc = tlsConn
	return nil
}

func (c *Conn) bind() error {
	switch c.cfg.Mechanism {
	case MechSimple:
		return c.bindSimple()
	case MechExternal:
		return c.bindExternal()
	case MechGSSAPI:
		return c.bindGSSAPI()
	default:
		return usageError("bind", "unsupported bind mechanism %q", c.cfg.Mechanism)
	}
}

func (c *Conn) bindSimple() error {
	env, err := c.exchange(wire.BindSimple(c.cfg.BindDN, c.cfg.Password), nil)
	if err != nil {
		return err
	}
	res, err := wire.ParseResult(env.Op)
	if err != nil {
		return decodeError("bind", err)
	}
	if !res.Success() {
		return protocolError("bind", res)
	}
	return nil
}

// allocateID hands out the next message ID. IDs are positive and wrap
// before overflowing the protocol's 31-bit range.
func (c *Conn) allocateID() int {
	c.nextID++
	if c.nextID >= 1<<31-1 {
		c.nextID = 1
	}
	return c.nextID
}

// write frames and sends one message. The caller holds the lock.
func (c *Conn) write(id int, op *ber.Packet, controls []*ber.Packet) error {
	pkt := wire.NewEnvelope(id, op, controls)
	if _, err := c.nc.Write(pkt.Bytes()); err != nil {
		return networkError("send", err)
	}
	return nil
}

// exchange sends one request and blocks for its response, parking any
// envelopes that belong to registered searches. Used by the synchronous
// operations, which never enter the pending table.
func (c *Conn) exchange(op *ber.Packet, controls []*ber.Packet) (*wire.Envelope, error) {
	if c.closed {
		return nil, closedError("exchange")
	}
	id := c.allocateID()
	if err := c.write(id, op, controls); err != nil {
		return nil, err
	}
	for {
		env, err := c.read(true)
		if err != nil {
			return nil, err
		}
		if env.ID == id {
			return env, nil
		}
		if err := c.park(env); err != nil {
			return nil, err
		}
	}
}

// read pulls the next envelope off the wire. With block false it returns
// (nil, nil) when nothing is ready.
func (c *Conn) read(block bool) (*wire.Envelope, error) {
	env, err := c.fr.Next(block)
	if err != nil {
		return nil, networkError("receive", err)
	}
	return env, nil
}

// park queues an envelope for the search it belongs to. An envelope with
// no owner means the server and client disagree about the session state.
func (c *Conn) park(env *wire.Envelope) error {
	if env.ID == 0 {
		return &Error{Kind: KindProtocol, Op: "receive", Message: "unsolicited notification from server"}
	}
	if _, ok := c.pending[env.ID]; !ok {
		return internalError("receive", "response for unknown message ID %d", env.ID)
	}
	c.backlog[env.ID] = append(c.backlog[env.ID], env)
	return nil
}

// Close abandons every in-flight search, sends an unbind, and releases the
// socket. Closing an already-closed Conn is a no-op.
//
// Each search is removed from the pending table before its abandon goes
// out. If an abandon fails to send, Close stops there: the failed search
// is already deregistered, the remaining ones stay registered, and the
// error is returned so the caller can retry.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	for id, op := range c.pending {
		delete(c.pending, id)
		delete(c.backlog, id)
		op.state = stateAbandoned
		if err := c.write(c.allocateID(), wire.Abandon(id), nil); err != nil {
			c.log.Debug("abandon failed during close", "msgid", id, "error", err)
			return err
		}
	}
	c.teardown()
	return nil
}

// teardown sends a best-effort unbind and closes the socket. The caller
// holds the lock (or the Conn is not yet shared).
func (c *Conn) teardown() {
	if c.nc != nil {
		c.nc.SetWriteDeadline(time.Now().Add(time.Second))
		c.nc.Write(wire.NewEnvelope(c.allocateID(), wire.Unbind(), nil).Bytes())
		c.nc.Close()
	}
	c.closed = true
	c.log.Debug("session closed")
}

// Closed reports whether Close has run.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Abandon tells the server to stop working on an in-flight search and
// deregisters it locally. The server sends no reply to an abandon.
func (c *Conn) Abandon(op *SearchOperation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return closedError("abandon")
	}
	if _, ok := c.pending[op.id]; !ok {
		return usageError("abandon", "message ID %d is not in flight", op.id)
	}
	delete(c.pending, op.id)
	delete(c.backlog, op.id)
	op.state = stateAbandoned
	return c.write(c.allocateID(), wire.Abandon(op.id), nil)
}

// Pending returns the number of searches awaiting results. Mostly useful
// in tests and diagnostics.
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Conn) String() string {
	return fmt.Sprintf("ldap session %s", c.url.Address())
}
