// Package ldaptest runs a small in-process LDAP server for tests. It
// speaks enough of the protocol to exercise bind, search with paging and
// sorting, add, modify, delete, abandon and the WhoAmI extension against
// a seeded in-memory directory.
//
// Requests are decoded with the goldap message package, a codec unrelated
// to the one the client uses, so a test that passes here shows the two
// agree on the wire format.
package ldaptest

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lor00x/goldap/message"
)

// Entry is one seeded directory object.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// Server is an in-memory LDAP server bound to a loopback listener.
type Server struct {
	ln  net.Listener
	log *slog.Logger
	wg  sync.WaitGroup

	mu      sync.Mutex
	entries []*Entry
	creds   map[string]string
	cursors map[string]int
	nextCur int
	closed  bool

	// SearchDelay postpones every search response, letting asynchronous
	// clients observe the window where nothing has arrived yet.
	SearchDelay time.Duration

	// SearchCode, when non-zero, replaces the result code of every
	// SearchResultDone. Matching entries are still sent first, so tests
	// can observe a round that delivers entries and then fails.
	SearchCode int

	abandoned []int
}

// Start seeds a server with the given entries and begins accepting
// connections on a random loopback port.
func Start(entries ...*Entry) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("ldaptest: listen: %w", err)
	}
	s := &Server{
		ln:      ln,
		log:     slog.New(slog.DiscardHandler),
		entries: entries,
		creds:   make(map[string]string),
		cursors: make(map[string]int),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// URL returns an ldap:// URL pointing at the server.
func (s *Server) URL() string {
	return "ldap://" + s.ln.Addr().String()
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// SetCredentials registers a DN/password pair for simple binds. With no
// registered credentials every bind succeeds.
func (s *Server) SetCredentials(dn, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[dn] = password
}

// Entries returns a snapshot of the directory contents.
func (s *Server) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Abandoned returns the message IDs clients have abandoned.
func (s *Server) Abandoned() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.abandoned))
	copy(out, s.abandoned)
	return out
}

// Close stops accepting connections and shuts the listener.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.ln.Close()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

// session is one client connection's state.
type session struct {
	srv     *Server
	conn    net.Conn
	boundDN string
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	sess := &session{srv: s, conn: conn}
	for {
		msg, err := readMessage(conn)
		if err != nil {
			if err != io.EOF {
				s.log.Debug("read failed", "error", err)
			}
			return
		}
		if done := sess.dispatch(msg); done {
			return
		}
	}
}

// dispatch handles one request. It returns true when the connection
// should terminate.
func (sess *session) dispatch(msg *message.LDAPMessage) bool {
	id := int(msg.MessageID())
	switch op := msg.ProtocolOp().(type) {
	case message.BindRequest:
		sess.handleBind(id, op)
	case message.SearchRequest:
		sess.handleSearch(id, msg, op)
	case message.AddRequest:
		sess.handleAdd(id, op)
	case message.DelRequest:
		sess.handleDelete(id, op)
	case message.ModifyRequest:
		sess.handleModify(id, op)
	case message.ExtendedRequest:
		sess.handleExtended(id, op)
	case message.AbandonRequest:
		sess.srv.mu.Lock()
		sess.srv.abandoned = append(sess.srv.abandoned, int(op))
		sess.srv.mu.Unlock()
	case message.UnbindRequest:
		return true
	default:
		sess.writeOp(id, errorResponse(message.ResultCodeProtocolError, "unsupported operation"))
	}
	return false
}

func (sess *session) handleBind(id int, req message.BindRequest) {
	dn := string(req.Name())
	resp := message.BindResponse{}

	sess.srv.mu.Lock()
	want, known := sess.srv.creds[dn]
	strict := len(sess.srv.creds) > 0
	sess.srv.mu.Unlock()

	password := string(req.AuthenticationSimple())
	if strict && dn != "" && (!known || want != password) {
		resp.SetResultCode(message.ResultCodeInvalidCredentials)
		sess.writeOp(id, resp)
		return
	}
	sess.boundDN = dn
	resp.SetResultCode(message.ResultCodeSuccess)
	sess.writeOp(id, resp)
}

func (sess *session) handleAdd(id int, req message.AddRequest) {
	dn := string(req.Entry())
	entry := &Entry{DN: dn, Attributes: make(map[string][]string)}
	for _, attr := range req.Attributes() {
		name := string(attr.Type_())
		for _, v := range attr.Vals() {
			entry.Attributes[name] = append(entry.Attributes[name], string(v))
		}
	}

	resp := message.AddResponse{}
	sess.srv.mu.Lock()
	if sess.srv.find(dn) >= 0 {
		resp.SetResultCode(message.ResultCodeEntryAlreadyExists)
	} else {
		sess.srv.entries = append(sess.srv.entries, entry)
		resp.SetResultCode(message.ResultCodeSuccess)
	}
	sess.srv.mu.Unlock()
	sess.writeOp(id, resp)
}

func (sess *session) handleDelete(id int, req message.DelRequest) {
	dn := string(req)
	resp := message.DelResponse{}
	sess.srv.mu.Lock()
	if i := sess.srv.find(dn); i >= 0 {
		sess.srv.entries = append(sess.srv.entries[:i], sess.srv.entries[i+1:]...)
		resp.SetResultCode(message.ResultCodeSuccess)
	} else {
		resp.SetResultCode(message.ResultCodeNoSuchObject)
	}
	sess.srv.mu.Unlock()
	sess.writeOp(id, resp)
}

func (sess *session) handleModify(id int, req message.ModifyRequest) {
	dn := string(req.Object())
	resp := message.ModifyResponse{}
	sess.srv.mu.Lock()
	i := sess.srv.find(dn)
	if i < 0 {
		resp.SetResultCode(message.ResultCodeNoSuchObject)
		sess.srv.mu.Unlock()
		sess.writeOp(id, resp)
		return
	}
	entry := sess.srv.entries[i]
	for _, change := range req.Changes() {
		mod := change.Modification()
		name := string(mod.Type_())
		vals := make([]string, 0, len(mod.Vals()))
		for _, v := range mod.Vals() {
			vals = append(vals, string(v))
		}
		switch int(change.Operation()) {
		case 0:
			entry.Attributes[name] = append(entry.Attributes[name], vals...)
		case 1:
			if len(vals) == 0 {
				delete(entry.Attributes, name)
			} else {
				entry.Attributes[name] = subtract(entry.Attributes[name], vals)
			}
		case 2:
			if len(vals) == 0 {
				delete(entry.Attributes, name)
			} else {
				entry.Attributes[name] = vals
			}
		}
	}
	resp.SetResultCode(message.ResultCodeSuccess)
	sess.srv.mu.Unlock()
	sess.writeOp(id, resp)
}

func (sess *session) handleExtended(id int, req message.ExtendedRequest) {
	if string(req.RequestName()) != oidWhoAmI {
		sess.writeOp(id, errorResponse(message.ResultCodeProtocolError, "unsupported extended operation"))
		return
	}
	authzID := ""
	if sess.boundDN != "" {
		authzID = "dn:" + sess.boundDN
	}
	sess.writeRaw(whoAmIResponse(id, authzID))
}

// find locates a DN in the directory. The caller holds the lock.
func (s *Server) find(dn string) int {
	for i, e := range s.entries {
		if strings.EqualFold(e.DN, dn) {
			return i
		}
	}
	return -1
}

func subtract(have, remove []string) []string {
	out := have[:0]
	for _, v := range have {
		keep := true
		for _, r := range remove {
			if v == r {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, v)
		}
	}
	return out
}

// writeOp sends one goldap protocol op under the given message ID.
func (sess *session) writeOp(id int, op message.ProtocolOp) {
	msg := message.NewLDAPMessageWithProtocolOp(op)
	msg.SetMessageID(id)
	data, err := msg.Write()
	if err != nil {
		sess.srv.log.Debug("encode failed", "error", err)
		return
	}
	sess.writeRaw(data.Bytes())
}

func (sess *session) writeRaw(data []byte) {
	if _, err := sess.conn.Write(data); err != nil {
		sess.srv.log.Debug("write failed", "error", err)
	}
}

func errorResponse(code int, diag string) message.ProtocolOp {
	r := message.BindResponse{}
	r.SetResultCode(code)
	r.SetDiagnosticMessage(diag)
	return r
}

// readMessage reads one BER-framed LDAP message off the wire.
func readMessage(conn net.Conn) (*message.LDAPMessage, error) {
	header := make([]byte, 2)
	if _, err := io.ReadFull(conn, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	length := int(header[1])
	if header[1]&0x80 != 0 {
		n := int(header[1] & 0x7f)
		if n == 0 || n > 4 {
			return nil, fmt.Errorf("ldaptest: bad BER length")
		}
		ext := make([]byte, n)
		if _, err := io.ReadFull(conn, ext); err != nil {
			return nil, err
		}
		header = append(header, ext...)
		length = 0
		for _, b := range ext {
			length = length<<8 | int(b)
		}
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}
	msg, err := message.ReadLDAPMessage(message.NewBytes(0, append(header, body...)))
	if err != nil {
		return nil, fmt.Errorf("ldaptest: decode: %w", err)
	}
	return &msg, nil
}

// sortEntries orders matches in place by the first sort key, mirroring
// what a server honoring the sort control would return.
func sortEntries(entries []*Entry, attr string, reverse bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := first(entries[i], attr), first(entries[j], attr)
		if reverse {
			return a > b
		}
		return a < b
	})
}

func first(e *Entry, attr string) string {
	if vals := e.Attributes[attr]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}
