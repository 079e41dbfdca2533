package ldapline

import (
	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/ldapline/ldapline/internal/wire"
)

// SearchRequest describes one search. Empty fields fall back to the
// session defaults taken from the config and the connect URL.
type SearchRequest struct {
	Base       string
	Scope      Scope
	Filter     string
	Attributes []string
	TypesOnly  bool
	SizeLimit  int
	TimeLimit  int

	// PageSize overrides the session page size when greater than zero.
	PageSize int
	// SortKeys overrides the session sort specification when non-empty.
	SortKeys []SortKey
}

type opState int

const (
	stateSent opState = iota
	statePageReady
	stateDone
	stateErrored
	stateAbandoned
)

// SearchOperation tracks one search from send to final result. In paged
// mode each completed page buffers its entries here along with the cookie
// that fetches the next one; NextPage reuses the operation for the
// following round trip.
type SearchOperation struct {
	conn *Conn
	id   int

	params   wire.SearchParams
	pageSize int
	sortKeys []SortKey

	state  opState
	buffer []*Entry
	refs   []string
	cookie []byte
}

// fail moves the operation to the errored state. Partial pages are never
// exposed, so the buffered entries go with it.
func (op *SearchOperation) fail() {
	op.state = stateErrored
	op.buffer = nil
	op.refs = nil
}

// resolveSearch fills a request from the session defaults and validates
// it. Base and scope have no protocol-level default, so a request that
// ends up without either is a usage error.
func (c *Conn) resolveSearch(req *SearchRequest) (wire.SearchParams, int, []SortKey, error) {
	if req == nil {
		req = &SearchRequest{}
	}
	base := req.Base
	if base == "" {
		base = c.cfg.BaseDN
	}
	if base == "" {
		return wire.SearchParams{}, 0, nil, usageError("search", "no search base: set it on the request, the config, or the URL")
	}
	scope := req.Scope
	if scope == ScopeUnset {
		scope = c.cfg.Scope
	}
	if scope == ScopeUnset {
		return wire.SearchParams{}, 0, nil, usageError("search", "no search scope: set it on the request, the config, or the URL")
	}
	filter := req.Filter
	if filter == "" {
		filter = c.cfg.Filter
	}
	attrs := req.Attributes
	if len(attrs) == 0 {
		attrs = c.cfg.Attributes
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = c.cfg.PageSize
	}
	if pageSize < 0 {
		return wire.SearchParams{}, 0, nil, usageError("search", "page size must be non-negative, got %d", pageSize)
	}
	if pageSize == 1 {
		pageSize = 0
	}
	sortKeys := req.SortKeys
	if len(sortKeys) == 0 {
		sortKeys = c.cfg.SortKeys
	}

	params := wire.SearchParams{
		BaseDN:    base,
		Scope:     scope.wire(),
		Filter:    filter,
		Attrs:     attrs,
		TypesOnly: req.TypesOnly,
		SizeLimit: req.SizeLimit,
		TimeLimit: req.TimeLimit,
	}
	return params, pageSize, sortKeys, nil
}

// controls builds the request controls for one page: the paged-results
// control first when paging is on, then server-side sort.
func searchControls(pageSize int, cookie []byte, keys []SortKey) []*ber.Packet {
	var out []*ber.Packet
	if pageSize > 1 {
		out = append(out, wire.PagedControl(pageSize, cookie))
	}
	if len(keys) > 0 {
		wireKeys := make([]wire.SortKey, len(keys))
		for i, k := range keys {
			wireKeys[i] = wire.SortKey(k)
		}
		out = append(out, wire.SortControl(wireKeys))
	}
	return out
}

// Search sends a search and registers it in the pending table.
//
// In synchronous mode the call drives the wire until the first page (or
// the whole result, when paging is off) has arrived, so the returned
// operation already holds entries. In asynchronous mode it returns as
// soon as the request is sent; poll with Result or the operation's Poll.
func (c *Conn) Search(req *SearchRequest) (*SearchOperation, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, closedError("search")
	}
	op, err := c.startSearch(req)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if c.cfg.Async {
		return op, nil
	}
	if err := c.await(op); err != nil {
		return nil, err
	}
	return op, nil
}

// startSearch resolves, sends and registers one search. The caller holds
// the lock.
func (c *Conn) startSearch(req *SearchRequest) (*SearchOperation, error) {
	params, pageSize, sortKeys, err := c.resolveSearch(req)
	if err != nil {
		return nil, err
	}
	op := &SearchOperation{
		conn:     c,
		params:   params,
		pageSize: pageSize,
		sortKeys: sortKeys,
		state:    stateSent,
	}
	if err := c.sendSearch(op); err != nil {
		return nil, err
	}
	return op, nil
}

// sendSearch puts one search round trip on the wire under a fresh message
// ID and registers the operation. Used for the first page and, with a
// cookie, for every following page. The caller holds the lock.
func (c *Conn) sendSearch(op *SearchOperation) error {
	pkt, err := wire.Search(op.params)
	if err != nil {
		return usageError("search", "%v", err)
	}
	controls := searchControls(op.pageSize, op.cookie, op.sortKeys)
	id := c.allocateID()
	if err := c.write(id, pkt, controls); err != nil {
		return err
	}
	op.id = id
	op.state = stateSent
	c.pending[id] = op
	c.log.Debug("search sent", "msgid", id, "base", op.params.BaseDN, "paged", op.pageSize > 1)
	return nil
}

// await blocks until the operation reaches a terminal or page-boundary
// state.
func (c *Conn) await(op *SearchOperation) error {
	for {
		res, err := c.Result(op.id)
		if err != nil {
			return err
		}
		if res.Kind != PollPending {
			return nil
		}
	}
}

// ID returns the message ID of the current round trip. Paged searches get
// a fresh ID per page.
func (op *SearchOperation) ID() int {
	return op.id
}

// Entries returns the buffered entries of the current page. For an
// unpaged search this is the complete result once the operation is done.
func (op *SearchOperation) Entries() []*Entry {
	return op.buffer
}

// References returns any continuation references the server sent alongside
// the current page.
func (op *SearchOperation) References() []string {
	return op.refs
}

// Done reports whether the search has delivered its final page.
func (op *SearchOperation) Done() bool {
	return op.state == stateDone
}

// More reports whether the server holds another page for this search.
func (op *SearchOperation) More() bool {
	return op.state == statePageReady && len(op.cookie) > 0
}

// Poll checks the operation's progress without blocking past what the
// session mode allows. Shorthand for Conn.Result with this operation's
// message ID.
func (op *SearchOperation) Poll() (*PollResult, error) {
	return op.conn.Result(op.id)
}

// NextPage requests the next page of a paged search. The entry buffer is
// replaced, not appended to. In synchronous mode the new page is already
// buffered when NextPage returns.
func (op *SearchOperation) NextPage() error {
	c := op.conn
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return closedError("search-page")
	}
	switch op.state {
	case stateDone:
		c.mu.Unlock()
		return usageError("search-page", "search is complete, no further pages")
	case stateErrored, stateAbandoned:
		c.mu.Unlock()
		return usageError("search-page", "search is no longer active")
	case stateSent:
		c.mu.Unlock()
		return usageError("search-page", "current page has not arrived yet")
	}
	if len(op.cookie) == 0 {
		c.mu.Unlock()
		return usageError("search-page", "no continuation cookie, search is complete")
	}
	op.buffer = nil
	op.refs = nil
	err := c.sendSearch(op)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if c.cfg.Async {
		return nil
	}
	return c.await(op)
}

// SearchAll runs a search to completion and returns every entry across
// all pages. With paging off it is a plain search; with paging on it
// walks the cookie chain for the caller. Always synchronous, regardless
// of the session mode.
func (c *Conn) SearchAll(req *SearchRequest) ([]*Entry, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, closedError("search")
	}
	op, err := c.startSearch(req)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var all []*Entry
	for {
		if err := c.awaitBlocking(op); err != nil {
			return nil, err
		}
		all = append(all, op.buffer...)
		if !op.More() {
			return all, nil
		}
		c.mu.Lock()
		op.buffer = nil
		op.refs = nil
		err = c.sendSearch(op)
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

// awaitBlocking drives one page to completion even on an async session.
func (c *Conn) awaitBlocking(op *SearchOperation) error {
	for {
		res, err := c.result(op.id, true)
		if err != nil {
			return err
		}
		if res.Kind != PollPending {
			return nil
		}
	}
}
