package ldapline

import (
	"github.com/ldapline/ldapline/internal/wire"
)

// PollKind classifies what a Result call produced.
type PollKind int

const (
	// PollPending means nothing conclusive has arrived yet. Only an
	// asynchronous session returns this; entries received so far stay
	// buffered on the operation.
	PollPending PollKind = iota
	// PollPage means a page completed and the server holds more. Fetch
	// the rest with NextPage.
	PollPage
	// PollDone means the search delivered its final entries.
	PollDone
)

func (k PollKind) String() string {
	switch k {
	case PollPending:
		return "pending"
	case PollPage:
		return "page"
	case PollDone:
		return "done"
	default:
		return "unknown"
	}
}

// PollResult is the outcome of one Result call.
type PollResult struct {
	Kind    PollKind
	Entries []*Entry
}

// Result drives the wire for the search registered under msgID.
//
// On a synchronous session it blocks until the page completes. On an
// asynchronous session it consumes whatever the server has already sent
// and returns PollPending when the page is still open; call again later.
//
// When the page completes the operation leaves the pending table: either
// it is finished (PollDone), or it waits for a NextPage call (PollPage).
// A non-success result code also removes the operation and surfaces as a
// protocol error with the partial page discarded, except noSuchObject and
// partialResults, which yield whatever entries arrived.
func (c *Conn) Result(msgID int) (*PollResult, error) {
	return c.result(msgID, !c.cfg.Async)
}

func (c *Conn) result(msgID int, block bool) (*PollResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, closedError("result")
	}
	op, ok := c.pending[msgID]
	if !ok {
		return nil, usageError("result", "message ID %d is not in flight", msgID)
	}
	for {
		env, err := c.nextFor(msgID, block)
		if err != nil {
			return nil, err
		}
		if env == nil {
			return &PollResult{Kind: PollPending}, nil
		}
		done, res, err := c.consume(op, env)
		if err != nil {
			return nil, err
		}
		if done {
			return res, nil
		}
	}
}

// nextFor returns the next envelope addressed to msgID, draining the
// backlog first and parking anything that belongs to other searches. A
// nil envelope with nil error means nothing is ready (non-blocking only).
func (c *Conn) nextFor(msgID int, block bool) (*wire.Envelope, error) {
	if q := c.backlog[msgID]; len(q) > 0 {
		env := q[0]
		if len(q) == 1 {
			delete(c.backlog, msgID)
		} else {
			c.backlog[msgID] = q[1:]
		}
		return env, nil
	}
	for {
		env, err := c.read(block)
		if err != nil || env == nil {
			return nil, err
		}
		if env.ID == msgID {
			return env, nil
		}
		if err := c.park(env); err != nil {
			return nil, err
		}
	}
}

// consume feeds one envelope into the operation's state machine. It
// returns done=true with the final PollResult once the page boundary is
// reached.
func (c *Conn) consume(op *SearchOperation, env *wire.Envelope) (bool, *PollResult, error) {
	switch env.Tag() {
	case wire.ApplicationSearchResultEntry:
		entry, err := wire.ParseEntry(env.Op)
		if err != nil {
			return false, nil, decodeError("search", err)
		}
		op.buffer = append(op.buffer, entryFromWire(entry))
		return false, nil, nil

	case wire.ApplicationSearchResultReference:
		for _, child := range env.Op.Children {
			op.refs = append(op.refs, child.Data.String())
		}
		return false, nil, nil

	case wire.ApplicationSearchResultDone:
		res, err := wire.ParseResult(env.Op)
		if err != nil {
			return false, nil, decodeError("search", err)
		}
		delete(c.pending, op.id)
		delete(c.backlog, op.id)
		op.cookie = nil

		switch res.Code {
		case wire.ResultSuccess, wire.ResultNoSuchObject, wire.ResultPartialResults:
		default:
			op.fail()
			return false, nil, protocolError("search", res)
		}

		if op.pageSize > 1 {
			cookie, err := wire.PagedCookie(env.Controls)
			switch {
			case err == nil:
				op.cookie = cookie
			case err == wire.ErrNoPagedControl:
				// Server dropped the control: treat as the last page.
			default:
				op.fail()
				return false, nil, decodeError("search", err)
			}
		}
		if len(op.cookie) > 0 {
			op.state = statePageReady
			c.log.Debug("search page complete", "msgid", op.id, "entries", len(op.buffer))
			return true, &PollResult{Kind: PollPage, Entries: op.buffer}, nil
		}
		op.state = stateDone
		c.log.Debug("search complete", "msgid", op.id, "entries", len(op.buffer), "code", res.Code)
		return true, &PollResult{Kind: PollDone, Entries: op.buffer}, nil

	default:
		delete(c.pending, op.id)
		delete(c.backlog, op.id)
		op.fail()
		return false, nil, internalError("result", "unexpected message tag %d for search ID %d", env.Tag(), op.id)
	}
}
