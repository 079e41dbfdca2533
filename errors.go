package ldapline

import (
	"errors"
	"fmt"

	"github.com/ldapline/ldapline/internal/wire"
)

// ErrorKind separates the failure domains a caller may want to treat
// differently: arguments it got wrong, verdicts the server returned,
// resources that ran out, and invariants this library broke.
type ErrorKind int

const (
	// KindUsage marks malformed or missing caller input: a bad parameter,
	// a missing search base or scope, credentials that do not fit the
	// chosen mechanism, or an operation on a closed connection.
	KindUsage ErrorKind = iota
	// KindProtocol marks a non-success result code returned by the server.
	KindProtocol
	// KindResource marks an allocation or encoding failure while building
	// requests or assembling result buffers.
	KindResource
	// KindInternal marks a broken library invariant, such as deregistering
	// an operation id that was never pending. Never ignored, always fatal
	// to the call that hit it.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindProtocol:
		return "protocol"
	case KindResource:
		return "resource"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the error type surfaced by every operation on a Conn.
type Error struct {
	Kind    ErrorKind
	Op      string // the operation that failed: "bind", "search", ...
	Code    int    // protocol result code, when Kind is KindProtocol
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Kind == KindProtocol {
		return fmt.Sprintf("ldap %s: %s (result code %d)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("ldap %s: %s error: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrConnClosed is wrapped by errors returned from operations issued after
// Close. Test with errors.Is.
var ErrConnClosed = errors.New("connection is closed")

func usageError(op, format string, args ...any) *Error {
	return &Error{Kind: KindUsage, Op: op, Message: fmt.Sprintf(format, args...)}
}

func closedError(op string) *Error {
	return &Error{Kind: KindUsage, Op: op, Message: ErrConnClosed.Error(), Err: ErrConnClosed}
}

func internalError(op, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: fmt.Sprintf(format, args...)}
}

func resourceError(op, format string, args ...any) *Error {
	return &Error{Kind: KindResource, Op: op, Message: fmt.Sprintf(format, args...)}
}

// protocolError maps a wire result to the typed error for a non-success
// code, combining the standard code description with any diagnostic text
// the server attached.
func protocolError(op string, res wire.Result) *Error {
	msg := wire.ResultText(res.Code)
	if res.Diagnostic != "" {
		msg = fmt.Sprintf("%s: %s", msg, res.Diagnostic)
	}
	return &Error{Kind: KindProtocol, Op: op, Code: res.Code, Message: msg}
}

// decodeError wraps a malformed server response. The server broke the
// protocol, so it shares the protocol domain with result-code errors.
func decodeError(op string, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Message: err.Error(), Err: err}
}

// networkError wraps a transport failure. Reported as a protocol-domain
// error with no result code, since the session is unusable afterwards.
func networkError(op string, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Message: err.Error(), Err: err}
}

// IsResultCode reports whether err is a protocol error carrying the given
// result code.
func IsResultCode(err error, code int) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindProtocol && e.Code == code
}
