package wire

import (
	"errors"
	"fmt"
	"net"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Envelope is one decoded LDAPMessage: the message ID, the protocol
// operation packet, and any response controls that rode along with it.
type Envelope struct {
	ID       int
	Op       *ber.Packet
	Controls []*ber.Packet
}

// Tag returns the application tag of the protocol operation.
func (e *Envelope) Tag() ber.Tag {
	return e.Op.Tag
}

// NewEnvelope wraps a protocol operation and optional request controls into
// an LDAPMessage sequence ready for the transport.
func NewEnvelope(id int, op *ber.Packet, controls []*ber.Packet) *ber.Packet {
	packet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAP Request")
	packet.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(id), "Message ID"))
	packet.AppendChild(op)
	if len(controls) > 0 {
		wrapper := ber.Encode(ber.ClassContext, ber.TypeConstructed, 0, nil, "Controls")
		for _, c := range controls {
			wrapper.AppendChild(c)
		}
		packet.AppendChild(wrapper)
	}
	return packet
}

// DecodeEnvelope validates and splits a raw LDAPMessage packet.
func DecodeEnvelope(packet *ber.Packet) (*Envelope, error) {
	if packet.ClassType != ber.ClassUniversal || packet.TagType != ber.TypeConstructed ||
		packet.Tag != ber.TagSequence || len(packet.Children) < 2 {
		return nil, errors.New("wire: malformed LDAPMessage envelope")
	}
	id, ok := packet.Children[0].Value.(int64)
	if !ok {
		return nil, errors.New("wire: LDAPMessage has no integer message ID")
	}
	env := &Envelope{ID: int(id), Op: packet.Children[1]}
	if len(packet.Children) > 2 {
		ctrls := packet.Children[2]
		if ctrls.ClassType == ber.ClassContext && ctrls.Tag == 0 {
			env.Controls = ctrls.Children
		}
	}
	return env, nil
}

// Framer cuts a byte stream into complete BER envelopes. It keeps partially
// received messages buffered between polls, so a non-blocking poll that
// catches the middle of a message loses nothing.
type Framer struct {
	conn net.Conn
	buf  []byte
}

func NewFramer(conn net.Conn) *Framer {
	return &Framer{conn: conn}
}

// Next reads one envelope. When block is false the underlying read uses an
// immediate deadline; if no complete message is buffered, Next returns
// (nil, nil) so the caller can report "pending". When block is true, Next
// waits for a full message and blocks only the calling goroutine.
func (f *Framer) Next(block bool) (*Envelope, error) {
	chunk := make([]byte, 4096)
	for {
		if env, err, done := f.cut(); done {
			return env, err
		}
		if block {
			if err := f.conn.SetReadDeadline(time.Time{}); err != nil {
				return nil, fmt.Errorf("wire: clear read deadline: %w", err)
			}
		} else {
			if err := f.conn.SetReadDeadline(time.Now()); err != nil {
				return nil, fmt.Errorf("wire: set poll deadline: %w", err)
			}
		}
		n, err := f.conn.Read(chunk)
		if n > 0 {
			f.buf = append(f.buf, chunk[:n]...)
		}
		if err != nil {
			var nerr net.Error
			if !block && errors.As(err, &nerr) && nerr.Timeout() {
				// Nothing more to read right now; the message stays buffered.
				if env, derr, done := f.cut(); done {
					return env, derr
				}
				return nil, nil
			}
			return nil, err
		}
	}
}

// cut attempts to slice one complete message off the front of the buffer.
func (f *Framer) cut() (*Envelope, error, bool) {
	total, ok, err := messageLength(f.buf)
	if err != nil {
		return nil, err, true
	}
	if !ok || len(f.buf) < total {
		return nil, nil, false
	}
	raw := f.buf[:total]
	f.buf = f.buf[total:]
	packet, err := ber.DecodePacketErr(raw)
	if err != nil {
		return nil, fmt.Errorf("wire: decode message: %w", err), true
	}
	env, err := DecodeEnvelope(packet)
	return env, err, true
}

// messageLength parses the outer BER tag/length header and reports the full
// encoded size of the message, or ok=false if the header itself is still
// incomplete.
func messageLength(buf []byte) (total int, ok bool, err error) {
	if len(buf) < 2 {
		return 0, false, nil
	}
	if buf[0] != 0x30 {
		return 0, false, fmt.Errorf("wire: expected SEQUENCE tag, got 0x%02x", buf[0])
	}
	first := buf[1]
	switch {
	case first < 0x80:
		return 2 + int(first), true, nil
	case first == 0x80:
		return 0, false, errors.New("wire: indefinite-length messages are not supported")
	default:
		n := int(first & 0x7f)
		if n > 4 {
			return 0, false, errors.New("wire: unreasonable message length")
		}
		if len(buf) < 2+n {
			return 0, false, nil
		}
		length := 0
		for _, b := range buf[2 : 2+n] {
			length = length<<8 | int(b)
		}
		return 2 + n + length, true, nil
	}
}
