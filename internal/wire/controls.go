package wire

import (
	"errors"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// SortKey names one attribute in a server-side sort request.
type SortKey struct {
	Attribute    string
	MatchingRule string
	Reverse      bool
}

func controlPacket(oid string, value *ber.Packet) *ber.Packet {
	c := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Control")
	c.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, oid, "Control Type"))
	if value != nil {
		wrapper := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, nil, "Control Value")
		wrapper.AppendChild(value)
		c.AppendChild(wrapper)
	}
	return c
}

// PagedControl builds a paged-results request control (RFC 2696). An empty
// cookie starts a fresh paging sequence.
func PagedControl(size int, cookie []byte) *ber.Packet {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Search Control Value")
	value.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(size), "Paging Size"))
	cookiePacket := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, nil, "Cookie")
	cookiePacket.Value = cookie
	cookiePacket.Data.Write(cookie)
	value.AppendChild(cookiePacket)
	return controlPacket(OIDPagedResults, value)
}

// SortControl builds a server-side-sort request control (RFC 2891).
func SortControl(keys []SortKey) *ber.Packet {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Sort Key List")
	for _, key := range keys {
		seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Sort Key")
		seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, key.Attribute, "Attribute Type"))
		if key.MatchingRule != "" {
			seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, key.MatchingRule, "Ordering Rule"))
		}
		if key.Reverse {
			seq.AppendChild(ber.NewBoolean(ber.ClassContext, ber.TypePrimitive, 1, true, "Reverse Order"))
		}
		value.AppendChild(seq)
	}
	return controlPacket(OIDServerSideSort, value)
}

// ControlOID extracts the control type of a decoded response control.
func ControlOID(c *ber.Packet) string {
	if len(c.Children) == 0 {
		return ""
	}
	oid, _ := c.Children[0].Value.(string)
	return oid
}

// ErrNoPagedControl reports the absence of a paged-results control in a
// response; the caller treats it as "no more pages".
var ErrNoPagedControl = errors.New("wire: no paged results control in response")

// PagedCookie finds the paged-results response control among a response's
// controls and returns the continuation cookie it carries. The estimated
// size field is ignored.
func PagedCookie(controls []*ber.Packet) ([]byte, error) {
	for _, c := range controls {
		if ControlOID(c) != OIDPagedResults {
			continue
		}
		// The control value is an OCTET STRING wrapping the BER of
		// realSearchControlValue ::= SEQUENCE { size INTEGER, cookie OCTET STRING }.
		last := c.Children[len(c.Children)-1]
		value := last
		if len(last.Children) == 1 {
			value = last.Children[0]
		} else if last.Value == nil && last.Data.Len() > 0 {
			inner, err := ber.DecodePacketErr(last.Data.Bytes())
			if err != nil {
				return nil, errors.New("wire: malformed paged results control value")
			}
			value = inner
		}
		if len(value.Children) < 2 {
			return nil, errors.New("wire: malformed paged results control value")
		}
		cookie := value.Children[1].Data.Bytes()
		return cookie, nil
	}
	return nil, ErrNoPagedControl
}
