package wire

import (
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// BindSimple builds a simple bind operation (RFC 4511 section 4.2).
func BindSimple(bindDN, password string) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationBindRequest, nil, "Bind Request")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, 3, "Version"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, bindDN, "Name"))
	op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, password, "Simple Credentials"))
	return op
}

// BindSASL builds one round of a SASL bind. The credentials may be empty on
// the first round for mechanisms that start with a server challenge.
func BindSASL(mechanism string, credentials []byte) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationBindRequest, nil, "Bind Request")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, 3, "Version"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "Name"))
	auth := ber.Encode(ber.ClassContext, ber.TypeConstructed, 3, nil, "SASL Credentials")
	auth.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, mechanism, "Mechanism"))
	if credentials != nil {
		cred := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, nil, "Credentials")
		cred.Value = credentials
		cred.Data.Write(credentials)
		auth.AppendChild(cred)
	}
	op.AppendChild(auth)
	return op
}

// Unbind builds the unbind notification. It has no response.
func Unbind() *ber.Packet {
	return ber.Encode(ber.ClassApplication, ber.TypePrimitive, ApplicationUnbindRequest, nil, "Unbind Request")
}

// SearchParams carries the resolved parameters of one search round.
type SearchParams struct {
	BaseDN    string
	Scope     int
	Filter    string
	Attrs     []string
	TypesOnly bool
	SizeLimit int
	TimeLimit int // seconds, server-side limit
}

// Search builds a search operation. The filter string is compiled to its BER
// form with go-ldap's compiler; a filter the compiler rejects is reported as
// is so the caller can classify it as a usage error.
func Search(p SearchParams) (*ber.Packet, error) {
	filter := p.Filter
	if filter == "" {
		filter = "(objectClass=*)"
	}
	filterPacket, err := ldap.CompileFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", filter, err)
	}

	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchRequest, nil, "Search Request")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, p.BaseDN, "Base DN"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(p.Scope), "Scope"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, 0, "Deref Aliases"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(p.SizeLimit), "Size Limit"))
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(p.TimeLimit), "Time Limit"))
	op.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, p.TypesOnly, "Types Only"))
	op.AppendChild(filterPacket)
	attrs := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attributes")
	for _, a := range p.Attrs {
		attrs.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, a, "Attribute"))
	}
	op.AppendChild(attrs)
	return op, nil
}

// Attribute is one attribute description with its values, as carried by add
// and modify operations.
type Attribute struct {
	Name   string
	Values []string
}

func attributePacket(a Attribute) *ber.Packet {
	seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attribute")
	seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, a.Name, "Type"))
	set := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "AttributeValue")
	for _, v := range a.Values {
		set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "Vals"))
	}
	seq.AppendChild(set)
	return seq
}

// Add builds an add operation for a new entry.
func Add(dn string, attrs []Attribute) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationAddRequest, nil, "Add Request")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, dn, "DN"))
	list := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attributes")
	for _, a := range attrs {
		list.AppendChild(attributePacket(a))
	}
	op.AppendChild(list)
	return op
}

// Del builds a delete operation. The DN is the whole operation value.
func Del(dn string) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypePrimitive, ApplicationDelRequest, nil, "Del Request")
	op.Value = dn
	op.Data.WriteString(dn)
	return op
}

// Modify change types (RFC 4511 section 4.6).
const (
	ModAdd     = 0
	ModDelete  = 1
	ModReplace = 2
)

// Change is one modification within a modify operation.
type Change struct {
	Op   int
	Attr Attribute
}

// Modify builds a modify operation against an existing entry.
func Modify(dn string, changes []Change) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationModifyRequest, nil, "Modify Request")
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, dn, "DN"))
	list := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Changes")
	for _, ch := range changes {
		seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Change")
		seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(ch.Op), "Operation"))
		seq.AppendChild(attributePacket(ch.Attr))
		list.AppendChild(seq)
	}
	op.AppendChild(list)
	return op
}

// Abandon builds an abandon notification for an outstanding message ID.
// Like unbind, it has no response.
func Abandon(msgID int) *ber.Packet {
	return ber.NewInteger(ber.ClassApplication, ber.TypePrimitive, ApplicationAbandonRequest, int64(msgID), "Abandon Request")
}

// Extended builds an extended operation. A nil value omits the requestValue
// field entirely.
func Extended(oid string, value []byte) *ber.Packet {
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ApplicationExtendedRequest, nil, "Extended Request")
	op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, oid, "Request Name"))
	if value != nil {
		v := ber.Encode(ber.ClassContext, ber.TypePrimitive, 1, nil, "Request Value")
		v.Value = value
		v.Data.Write(value)
		op.AppendChild(v)
	}
	return op
}
