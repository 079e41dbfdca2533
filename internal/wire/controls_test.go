package wire

import (
	"bytes"
	"testing"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// responseControl frames a paged-results response control the way a server
// sends it: the inner sequence serialized into an opaque OCTET STRING.
func responseControl(cookie []byte) *ber.Packet {
	inner := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "")
	inner.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, 0, ""))
	inner.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(cookie), ""))

	ctrl := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "")
	ctrl.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, OIDPagedResults, ""))
	ctrl.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(inner.Bytes()), ""))
	decoded, _ := ber.DecodePacketErr(ctrl.Bytes())
	return decoded
}

func TestPagedCookie(t *testing.T) {
	cookie, err := PagedCookie([]*ber.Packet{responseControl([]byte("next-page"))})
	if err != nil {
		t.Fatalf("PagedCookie() error = %v", err)
	}
	if !bytes.Equal(cookie, []byte("next-page")) {
		t.Errorf("cookie = %q, want next-page", cookie)
	}
}

func TestPagedCookieFinalPage(t *testing.T) {
	cookie, err := PagedCookie([]*ber.Packet{responseControl(nil)})
	if err != nil {
		t.Fatalf("PagedCookie() error = %v", err)
	}
	if len(cookie) != 0 {
		t.Errorf("cookie = %q, want empty on final page", cookie)
	}
}

func TestPagedCookieMissingControl(t *testing.T) {
	if _, err := PagedCookie(nil); err != ErrNoPagedControl {
		t.Fatalf("PagedCookie(nil) error = %v, want ErrNoPagedControl", err)
	}
	sort, _ := ber.DecodePacketErr(SortControl([]SortKey{{Attribute: "cn"}}).Bytes())
	if _, err := PagedCookie([]*ber.Packet{sort}); err != ErrNoPagedControl {
		t.Fatalf("PagedCookie(sort only) error = %v, want ErrNoPagedControl", err)
	}
}

func TestSortControlShape(t *testing.T) {
	pkt, err := ber.DecodePacketErr(SortControl([]SortKey{
		{Attribute: "sn"},
		{Attribute: "givenName", Reverse: true},
	}).Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := ControlOID(pkt); got != OIDServerSideSort {
		t.Fatalf("OID = %q", got)
	}
	value, err := ber.DecodePacketErr(pkt.Children[1].Data.Bytes())
	if err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if len(value.Children) != 2 {
		t.Fatalf("sort keys = %d, want 2", len(value.Children))
	}
	second := value.Children[1]
	if attr := second.Children[0].Data.String(); attr != "givenName" {
		t.Errorf("second key attribute = %q", attr)
	}
	if len(second.Children) != 2 || second.Children[1].Tag != 1 {
		t.Errorf("second key missing reverse flag: %v", second.Children)
	}
}
