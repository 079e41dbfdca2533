package ad

import (
	"bytes"
	"testing"
)

// bf967aba-0de6-11d0-a285-00aa003049e2 is the schema GUID of the user
// class; its directory encoding flips the first three fields.
var userClassGUIDBytes = []byte{
	0xba, 0x7a, 0x96, 0xbf,
	0xe6, 0x0d,
	0xd0, 0x11,
	0xa2, 0x85, 0x00, 0xaa, 0x00, 0x30, 0x49, 0xe2,
}

const userClassGUID = "bf967aba-0de6-11d0-a285-00aa003049e2"

func TestGUIDToString(t *testing.T) {
	got, err := GUIDToString(userClassGUIDBytes)
	if err != nil {
		t.Fatalf("GUIDToString() error = %v", err)
	}
	if got != userClassGUID {
		t.Errorf("GUIDToString() = %q, want %q", got, userClassGUID)
	}
}

func TestGUIDFromString(t *testing.T) {
	got, err := GUIDFromString(userClassGUID)
	if err != nil {
		t.Fatalf("GUIDFromString() error = %v", err)
	}
	if !bytes.Equal(got, userClassGUIDBytes) {
		t.Errorf("GUIDFromString() = % x, want % x", got, userClassGUIDBytes)
	}
}

func TestGUIDRoundTrip(t *testing.T) {
	raw, err := GUIDFromString(userClassGUID)
	if err != nil {
		t.Fatalf("GUIDFromString() error = %v", err)
	}
	back, err := GUIDToString(raw)
	if err != nil {
		t.Fatalf("GUIDToString() error = %v", err)
	}
	if back != userClassGUID {
		t.Errorf("round trip %q -> %q", userClassGUID, back)
	}
}

func TestGUIDErrors(t *testing.T) {
	if _, err := GUIDToString(userClassGUIDBytes[:8]); err == nil {
		t.Error("GUIDToString(short) error = nil, want error")
	}
	if _, err := GUIDFromString("not-a-guid"); err == nil {
		t.Error("GUIDFromString(malformed) error = nil, want error")
	}
}

func TestGUIDFilter(t *testing.T) {
	got, err := GUIDFilter(userClassGUID)
	if err != nil {
		t.Fatalf("GUIDFilter() error = %v", err)
	}
	want := `(objectGUID=\ba\7a\96\bf\e6\0d\d0\11\a2\85\00\aa\00\30\49\e2)`
	if got != want {
		t.Errorf("GUIDFilter() = %q, want %q", got, want)
	}
}

func TestSwapGUIDSelfInverse(t *testing.T) {
	if !bytes.Equal(swapGUID(swapGUID(userClassGUIDBytes)), userClassGUIDBytes) {
		t.Error("swapGUID applied twice is not the identity")
	}
}
