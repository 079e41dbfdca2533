package ad

import (
	"bytes"
	"testing"
)

// domainAdminsSID is the binary objectSid of a domain Administrators
// group, RID 512.
var domainAdminsSID = []byte{
	0x01, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
	0x15, 0x00, 0x00, 0x00,
	0xdc, 0xf4, 0xdc, 0x3b,
	0x83, 0x3d, 0x2b, 0x46,
	0x82, 0x8b, 0xa6, 0x28,
	0x00, 0x02, 0x00, 0x00,
}

const domainAdminsString = "S-1-5-21-1004336348-1177238915-682003330-512"

func TestSIDToString(t *testing.T) {
	got, err := SIDToString(domainAdminsSID)
	if err != nil {
		t.Fatalf("SIDToString() error = %v", err)
	}
	if got != domainAdminsString {
		t.Errorf("SIDToString() = %q, want %q", got, domainAdminsString)
	}
}

func TestSIDFromString(t *testing.T) {
	got, err := SIDFromString(domainAdminsString)
	if err != nil {
		t.Fatalf("SIDFromString() error = %v", err)
	}
	if !bytes.Equal(got, domainAdminsSID) {
		t.Errorf("SIDFromString() = % x, want % x", got, domainAdminsSID)
	}
}

func TestSIDRoundTrip(t *testing.T) {
	for _, s := range []string{
		"S-1-5-18",
		"S-1-5-21-1-2-3-500",
		domainAdminsString,
	} {
		raw, err := SIDFromString(s)
		if err != nil {
			t.Fatalf("SIDFromString(%q) error = %v", s, err)
		}
		back, err := SIDToString(raw)
		if err != nil {
			t.Fatalf("SIDToString() error = %v", err)
		}
		if back != s {
			t.Errorf("round trip %q -> %q", s, back)
		}
	}
}

func TestSIDFromStringErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no prefix", "1-5-21"},
		{"wrong prefix", "X-1-5-21"},
		{"bad revision", "S-x-5"},
		{"bad authority", "S-1-x"},
		{"bad subauthority", "S-1-5-abc"},
		{"subauthority overflow", "S-1-5-4294967296"},
		{"too many subauthorities", "S-1-5-1-2-3-4-5-6-7-8-9-10-11-12-13-14-15-16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SIDFromString(tt.in); err == nil {
				t.Errorf("SIDFromString(%q) error = nil, want error", tt.in)
			}
		})
	}
}

func TestSIDToStringErrors(t *testing.T) {
	if _, err := SIDToString(domainAdminsSID[:6]); err == nil {
		t.Error("SIDToString(short) error = nil, want error")
	}
	// Header claims 5 subauthorities but the body holds 2.
	truncated := append([]byte{}, domainAdminsSID[:16]...)
	if _, err := SIDToString(truncated); err == nil {
		t.Error("SIDToString(truncated) error = nil, want error")
	}
}

func TestRID(t *testing.T) {
	got, err := RID(domainAdminsSID)
	if err != nil {
		t.Fatalf("RID() error = %v", err)
	}
	if got != 512 {
		t.Errorf("RID() = %d, want 512", got)
	}
}

func TestSIDFilter(t *testing.T) {
	got, err := SIDFilter("S-1-5-18")
	if err != nil {
		t.Fatalf("SIDFilter() error = %v", err)
	}
	want := `(objectSid=\01\01\00\00\00\00\00\05\12\00\00\00)`
	if got != want {
		t.Errorf("SIDFilter() = %q, want %q", got, want)
	}
}

func TestIsWellKnownSID(t *testing.T) {
	tests := []struct {
		sid  string
		want bool
	}{
		{"S-1-5-18", true},
		{"S-1-5-19", true},
		{"S-1-1-0", true},
		{"S-1-3-0", true},
		{domainAdminsString, false},
		{"S-1-5-21-1-2-3-500", false},
	}
	for _, tt := range tests {
		if got := IsWellKnownSID(tt.sid); got != tt.want {
			t.Errorf("IsWellKnownSID(%q) = %v, want %v", tt.sid, got, tt.want)
		}
	}
}
