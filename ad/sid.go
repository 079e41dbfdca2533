package ad

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/go-objectsid"
)

// minimum SID size: revision, count, 6-byte authority.
const sidHeaderLen = 8

// SIDToString decodes a binary objectSid value into its S-1-... form.
func SIDToString(raw []byte) (string, error) {
	if err := validateSIDBytes(raw); err != nil {
		return "", err
	}
	sid := objectsid.Decode(raw)
	return sid.String(), nil
}

// SIDFromString encodes an S-1-... SID string into the binary form the
// directory stores: one revision byte, a subauthority count, a 6-byte
// big-endian identifier authority and little-endian 32-bit
// subauthorities.
func SIDFromString(s string) ([]byte, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 3 || !strings.EqualFold(parts[0], "S") {
		return nil, fmt.Errorf("ad: invalid SID string %q", s)
	}
	revision, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("ad: invalid SID revision in %q: %w", s, err)
	}
	authority, err := strconv.ParseUint(parts[2], 10, 48)
	if err != nil {
		return nil, fmt.Errorf("ad: invalid SID authority in %q: %w", s, err)
	}
	subs := parts[3:]
	if len(subs) > 15 {
		return nil, fmt.Errorf("ad: SID %q has %d subauthorities, limit is 15", s, len(subs))
	}

	out := make([]byte, sidHeaderLen+4*len(subs))
	out[0] = byte(revision)
	out[1] = byte(len(subs))
	// The authority is 48 bits, stored big-endian in bytes 2..7.
	for i := 0; i < 6; i++ {
		out[7-i] = byte(authority >> (8 * i))
	}
	for i, sub := range subs {
		v, err := strconv.ParseUint(sub, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("ad: invalid SID subauthority %q in %q: %w", sub, s, err)
		}
		binary.LittleEndian.PutUint32(out[sidHeaderLen+4*i:], uint32(v))
	}
	return out, nil
}

// SIDFilter builds a search filter matching objectSid against a SID
// string, using the binary encoding the directory requires.
func SIDFilter(s string) (string, error) {
	raw, err := SIDFromString(s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range raw {
		fmt.Fprintf(&b, "\\%02x", c)
	}
	return fmt.Sprintf("(objectSid=%s)", b.String()), nil
}

// RID returns the relative identifier, the final subauthority of the SID.
func RID(raw []byte) (uint32, error) {
	if err := validateSIDBytes(raw); err != nil {
		return 0, err
	}
	count := int(raw[1])
	if count == 0 {
		return 0, fmt.Errorf("ad: SID has no subauthorities")
	}
	return binary.LittleEndian.Uint32(raw[sidHeaderLen+4*(count-1):]), nil
}

// IsWellKnownSID reports whether the SID string names one of the
// built-in authorities rather than a domain principal.
func IsWellKnownSID(s string) bool {
	prefixes := []string{
		"S-1-0", "S-1-1", "S-1-2", "S-1-3", "S-1-4",
		"S-1-5-18", "S-1-5-19", "S-1-5-20",
	}
	for _, p := range prefixes {
		if s == p || strings.HasPrefix(s, p+"-") {
			return true
		}
	}
	return false
}

func validateSIDBytes(raw []byte) error {
	if len(raw) < sidHeaderLen {
		return fmt.Errorf("ad: SID too short: %d bytes", len(raw))
	}
	count := int(raw[1])
	if want := sidHeaderLen + 4*count; len(raw) < want {
		return fmt.Errorf("ad: SID truncated: %d subauthorities need %d bytes, have %d", count, want, len(raw))
	}
	return nil
}

// sidLen returns the encoded length of the SID starting at raw.
func sidLen(raw []byte) (int, error) {
	if err := validateSIDBytes(raw); err != nil {
		return 0, err
	}
	return sidHeaderLen + 4*int(raw[1]), nil
}
