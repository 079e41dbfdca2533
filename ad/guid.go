package ad

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GUIDToString decodes a binary objectGUID value into its hyphenated
// string form. The directory stores the first three fields little-endian
// and the rest big-endian, unlike RFC 4122 byte order.
func GUIDToString(raw []byte) (string, error) {
	if len(raw) != 16 {
		return "", fmt.Errorf("ad: GUID must be 16 bytes, got %d", len(raw))
	}
	u, err := uuid.FromBytes(swapGUID(raw))
	if err != nil {
		return "", fmt.Errorf("ad: decode GUID: %w", err)
	}
	return u.String(), nil
}

// GUIDFromString encodes a GUID string (hyphenated or compact) into the
// directory's mixed-endian binary form.
func GUIDFromString(s string) ([]byte, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("ad: invalid GUID %q: %w", s, err)
	}
	b := u[:]
	return swapGUID(b), nil
}

// GUIDFilter builds a search filter matching objectGUID against a GUID
// string, escaping each byte of the binary encoding.
func GUIDFilter(s string) (string, error) {
	raw, err := GUIDFromString(s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range raw {
		fmt.Fprintf(&b, "\\%02x", c)
	}
	return fmt.Sprintf("(objectGUID=%s)", b.String()), nil
}

// swapGUID converts between RFC 4122 and directory byte order. The
// transform is its own inverse: Data1 (4 bytes), Data2 and Data3 (2 bytes
// each) are reversed, the final 8 bytes stay put.
func swapGUID(in []byte) []byte {
	out := make([]byte, 16)
	out[0], out[1], out[2], out[3] = in[3], in[2], in[1], in[0]
	out[4], out[5] = in[5], in[4]
	out[6], out[7] = in[7], in[6]
	copy(out[8:], in[8:])
	return out
}
