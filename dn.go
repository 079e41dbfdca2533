package ldapline

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ValidDN reports whether s parses as an RFC 4514 distinguished name.
// Operations that require a well-formed DN reject malformed ones before
// anything goes on the wire.
func ValidDN(s string) bool {
	_, err := ldap.ParseDN(s)
	return err == nil
}

// DNComponents splits a DN into its RDN strings, outermost last:
// "uid=jdoe,ou=people,dc=example,dc=com" yields
// ["uid=jdoe", "ou=people", "dc=example", "dc=com"].
func DNComponents(s string) ([]string, error) {
	dn, err := ldap.ParseDN(s)
	if err != nil {
		return nil, usageError("parse-dn", "invalid DN %q: %v", s, err)
	}
	parts := make([]string, 0, len(dn.RDNs))
	for _, rdn := range dn.RDNs {
		attrs := make([]string, 0, len(rdn.Attributes))
		for _, a := range rdn.Attributes {
			attrs = append(attrs, a.Type+"="+EscapeDNValue(a.Value))
		}
		parts = append(parts, strings.Join(attrs, "+"))
	}
	return parts, nil
}

// NormalizeDN rewrites a DN into a canonical form: attribute types
// lower-cased, no whitespace around separators, values re-escaped. Two
// DNs that name the same entry normalize to the same string as long as
// their values agree byte for byte.
func NormalizeDN(s string) (string, error) {
	dn, err := ldap.ParseDN(strings.TrimSpace(s))
	if err != nil {
		return "", usageError("parse-dn", "invalid DN %q: %v", s, err)
	}
	parts := make([]string, 0, len(dn.RDNs))
	for _, rdn := range dn.RDNs {
		attrs := make([]string, 0, len(rdn.Attributes))
		for _, a := range rdn.Attributes {
			attrs = append(attrs, strings.ToLower(a.Type)+"="+EscapeDNValue(a.Value))
		}
		parts = append(parts, strings.Join(attrs, "+"))
	}
	return strings.Join(parts, ","), nil
}

// EqualDN reports whether two DNs name the same entry, comparing their
// normalized forms case-insensitively. Malformed input compares false.
func EqualDN(a, b string) bool {
	na, err := NormalizeDN(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeDN(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(na, nb)
}

// RDNValue returns the value of the first RDN carrying the given
// attribute type: RDNValue("uid=jdoe,ou=people,dc=example,dc=com", "uid")
// yields "jdoe". Empty when no RDN matches.
func RDNValue(dn, attrType string) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", usageError("parse-dn", "invalid DN %q: %v", dn, err)
	}
	for _, rdn := range parsed.RDNs {
		for _, a := range rdn.Attributes {
			if strings.EqualFold(a.Type, attrType) {
				return a.Value, nil
			}
		}
	}
	return "", nil
}

// EscapeDNValue escapes an attribute value for embedding in a DN per
// RFC 4514: the characters , + " \ < > ; everywhere, # and space when
// leading, space when trailing, and NUL as \00.
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}
	var b strings.Builder
	b.Grow(len(value) + 8)
	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';':
			b.WriteRune('\\')
			b.WriteRune(r)
		case '#':
			if i == 0 {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
		case 0:
			b.WriteString("\\00")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapeFilterValue escapes a value for embedding in a search filter per
// RFC 4515.
func EscapeFilterValue(value string) string {
	return ldap.EscapeFilter(value)
}
