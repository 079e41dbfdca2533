package ldapline

import (
	"net"
	"net/url"
	"strings"
)

// serverURL is a parsed RFC 4516 LDAP URL. Everything past the host is a
// set of search defaults the session falls back to when a request leaves
// the corresponding field empty.
type serverURL struct {
	Scheme     string
	Host       string
	Port       string
	BaseDN     string
	Attributes []string
	Scope      Scope
	Filter     string
}

// Address returns the host:port to dial.
func (u *serverURL) Address() string {
	return net.JoinHostPort(u.Host, u.Port)
}

// TLS reports whether the URL demands TLS from the first byte.
func (u *serverURL) TLS() bool {
	return u.Scheme == "ldaps"
}

// parseServerURL parses ldap:// and ldaps:// URLs of the form
// scheme://host:port/dn?attributes?scope?filter. Missing trailing fields
// are allowed; a missing port takes the scheme default.
func parseServerURL(raw string) (*serverURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, usageError("connect", "invalid LDAP URL %q: %v", raw, err)
	}
	out := &serverURL{Scheme: strings.ToLower(u.Scheme)}
	switch out.Scheme {
	case "ldap":
		out.Port = "389"
	case "ldaps":
		out.Port = "636"
	default:
		return nil, usageError("connect", "unsupported URL scheme %q, want ldap or ldaps", u.Scheme)
	}
	// An empty host is legal per RFC 4516; the server is then located by
	// SRV discovery from the base DN's dc components.
	out.Host = u.Hostname()
	if p := u.Port(); p != "" {
		out.Port = p
	}

	if dn := strings.TrimPrefix(u.EscapedPath(), "/"); dn != "" {
		out.BaseDN, err = url.PathUnescape(dn)
		if err != nil {
			return nil, usageError("connect", "invalid base DN in URL %q: %v", raw, err)
		}
	}

	// RFC 4516 separates attributes, scope and filter with literal '?',
	// which net/url folds into RawQuery.
	if u.RawQuery == "" {
		return out, nil
	}
	parts := strings.SplitN(u.RawQuery, "?", 3)
	if attrs := parts[0]; attrs != "" {
		for _, a := range strings.Split(attrs, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out.Attributes = append(out.Attributes, a)
			}
		}
	}
	if len(parts) > 1 && parts[1] != "" {
		scope, ok := ParseScope(parts[1])
		if !ok {
			return nil, usageError("connect", "invalid scope %q in URL %q", parts[1], raw)
		}
		out.Scope = scope
	}
	if len(parts) > 2 && parts[2] != "" {
		out.Filter, err = url.QueryUnescape(parts[2])
		if err != nil {
			return nil, usageError("connect", "invalid filter in URL %q: %v", raw, err)
		}
	}
	return out, nil
}
