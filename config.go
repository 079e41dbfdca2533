package ldapline

import (
	"crypto/tls"
	"log/slog"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// Mechanism names a bind mechanism. SIMPLE uses a DN/password pair; the
// SASL mechanisms use an authentication identity with optional realm and
// authorization identity.
type Mechanism string

const (
	MechSimple   Mechanism = "SIMPLE"
	MechExternal Mechanism = "EXTERNAL"
	MechGSSAPI   Mechanism = "GSSAPI"
)

// Scope is the breadth of a search. The zero value is "unset" so that a
// request without an explicit scope falls back to the configured default.
type Scope int

const (
	ScopeUnset Scope = iota
	ScopeBase
	ScopeOneLevel
	ScopeSubtree
)

// ParseScope maps the RFC 4516 scope words to a Scope.
func ParseScope(s string) (Scope, bool) {
	switch strings.ToLower(s) {
	case "base":
		return ScopeBase, true
	case "one", "onelevel":
		return ScopeOneLevel, true
	case "sub", "subtree":
		return ScopeSubtree, true
	default:
		return ScopeUnset, false
	}
}

func (s Scope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeOneLevel:
		return "one"
	case ScopeSubtree:
		return "sub"
	default:
		return "unset"
	}
}

// wire returns the protocol encoding of the scope. Only valid for a set
// scope.
func (s Scope) wire() int {
	return int(s) - 1
}

// SortKey names one attribute in a server-side sort specification.
type SortKey struct {
	Attribute    string
	MatchingRule string
	Reverse      bool
}

// Config carries everything a Conn needs at connect time. The zero value
// is not usable; at minimum URL must be set. Connect applies defaults and
// validates before dialing.
type Config struct {
	// URL locates the server: ldap:// or ldaps://, optionally with an
	// RFC 4516 path carrying default base, attributes, scope and filter,
	// e.g. ldap://ds.example.com/ou=people,dc=example,dc=com??sub?(uid=*).
	URL string

	// StartTLS upgrades a plain ldap:// session to TLS after connecting.
	// Ignored for ldaps:// URLs, which are encrypted from the first byte.
	StartTLS bool
	// TLSConfig is used for ldaps:// and StartTLS sessions. Nil means a
	// default configuration with full verification.
	TLSConfig *tls.Config
	// CACertFile adds a PEM CA bundle to the verification roots, on top of
	// (or instead of) the system pool.
	CACertFile string

	Mechanism Mechanism `default:"SIMPLE"`

	// SIMPLE credentials. Both empty means an anonymous bind.
	BindDN   string
	Password string

	// SASL credentials (GSSAPI). AuthzID requests authorization as a
	// different identity where the server allows it.
	AuthcID string
	Realm   string
	AuthzID string

	// Kerberos material for GSSAPI binds, tried in order: credential
	// cache, keytab, AuthcID+Password.
	KerberosConfig string
	KerberosCCache string
	KerberosKeytab string
	KerberosSPN    string

	// Search defaults, used when a request leaves the field empty. Filled
	// from the URL path when it carries them.
	BaseDN     string
	Scope      Scope
	Filter     string
	Attributes []string

	// PageSize enables paged searches when greater than 1. 0 and 1 both
	// disable paging.
	PageSize int
	// SortKeys enables the server-side-sort control when non-empty.
	SortKeys []SortKey

	// Async selects non-blocking result polling: Search returns as soon as
	// the request is on the wire and Result never blocks.
	Async bool

	// DialTimeout bounds connection establishment, not operations.
	DialTimeout time.Duration `default:"30s"`

	// Logger receives debug-level session events. Nil disables logging.
	Logger *slog.Logger
}

// normalize applies struct defaults and folds URL-supplied search defaults
// into the config. Returns the parsed URL for the dialer.
func (c *Config) normalize() (*serverURL, error) {
	if err := defaults.Set(c); err != nil {
		return nil, usageError("connect", "apply config defaults: %v", err)
	}
	c.Mechanism = Mechanism(strings.ToUpper(string(c.Mechanism)))

	u, err := parseServerURL(c.URL)
	if err != nil {
		return nil, err
	}
	if c.BaseDN == "" {
		c.BaseDN = u.BaseDN
	}
	if c.Scope == ScopeUnset {
		c.Scope = u.Scope
	}
	if c.Filter == "" {
		c.Filter = u.Filter
	}
	if len(c.Attributes) == 0 {
		c.Attributes = u.Attributes
	}
	return u, nil
}

// validate checks the credential shape against the chosen mechanism.
// Failures here are usage errors: the caller supplied arguments that can
// never work, as opposed to arguments the server rejected.
func (c *Config) validate() error {
	switch c.Mechanism {
	case MechSimple:
		if c.BindDN == "" && c.Password != "" {
			return usageError("connect", "simple bind requires a bind DN when a password is set")
		}
		if c.AuthcID != "" || c.Realm != "" || c.AuthzID != "" {
			return usageError("connect", "authcid/realm/authzid are SASL credentials; use BindDN and Password for SIMPLE")
		}
	case MechGSSAPI:
		if c.BindDN != "" {
			return usageError("connect", "GSSAPI binds use AuthcID, not BindDN")
		}
		if c.AuthcID == "" && c.KerberosCCache == "" {
			return usageError("connect", "GSSAPI bind requires an authentication identity or a credential cache")
		}
	case MechExternal:
		if c.Password != "" {
			return usageError("connect", "EXTERNAL binds carry no password; identity comes from the secure channel")
		}
	default:
		return usageError("connect", "unsupported bind mechanism %q", c.Mechanism)
	}
	if c.PageSize < 0 {
		return usageError("connect", "page size must be non-negative, got %d", c.PageSize)
	}
	for _, key := range c.SortKeys {
		if key.Attribute == "" {
			return usageError("connect", "sort key with empty attribute name")
		}
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}
