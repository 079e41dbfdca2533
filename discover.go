package ldapline

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
)

// serverCandidate is one server produced by SRV discovery, ordered per
// RFC 2782: lower priority first, higher weight first within a priority.
type serverCandidate struct {
	Host     string
	Port     string
	TLS      bool
	Priority int
	Weight   int
	Source   string // "srv" or "fallback"
}

// domainFromDN derives the DNS domain from the dc components of a DN:
// "ou=people,dc=example,dc=com" yields "example.com". Empty when the DN
// has no dc components or does not parse.
func domainFromDN(dn string) string {
	components, err := DNComponents(dn)
	if err != nil {
		return ""
	}
	var labels []string
	for _, rdn := range components {
		if name, value, ok := strings.Cut(rdn, "="); ok && strings.EqualFold(name, "dc") {
			labels = append(labels, value)
		}
	}
	return strings.Join(labels, ".")
}

// discoverServers resolves LDAP servers for a domain through DNS SRV
// records, trying _ldaps._tcp first and _ldap._tcp second. When LDAPS
// records exist the plaintext service is not consulted. With no SRV
// records at all the domain itself on the standard ports is returned as
// a fallback.
func discoverServers(ctx context.Context, domain string) ([]serverCandidate, error) {
	if domain == "" {
		return nil, usageError("connect", "URL has no host and the base DN yields no domain to discover")
	}
	services := []struct {
		name string
		tls  bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
	}

	var out []serverCandidate
	for _, svc := range services {
		_, records, err := net.DefaultResolver.LookupSRV(ctx, "", "", svc.name)
		if err != nil {
			continue
		}
		for _, srv := range records {
			host := strings.TrimSuffix(srv.Target, ".")
			// A single record with target "." means the service is
			// explicitly not offered (RFC 2782).
			if host == "" {
				continue
			}
			out = append(out, serverCandidate{
				Host:     host,
				Port:     strconv.Itoa(int(srv.Port)),
				TLS:      svc.tls,
				Priority: int(srv.Priority),
				Weight:   int(srv.Weight),
				Source:   "srv",
			})
		}
		if svc.tls && len(out) > 0 {
			break
		}
	}

	if len(out) == 0 {
		out = []serverCandidate{
			{Host: domain, Port: "636", TLS: true, Priority: 0, Weight: 100, Source: "fallback"},
			{Host: domain, Port: "389", TLS: false, Priority: 1, Weight: 100, Source: "fallback"},
		}
	}
	sortCandidates(out)
	return out, nil
}

func sortCandidates(candidates []serverCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].Weight > candidates[j].Weight
	})
}

// locate fills in the server address by SRV discovery and dials the
// first candidate that answers. Used when the URL names no host.
func (c *Conn) locate() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	defer cancel()

	domain := domainFromDN(c.cfg.BaseDN)
	candidates, err := discoverServers(ctx, domain)
	if err != nil {
		return err
	}
	c.log.Debug("server discovery", "domain", domain, "candidates", len(candidates))

	var lastErr error
	for _, cand := range candidates {
		c.url.Host = cand.Host
		c.url.Port = cand.Port
		if cand.TLS {
			c.url.Scheme = "ldaps"
		}
		if err := c.dial(); err != nil {
			c.log.Debug("candidate unreachable", "host", cand.Host, "port", cand.Port, "source", cand.Source, "error", err)
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
