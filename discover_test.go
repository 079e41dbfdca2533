package ldapline

import (
	"context"
	"testing"
)

func TestDomainFromDN(t *testing.T) {
	tests := []struct {
		dn   string
		want string
	}{
		{"dc=example,dc=com", "example.com"},
		{"ou=people,dc=example,dc=com", "example.com"},
		{"uid=jdoe,ou=people,dc=corp,dc=example,dc=co,dc=uk", "corp.example.co.uk"},
		{"DC=Example,DC=Com", "Example.Com"},
		{"ou=people", ""},
		{"not a dn", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := domainFromDN(tt.dn); got != tt.want {
			t.Errorf("domainFromDN(%q) = %q, want %q", tt.dn, got, tt.want)
		}
	}
}

func TestSortCandidates(t *testing.T) {
	candidates := []serverCandidate{
		{Host: "c", Priority: 10, Weight: 50},
		{Host: "a", Priority: 0, Weight: 10},
		{Host: "b", Priority: 0, Weight: 90},
		{Host: "d", Priority: 20, Weight: 100},
	}
	sortCandidates(candidates)
	want := []string{"b", "a", "c", "d"}
	for i, w := range want {
		if candidates[i].Host != w {
			t.Fatalf("order = %v, want %v", candidates, want)
		}
	}
}

func TestDiscoverServersEmptyDomain(t *testing.T) {
	_, err := discoverServers(context.Background(), "")
	if err == nil {
		t.Error("discoverServers(\"\") error = nil, want usage error")
	}
}
