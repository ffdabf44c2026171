// Package allowlist implements the connection allow-list collaborator of
// spec.md §1/§4.5/§6: a policy check consulted exactly once per connect
// attempt, before any socket is opened.
package allowlist

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// List is a predicate on (host, port). The zero value denies everything;
// use New to build one from a set of entries.
type List struct {
	exact map[string]bool
	hosts map[string]bool // host allowed on any port
}

// New builds a List from entries of the form "host:port" or "host" (any
// port). An empty entries slice denies every connection — callers that
// want "allow everything" must pass an explicit "*" entry.
func New(entries []string) (*List, error) {
	l := &List{
		exact: make(map[string]bool),
		hosts: make(map[string]bool),
	}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if e == "*" {
			l.hosts["*"] = true
			continue
		}
		host, port, err := net.SplitHostPort(e)
		if err != nil {
			// No port component: treat the whole entry as a bare host.
			l.hosts[e] = true
			continue
		}
		if _, err := strconv.Atoi(port); err != nil {
			return nil, fmt.Errorf("allowlist: invalid port in entry %q: %w", e, err)
		}
		l.exact[net.JoinHostPort(host, port)] = true
	}
	return l, nil
}

// Allow reports whether (host, port) may be dialed.
func (l *List) Allow(host string, port int) bool {
	if l == nil {
		return false
	}
	if l.hosts["*"] {
		return true
	}
	if l.hosts[host] {
		return true
	}
	return l.exact[net.JoinHostPort(host, strconv.Itoa(port))]
}

// AllowAll returns a List that permits every host:port, for tests and
// trusted local setups.
func AllowAll() *List {
	l, _ := New([]string{"*"})
	return l
}
