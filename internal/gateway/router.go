// Package gateway is the public entry point: it matches request paths against
// a static route table, verifies bearer tokens on identity-required routes and
// reverse-proxies to the private backend services.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"

	"cloudnotes/internal/config"
)

// ErrDuplicatePrefix is returned by NewRouteTable when two rules normalize to
// the same prefix.
var ErrDuplicatePrefix = errors.New("duplicate route prefix")

// RouteRule maps a public path prefix to a backend.
type RouteRule struct {
	Prefix           string   `json:"prefix"`
	Backend          string   `json:"backend"`
	Rewrite          string   `json:"rewrite"`
	RequiresIdentity bool     `json:"requiresIdentity"`
	Methods          []string `json:"methods,omitempty"`
}

// allowsMethod reports whether the rule applies to method. An empty Methods
// list matches everything.
func (r RouteRule) allowsMethod(method string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	return slices.ContainsFunc(r.Methods, func(m string) bool { return strings.EqualFold(m, method) })
}

// matches reports whether path falls under the rule's prefix on a segment
// boundary: /api/notes matches /api/notes/1 but never /api/notesx.
func (r RouteRule) matches(path string) bool {
	if r.Prefix == "/" {
		return true
	}
	return path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/")
}

// RewritePath replaces the matched prefix of path with the rule's Rewrite.
func (r RouteRule) RewritePath(path string) string {
	rest := path
	if r.Prefix != "/" {
		rest = strings.TrimPrefix(path, r.Prefix)
	}
	out := r.Rewrite + rest
	if out == "" {
		return "/"
	}
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}

// RouteTable is an immutable, validated set of rules ordered longest prefix
// first. It is safe for concurrent reads.
type RouteTable struct {
	rules    []RouteRule
	backends map[string]*url.URL
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// NewRouteTable validates rules and builds the lookup table. Empty or
// relative prefixes, unparsable backends and duplicate prefixes are rejected.
func NewRouteTable(rules []RouteRule) (*RouteTable, error) {
	t := &RouteTable{
		rules:    make([]RouteRule, 0, len(rules)),
		backends: make(map[string]*url.URL),
	}
	seen := make(map[string]struct{}, len(rules))

	for i, rule := range rules {
		rule.Prefix = normalizePrefix(rule.Prefix)
		if rule.Prefix == "" || !strings.HasPrefix(rule.Prefix, "/") {
			return nil, fmt.Errorf("route %d: prefix %q must start with /", i, rule.Prefix)
		}
		if _, dup := seen[rule.Prefix]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePrefix, rule.Prefix)
		}
		seen[rule.Prefix] = struct{}{}

		u, err := url.Parse(rule.Backend)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("route %s: invalid backend %q", rule.Prefix, rule.Backend)
		}
		if rule.Rewrite != "" && !strings.HasPrefix(rule.Rewrite, "/") {
			return nil, fmt.Errorf("route %s: rewrite %q must start with /", rule.Prefix, rule.Rewrite)
		}
		rule.Rewrite = strings.TrimRight(rule.Rewrite, "/")
		rule.Methods = slices.Clone(rule.Methods)

		t.backends[rule.Backend] = u
		t.rules = append(t.rules, rule)
	}

	sort.SliceStable(t.rules, func(a, b int) bool {
		return len(t.rules[a].Prefix) > len(t.rules[b].Prefix)
	})
	return t, nil
}

// Resolve returns the rule with the longest prefix matching path that also
// accepts method.
func (t *RouteTable) Resolve(method, path string) (RouteRule, bool) {
	for _, rule := range t.rules {
		if rule.matches(path) && rule.allowsMethod(method) {
			return rule, true
		}
	}
	return RouteRule{}, false
}

// Rules returns a copy of the rules in match order.
func (t *RouteTable) Rules() []RouteRule {
	return slices.Clone(t.rules)
}

// Backends returns the parsed URL of every distinct backend.
func (t *RouteTable) Backends() map[string]*url.URL {
	out := make(map[string]*url.URL, len(t.backends))
	for k, v := range t.backends {
		out[k] = v
	}
	return out
}

// DefaultRoutes is the route table of the stock deployment.
func DefaultRoutes(cfg *config.GatewayConfig) []RouteRule {
	return []RouteRule{
		{Prefix: "/api/auth", Backend: cfg.AuthServiceURL, Rewrite: "/auth"},
		{Prefix: "/api/auth/profile", Backend: cfg.AuthServiceURL, Rewrite: "/auth/profile", RequiresIdentity: true},
		{Prefix: "/api/notes", Backend: cfg.NotesServiceURL, Rewrite: "/notes", RequiresIdentity: true},
		{Prefix: "/api/files", Backend: cfg.FilesServiceURL, Rewrite: "/files", RequiresIdentity: true},
		{Prefix: "/api/notifications", Backend: cfg.NotificationsServiceURL, Rewrite: "/notifications", RequiresIdentity: true},
	}
}

// LoadRoutes returns the rules from cfg.RoutesFile when set, DefaultRoutes
// otherwise.
func LoadRoutes(cfg *config.GatewayConfig) ([]RouteRule, error) {
	if cfg.RoutesFile == "" {
		return DefaultRoutes(cfg), nil
	}

	b, err := os.ReadFile(cfg.RoutesFile)
	if err != nil {
		return nil, fmt.Errorf("reading routes file: %w", err)
	}
	var rules []RouteRule
	if err := json.Unmarshal(b, &rules); err != nil {
		return nil, fmt.Errorf("parsing routes file %s: %w", cfg.RoutesFile, err)
	}
	return rules, nil
}
