package gateway

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudnotes/internal/config"
)

func testGatewayConfig() *config.GatewayConfig {
	return &config.GatewayConfig{
		AuthServiceURL:          "http://auth:3001",
		NotesServiceURL:         "http://notes:3002",
		FilesServiceURL:         "http://files:3003",
		NotificationsServiceURL: "http://notifications:3004",
	}
}

func TestResolve_DefaultRoutes(t *testing.T) {
	table, err := NewRouteTable(DefaultRoutes(testGatewayConfig()))
	require.NoError(t, err)

	tests := []struct {
		path         string
		wantFound    bool
		wantPrefix   string
		wantIdentity bool
		wantRewrite  string
	}{
		{"/api/auth/login", true, "/api/auth", false, "/auth/login"},
		{"/api/auth/profile", true, "/api/auth/profile", true, "/auth/profile"},
		{"/api/auth/profile/avatar", true, "/api/auth/profile", true, "/auth/profile/avatar"},
		{"/api/auth/profilex", true, "/api/auth", false, "/auth/profilex"},
		{"/api/notes", true, "/api/notes", true, "/notes"},
		{"/api/notes/", true, "/api/notes", true, "/notes/"},
		{"/api/notes/42", true, "/api/notes", true, "/notes/42"},
		{"/api/notesx", false, "", false, ""},
		{"/api/files/upload", true, "/api/files", true, "/files/upload"},
		{"/api/notifications/history", true, "/api/notifications", true, "/notifications/history"},
		{"/api", false, "", false, ""},
		{"/other", false, "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rule, ok := table.Resolve("GET", tt.path)
			require.Equal(t, tt.wantFound, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantPrefix, rule.Prefix)
			assert.Equal(t, tt.wantIdentity, rule.RequiresIdentity)
			assert.Equal(t, tt.wantRewrite, rule.RewritePath(tt.path))
		})
	}
}

func TestResolve_LongestPrefixIndependentOfOrder(t *testing.T) {
	rules := []RouteRule{
		{Prefix: "/api/auth/profile", Backend: "http://a", Rewrite: "/auth/profile", RequiresIdentity: true},
		{Prefix: "/api/auth", Backend: "http://a", Rewrite: "/auth"},
	}
	for _, order := range [][]RouteRule{rules, {rules[1], rules[0]}} {
		table, err := NewRouteTable(order)
		require.NoError(t, err)
		rule, ok := table.Resolve("GET", "/api/auth/profile")
		require.True(t, ok)
		assert.True(t, rule.RequiresIdentity)
	}
}

func TestResolve_MethodRestriction(t *testing.T) {
	table, err := NewRouteTable([]RouteRule{
		{Prefix: "/api/notes", Backend: "http://notes", Rewrite: "/notes", RequiresIdentity: true},
		{Prefix: "/api/notes/public", Backend: "http://notes", Rewrite: "/notes/public", Methods: []string{"GET"}},
	})
	require.NoError(t, err)

	rule, ok := table.Resolve("get", "/api/notes/public/1")
	require.True(t, ok)
	assert.Equal(t, "/api/notes/public", rule.Prefix)

	rule, ok = table.Resolve("DELETE", "/api/notes/public/1")
	require.True(t, ok)
	assert.Equal(t, "/api/notes", rule.Prefix)
}

func TestNewRouteTable_Validation(t *testing.T) {
	tests := []struct {
		name  string
		rules []RouteRule
		isDup bool
	}{
		{"empty prefix", []RouteRule{{Prefix: "", Backend: "http://a"}}, false},
		{"relative prefix", []RouteRule{{Prefix: "api/notes", Backend: "http://a"}}, false},
		{"bad backend", []RouteRule{{Prefix: "/api", Backend: "not a url"}}, false},
		{"bad rewrite", []RouteRule{{Prefix: "/api", Backend: "http://a", Rewrite: "notes"}}, false},
		{"duplicate", []RouteRule{
			{Prefix: "/api/notes", Backend: "http://a"},
			{Prefix: "/api/notes/", Backend: "http://b"},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouteTable(tt.rules)
			require.Error(t, err)
			assert.Equal(t, tt.isDup, errors.Is(err, ErrDuplicatePrefix))
		})
	}
}

func TestRewritePath_RootRewrite(t *testing.T) {
	rule := RouteRule{Prefix: "/api/legacy", Rewrite: ""}
	assert.Equal(t, "/", rule.RewritePath("/api/legacy"))
	assert.Equal(t, "/x", rule.RewritePath("/api/legacy/x"))
}

func TestLoadRoutes_File(t *testing.T) {
	cfg := testGatewayConfig()

	rules, err := LoadRoutes(cfg)
	require.NoError(t, err)
	assert.Len(t, rules, 5)

	path := filepath.Join(t.TempDir(), "routes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"prefix":"/api/notes","backend":"http://notes-v2:8080","rewrite":"/v2/notes","requiresIdentity":true}
	]`), 0o600))
	cfg.RoutesFile = path

	rules, err = LoadRoutes(cfg)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "http://notes-v2:8080", rules[0].Backend)
	assert.True(t, rules[0].RequiresIdentity)

	cfg.RoutesFile = filepath.Join(t.TempDir(), "missing.json")
	_, err = LoadRoutes(cfg)
	assert.Error(t, err)
}
