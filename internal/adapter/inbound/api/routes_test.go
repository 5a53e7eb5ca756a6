package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler() http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
}

func TestRegisterRoute_ValidPatterns(t *testing.T) {
	patterns := []string{
		"GET /health",
		"POST /organizations/{org_id}/sessions/{session_id}/analyses",
		"GET /sessions/{session_id}/tasks",
		"GET /sessions/{session_id}/tasks/{task_id}",
	}

	registry := NewRouteRegistry()
	for _, pattern := range patterns {
		require.NoError(t, registry.RegisterRoute(pattern, noopHandler()), pattern)
		assert.True(t, registry.HasRoute(pattern))
	}
	assert.Equal(t, len(patterns), registry.RouteCount())
	assert.Equal(t, patterns, registry.GetPatterns())
}

func TestRegisterRoute_InvalidPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"missing path", "GET"},
		{"bad method", "FETCH /tasks"},
		{"path without slash", "GET tasks"},
		{"double slash", "GET /sessions//tasks"},
		{"unclosed brace", "GET /sessions/{session_id/tasks"},
		{"empty parameter", "GET /sessions/{}/tasks"},
		{"bad parameter chars", "GET /sessions/{session-id}/tasks"},
		{"duplicate parameter", "GET /x/{id}/y/{id}"},
		{"unmatched closing brace", "GET /sessions/id}/tasks"},
	}

	registry := NewRouteRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, registry.RegisterRoute(tt.pattern, noopHandler()))
		})
	}
}

func TestRegisterRoute_RejectsDuplicate(t *testing.T) {
	registry := NewRouteRegistry()
	require.NoError(t, registry.RegisterRoute("GET /health", noopHandler()))

	err := registry.RegisterRoute("GET /health", noopHandler())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}
