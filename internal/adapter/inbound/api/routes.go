package api

import (
	"fmt"
	"net/http"
	"strings"
)

// RouteRegistry manages HTTP route registration using Go 1.22+ ServeMux patterns.
type RouteRegistry struct {
	routes   map[string]http.Handler
	patterns []string
	mux      *http.ServeMux
}

// NewRouteRegistry creates a new RouteRegistry.
func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{
		routes:   make(map[string]http.Handler),
		patterns: make([]string, 0),
		mux:      http.NewServeMux(),
	}
}

// RegisterAPIRoutes registers all API routes with their handlers.
func (r *RouteRegistry) RegisterAPIRoutes(
	health *HealthHandler,
	analysis *AnalysisHandler,
	tasks *TaskHandler,
	billing *BillingHandler,
	progress *ProgressHandler,
) {
	register := func(pattern string, handler http.HandlerFunc) {
		if err := r.RegisterRoute(pattern, handler); err != nil {
			panic(fmt.Errorf("failed to register route %q: %w", pattern, err))
		}
	}

	register("GET /health", health.GetHealth)

	register("POST /organizations/{org_id}/sessions/{session_id}/analyses", analysis.SubmitBatch)

	register("GET /sessions/{session_id}/tasks", tasks.ListTasks)
	register("GET /sessions/{session_id}/tasks/export", tasks.ExportTasks)
	register("GET /sessions/{session_id}/tasks/{task_id}", tasks.GetTask)

	register("GET /organizations/{org_id}/balance", billing.GetBalance)
	register("POST /organizations/{org_id}/balance/topup", billing.TopUp)
	register("GET /organizations/{org_id}/usage", billing.ListUsage)

	if progress != nil {
		register("GET /sessions/{session_id}/progress", progress.StreamProgress)
	}
}

// RegisterRoute registers a single route with the given pattern and handler.
func (r *RouteRegistry) RegisterRoute(pattern string, handler http.Handler) error {
	if err := r.validatePattern(pattern); err != nil {
		return err
	}
	if _, exists := r.routes[pattern]; exists {
		return fmt.Errorf("route pattern %q is already registered", pattern)
	}

	r.mux.Handle(pattern, handler)
	r.routes[pattern] = handler
	r.patterns = append(r.patterns, pattern)

	return nil
}

// BuildServeMux returns the configured ServeMux.
func (r *RouteRegistry) BuildServeMux() *http.ServeMux {
	return r.mux
}

// HasRoute checks if a route pattern is registered.
func (r *RouteRegistry) HasRoute(pattern string) bool {
	_, exists := r.routes[pattern]
	return exists
}

// RouteCount returns the number of registered routes.
func (r *RouteRegistry) RouteCount() int {
	return len(r.routes)
}

// GetPatterns returns all registered route patterns.
func (r *RouteRegistry) GetPatterns() []string {
	return r.patterns
}

// validatePattern validates a "METHOD /path" ServeMux pattern.
func (r *RouteRegistry) validatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("route pattern cannot be empty")
	}

	parts := strings.SplitN(pattern, " ", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid route pattern %q: must have format 'METHOD /path'", pattern)
	}

	method, path := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	validMethods := map[string]bool{
		"GET": true, "POST": true, "PUT": true, "DELETE": true,
		"PATCH": true, "HEAD": true, "OPTIONS": true,
	}
	if !validMethods[strings.ToUpper(method)] {
		return fmt.Errorf("invalid HTTP method %q in pattern %q", method, pattern)
	}

	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q in pattern %q must start with '/'", path, pattern)
	}
	if strings.Contains(path, "//") {
		return fmt.Errorf("path %q in pattern %q contains double slashes", path, pattern)
	}
	if strings.ContainsAny(path, "{}") {
		if err := validateParameterSyntax(path, pattern); err != nil {
			return err
		}
	}

	return nil
}

// validateParameterSyntax validates {name} path parameter segments.
func validateParameterSyntax(path, pattern string) error {
	paramNames := make(map[string]bool)

	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '{':
			closing := strings.Index(path[i+1:], "}")
			if closing == -1 {
				return fmt.Errorf("invalid parameter syntax in pattern %q: missing closing brace", pattern)
			}

			paramName := path[i+1 : i+1+closing]
			if !isValidParameterName(paramName) {
				return fmt.Errorf("invalid parameter name %q in pattern %q", paramName, pattern)
			}
			if paramNames[paramName] {
				return fmt.Errorf("duplicate parameter name %q in pattern %q", paramName, pattern)
			}
			paramNames[paramName] = true

			i += closing + 1
		case '}':
			return fmt.Errorf("invalid parameter syntax in pattern %q: unmatched closing brace", pattern)
		}
	}

	return nil
}

func isValidParameterName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
