package api

import (
	"net/http"
	"time"
)

// HealthChecker reports whether one dependency is reachable.
type HealthChecker func() error

// HealthHandler handles health check requests.
type HealthHandler struct {
	version  string
	checkers map[string]HealthChecker
}

// NewHealthHandler creates a new HealthHandler. Checkers are optional;
// with none registered the endpoint reports process liveness only.
func NewHealthHandler(version string, checkers map[string]HealthChecker) *HealthHandler {
	if checkers == nil {
		checkers = make(map[string]HealthChecker)
	}
	return &HealthHandler{
		version:  version,
		checkers: checkers,
	}
}

type healthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// GetHealth handles GET /health. A single failing dependency degrades
// the report to 503 so load balancers stop routing new work here.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now().UTC(),
	}

	status := http.StatusOK
	if len(h.checkers) > 0 {
		response.Dependencies = make(map[string]string, len(h.checkers))
		for name, check := range h.checkers {
			if err := check(); err != nil {
				response.Dependencies[name] = err.Error()
				response.Status = "unhealthy"
				status = http.StatusServiceUnavailable
			} else {
				response.Dependencies[name] = "ok"
			}
		}
	}

	if err := WriteJSON(w, status, response); err != nil {
		_ = err
	}
}
