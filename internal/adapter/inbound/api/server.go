package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"resumeflow/internal/config"
	"resumeflow/internal/port/inbound"
	"resumeflow/internal/port/outbound"
)

// MiddlewareFunc wraps an http.Handler with additional behavior.
type MiddlewareFunc func(http.Handler) http.Handler

// Server is the HTTP API server.
type Server struct {
	config        *config.Config
	httpServer    *http.Server
	routeRegistry *RouteRegistry
	listener      net.Listener
	isRunning     bool
	mu            sync.Mutex
}

// ServerBuilder assembles a Server from its services and middleware.
type ServerBuilder struct {
	config          *config.Config
	analysisService inbound.AnalysisService
	taskQueries     inbound.TaskQueryService
	exportService   inbound.ExportService
	billingService  inbound.BillingService
	progressStream  outbound.ProgressStream
	healthCheckers  map[string]HealthChecker
	errorHandler    ErrorHandler
	middleware      []MiddlewareFunc
	version         string
}

// NewServerBuilder creates a new ServerBuilder.
func NewServerBuilder(cfg *config.Config) *ServerBuilder {
	return &ServerBuilder{
		config:         cfg,
		healthCheckers: make(map[string]HealthChecker),
	}
}

// WithAnalysisService sets the batch submission service.
func (b *ServerBuilder) WithAnalysisService(service inbound.AnalysisService) *ServerBuilder {
	b.analysisService = service
	return b
}

// WithTaskQueryService sets the task polling service.
func (b *ServerBuilder) WithTaskQueryService(service inbound.TaskQueryService) *ServerBuilder {
	b.taskQueries = service
	return b
}

// WithExportService sets the result export service.
func (b *ServerBuilder) WithExportService(service inbound.ExportService) *ServerBuilder {
	b.exportService = service
	return b
}

// WithBillingService sets the balance and usage service.
func (b *ServerBuilder) WithBillingService(service inbound.BillingService) *ServerBuilder {
	b.billingService = service
	return b
}

// WithProgressStream sets the optional live-progress subscription
// source. When absent the progress websocket route is not registered.
func (b *ServerBuilder) WithProgressStream(stream outbound.ProgressStream) *ServerBuilder {
	b.progressStream = stream
	return b
}

// WithHealthChecker registers a named dependency probe for /health.
func (b *ServerBuilder) WithHealthChecker(name string, checker HealthChecker) *ServerBuilder {
	b.healthCheckers[name] = checker
	return b
}

// WithErrorHandler sets the error handler.
func (b *ServerBuilder) WithErrorHandler(handler ErrorHandler) *ServerBuilder {
	b.errorHandler = handler
	return b
}

// WithMiddleware appends middleware, applied in registration order.
func (b *ServerBuilder) WithMiddleware(middleware ...MiddlewareFunc) *ServerBuilder {
	b.middleware = append(b.middleware, middleware...)
	return b
}

// WithDefaultMiddleware adds the standard recovery, logging and CORS chain.
func (b *ServerBuilder) WithDefaultMiddleware() *ServerBuilder {
	return b.WithMiddleware(
		NewRecoveryMiddleware(),
		NewLoggingMiddleware(),
		NewCORSMiddleware(),
	)
}

// WithVersion sets the version string reported by /health.
func (b *ServerBuilder) WithVersion(version string) *ServerBuilder {
	b.version = version
	return b
}

// Build validates the configuration and assembles the Server.
func (b *ServerBuilder) Build() (*Server, error) {
	if b.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if b.analysisService == nil {
		return nil, fmt.Errorf("analysis service is required")
	}
	if b.taskQueries == nil {
		return nil, fmt.Errorf("task query service is required")
	}
	if b.exportService == nil {
		return nil, fmt.Errorf("export service is required")
	}
	if b.billingService == nil {
		return nil, fmt.Errorf("billing service is required")
	}
	if b.errorHandler == nil {
		b.errorHandler = NewDefaultErrorHandler()
	}

	return b.buildServer(), nil
}

// buildServer creates the Server with all configured components.
func (b *ServerBuilder) buildServer() *Server {
	registry := NewRouteRegistry()

	healthHandler := NewHealthHandler(b.version, b.healthCheckers)
	analysisHandler := NewAnalysisHandler(b.analysisService, b.errorHandler)
	taskHandler := NewTaskHandler(b.taskQueries, b.exportService, b.errorHandler)
	billingHandler := NewBillingHandler(b.billingService, b.errorHandler)

	var progressHandler *ProgressHandler
	if b.progressStream != nil {
		progressHandler = NewProgressHandler(b.progressStream, b.errorHandler)
	}

	registry.RegisterAPIRoutes(healthHandler, analysisHandler, taskHandler, billingHandler, progressHandler)

	// Apply middleware in reverse so the first registered runs outermost.
	var handler http.Handler = registry.BuildServeMux()
	for i := len(b.middleware) - 1; i >= 0; i-- {
		handler = b.middleware[i](handler)
	}

	host := b.config.API.Host
	if host == "" {
		host = "0.0.0.0"
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", host, b.config.API.Port),
		Handler:      handler,
		ReadTimeout:  b.config.API.ReadTimeout,
		WriteTimeout: b.config.API.WriteTimeout,
	}

	return &Server{
		config:        b.config,
		httpServer:    httpServer,
		routeRegistry: registry,
	}
}

// Addr returns the address the server is bound to. Useful with port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Routes returns the route registry for introspection.
func (s *Server) Routes() *RouteRegistry {
	return s.routeRegistry
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = listener
	s.isRunning = true

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}
	}()

	select {
	case <-ctx.Done():
		s.isRunning = false
		_ = listener.Close()
		return ctx.Err()
	default:
		return nil
	}
}

// Shutdown gracefully drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	return s.httpServer.Shutdown(ctx)
}
