package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resumeflow/internal/adapter/inbound/api"
	"resumeflow/internal/adapter/outbound/hh"
	"resumeflow/internal/adapter/outbound/messaging"
	"resumeflow/internal/adapter/outbound/notifier"
	"resumeflow/internal/adapter/outbound/repository"
	"resumeflow/internal/application/common/slogger"
	"resumeflow/internal/application/registry"
	"resumeflow/internal/config"
	"resumeflow/internal/version"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// newAPICmd creates and returns the api command.
func newAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Start the API server",
		Long: `Start the HTTP API server that provides REST endpoints for
batch submission, task polling, result export and billing.

The server provides endpoints for:
- Submitting résumé analysis batches
- Polling task outcomes and exporting results as CSV or XLSX
- Balance reads, top-ups and usage history
- Live per-session progress over websockets

Configuration is loaded from config files and environment variables.`,
		Run: func(_ *cobra.Command, _ []string) {
			runAPIServer()
		},
	}
}

func runAPIServer() {
	cfg := GetConfig()

	pool, err := newDatabasePool(cfg)
	if err != nil {
		slogger.ErrorNoCtx("Failed to create database connection pool", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}
	defer pool.Close()

	queue, err := newTaskQueue(cfg)
	if err != nil {
		slogger.ErrorNoCtx("Failed to connect to NATS", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}
	defer func() {
		if err := queue.Disconnect(); err != nil {
			slogger.WarnNoCtx("Failed to disconnect from NATS", slogger.Fields{"error": err.Error()})
		}
	}()

	resumeSource, err := newResumeSource(cfg)
	if err != nil {
		slogger.ErrorNoCtx("Failed to create resume source client", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	serviceRegistry := registry.NewServiceRegistry(
		cfg,
		repository.NewPostgreSQLBalanceLedger(pool),
		repository.NewPostgreSQLTaskRepository(pool),
		repository.NewPostgreSQLUsageRecordRepository(pool),
		repository.NewTransactionManager(pool),
		resumeSource,
		queue,
	)

	builder := api.NewServerBuilder(cfg).
		WithAnalysisService(serviceRegistry.BatchOrchestrator()).
		WithTaskQueryService(serviceRegistry.TaskQueryService()).
		WithExportService(serviceRegistry.ExportService()).
		WithBillingService(serviceRegistry.BillingService()).
		WithErrorHandler(api.NewDefaultErrorHandler()).
		WithDefaultMiddleware().
		WithVersion(version.Get().Version).
		WithHealthChecker("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(ctx)
		}).
		WithHealthChecker("nats", func() error {
			if health := queue.GetConnectionHealth(); !health.Connected {
				return errors.New("nats connection lost")
			}
			return nil
		})

	// Progress streaming is optional: the API degrades to polling when
	// Redis is not reachable.
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	progressStream, err := notifier.NewRedisNotifier(connectCtx, cfg.Redis.URL, cfg.Redis.Password)
	connectCancel()
	if err != nil {
		slogger.WarnNoCtx("Redis unavailable, progress websocket disabled", slogger.Fields{"error": err.Error()})
	} else {
		defer func() {
			if err := progressStream.Close(); err != nil {
				slogger.WarnNoCtx("Failed to close Redis connection", slogger.Fields{"error": err.Error()})
			}
		}()
		builder = builder.WithProgressStream(progressStream)
	}

	server, err := builder.Build()
	if err != nil {
		slogger.ErrorNoCtx("Failed to build server", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer startCancel()
	if err := server.Start(startCtx); err != nil {
		slogger.ErrorNoCtx("Failed to start server", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	slogger.InfoNoCtx("API server started", slogger.Fields{"address": server.Addr()})

	gracefulShutdown(server)
}

// gracefulShutdown blocks until SIGINT/SIGTERM, then drains the server.
func gracefulShutdown(server *api.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slogger.InfoNoCtx("Received signal, shutting down", slogger.Fields{"signal": sig.String()})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slogger.ErrorNoCtx("Error during server shutdown", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	slogger.InfoNoCtx("API server shut down gracefully", nil)
}

// newDatabasePool creates the pgx connection pool from configuration.
func newDatabasePool(cfg *config.Config) (*pgxpool.Pool, error) {
	return repository.NewDatabaseConnection(repository.DatabaseConfig{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		Database:       cfg.Database.Name,
		Username:       cfg.Database.User,
		Password:       cfg.Database.Password,
		MaxConnections: cfg.Database.MaxConnections,
		SSLMode:        cfg.Database.SSLMode,
	})
}

// newTaskQueue connects to NATS JetStream and ensures the task stream exists.
func newTaskQueue(cfg *config.Config) (*messaging.NATSTaskQueue, error) {
	queue, err := messaging.NewNATSTaskQueue(cfg.NATS)
	if err != nil {
		return nil, err
	}
	if err := queue.Connect(); err != nil {
		return nil, err
	}
	if err := queue.EnsureStream(); err != nil {
		return nil, err
	}
	return queue, nil
}

// newResumeSource creates the external résumé API client with its cache.
func newResumeSource(cfg *config.Config) (*hh.Client, error) {
	cache := hh.NewResumeCache(hh.ResumeCacheConfig{
		MaxSize: cfg.ResumeSource.CacheSize,
		TTL:     cfg.ResumeSource.CacheTTL,
	})
	return hh.NewClient(&hh.ClientConfig{
		BaseURL:        cfg.ResumeSource.BaseURL,
		Token:          cfg.ResumeSource.Token,
		Timeout:        cfg.ResumeSource.Timeout,
		MaxAttempts:    cfg.ResumeSource.MaxAttempts,
		RequestsPerSec: cfg.ResumeSource.RequestsPerSec,
	}, cache)
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newAPICmd())
}
