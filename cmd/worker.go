package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	inboundmsg "resumeflow/internal/adapter/inbound/messaging"
	"resumeflow/internal/adapter/outbound/llm"
	outboundmsg "resumeflow/internal/adapter/outbound/messaging"
	"resumeflow/internal/adapter/outbound/notifier"
	"resumeflow/internal/adapter/outbound/repository"
	"resumeflow/internal/application/common/slogger"
	"resumeflow/internal/application/registry"
	"resumeflow/internal/application/worker"
	"resumeflow/internal/config"
	"resumeflow/internal/port/outbound"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// newWorkerCmd creates and returns the worker command.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the background analysis worker",
		Long: `Start the background worker that processes analysis tasks from NATS JetStream.

The worker:
- Consumes analysis tasks with a durable queue-group subscription
- Calls the LLM to score each résumé against its vacancy
- Records usage and debits the organization ledger atomically
- Publishes best-effort progress events over Redis Pub/Sub
- Retries infrastructure failures via redelivery; business failures
  mark the task failed and never block the rest of the batch

Configuration is loaded from config files and environment variables.`,
		Run: func(_ *cobra.Command, _ []string) {
			runWorker()
		},
	}
}

func runWorker() {
	cfg := GetConfig()

	slogger.InfoNoCtx("Starting analysis worker", slogger.Fields{
		"concurrency": cfg.Worker.Concurrency,
		"queue_group": cfg.Worker.QueueGroup,
	})

	pool, err := newDatabasePool(cfg)
	if err != nil {
		slogger.ErrorNoCtx("Failed to create database connection pool", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}
	defer pool.Close()

	// The stream must exist before the durable consumer binds to it.
	queue, err := newTaskQueue(cfg)
	if err != nil {
		slogger.ErrorNoCtx("Failed to prepare task stream", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}
	defer func() {
		if err := queue.Disconnect(); err != nil {
			slogger.WarnNoCtx("Failed to disconnect from NATS", slogger.Fields{"error": err.Error()})
		}
	}()

	processor, cleanup, err := newTaskProcessor(cfg, pool)
	if err != nil {
		slogger.ErrorNoCtx("Failed to create task processor", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}
	defer cleanup()

	consumer, err := inboundmsg.NewNATSConsumer(
		inboundmsg.ConsumerConfig{
			Subject:       outboundmsg.TaskSubject,
			QueueGroup:    cfg.Worker.QueueGroup,
			DurableName:   cfg.Worker.QueueGroup,
			AckWait:       cfg.Worker.AckWait,
			MaxDeliver:    cfg.Worker.MaxDeliver,
			MaxAckPending: cfg.Worker.Concurrency * 2,
			TaskTimeout:   cfg.Worker.TaskTimeout,
			Concurrency:   cfg.Worker.Concurrency,
		},
		cfg.NATS,
		processor,
	)
	if err != nil {
		slogger.ErrorNoCtx("Failed to create consumer", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = consumer.Start(startCtx)
	startCancel()
	if err != nil {
		slogger.ErrorNoCtx("Failed to start consumer", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	slogger.InfoNoCtx("Analysis worker started", slogger.Fields{
		"subject": consumer.Subject(),
		"durable": consumer.DurableName(),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slogger.InfoNoCtx("Received signal, shutting down", slogger.Fields{"signal": sig.String()})

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := consumer.Stop(stopCtx); err != nil {
		slogger.ErrorNoCtx("Error stopping consumer", slogger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	slogger.InfoNoCtx("Analysis worker shut down gracefully", nil)
}

// newTaskProcessor assembles the worker-side processing pipeline.
// The returned cleanup closes the optional Redis connection.
func newTaskProcessor(cfg *config.Config, pool *pgxpool.Pool) (*worker.TaskProcessor, func(), error) {
	pricing, err := config.LoadPricingTable(cfg.Billing.PricingFile, cfg.Billing.ConversionRate)
	if err != nil {
		return nil, nil, err
	}

	llmClient, err := llm.NewClient(&llm.ClientConfig{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
	})
	if err != nil {
		return nil, nil, err
	}

	// Progress events are best-effort; the worker runs without them
	// when Redis is not reachable.
	cleanup := func() {}
	var notify outbound.Notifier
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisNotifier, err := notifier.NewRedisNotifier(connectCtx, cfg.Redis.URL, cfg.Redis.Password)
	connectCancel()
	if err != nil {
		slogger.WarnNoCtx("Redis unavailable, progress events disabled", slogger.Fields{"error": err.Error()})
	} else {
		notify = redisNotifier
		cleanup = func() {
			if err := redisNotifier.Close(); err != nil {
				slogger.WarnNoCtx("Failed to close Redis connection", slogger.Fields{"error": err.Error()})
			}
		}
	}

	metrics, err := worker.NewTaskMetrics()
	if err != nil {
		slogger.WarnNoCtx("Metrics unavailable", slogger.Fields{"error": err.Error()})
		metrics = nil
	}

	serviceRegistry := registry.NewServiceRegistry(
		cfg,
		repository.NewPostgreSQLBalanceLedger(pool),
		repository.NewPostgreSQLTaskRepository(pool),
		repository.NewPostgreSQLUsageRecordRepository(pool),
		repository.NewTransactionManager(pool),
		nil, // the worker never resolves résumé texts
		nil, // nor publishes new tasks
	)

	processor, err := serviceRegistry.TaskProcessor(llmClient, notify, pricing, metrics)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return processor, cleanup, nil
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newWorkerCmd())
}
