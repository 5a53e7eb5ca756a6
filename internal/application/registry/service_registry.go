// Package registry provides service registration and dependency injection for the application.
package registry

import (
	"resumeflow/internal/application/service"
	"resumeflow/internal/application/worker"
	"resumeflow/internal/config"
	"resumeflow/internal/port/outbound"
)

// ServiceRegistry provides centralized service creation and management.
// It acts as a service factory ensuring consistent dependency injection
// patterns across the application.
type ServiceRegistry struct {
	cfg          *config.Config
	ledger       outbound.BalanceLedger
	tasks        outbound.TaskRepository
	usage        outbound.UsageRecordRepository
	tx           outbound.TransactionScope
	resumeSource outbound.ResumeSource
	queue        outbound.TaskQueue
}

// NewServiceRegistry creates a new service registry with required dependencies.
// All dependencies must be non-nil or the function will panic.
func NewServiceRegistry(
	cfg *config.Config,
	ledger outbound.BalanceLedger,
	tasks outbound.TaskRepository,
	usage outbound.UsageRecordRepository,
	tx outbound.TransactionScope,
	resumeSource outbound.ResumeSource,
	queue outbound.TaskQueue,
) *ServiceRegistry {
	if cfg == nil {
		panic("cfg cannot be nil")
	}
	if ledger == nil {
		panic("ledger cannot be nil")
	}
	if tasks == nil {
		panic("tasks cannot be nil")
	}
	if usage == nil {
		panic("usage cannot be nil")
	}
	if tx == nil {
		panic("tx cannot be nil")
	}

	return &ServiceRegistry{
		cfg:          cfg,
		ledger:       ledger,
		tasks:        tasks,
		usage:        usage,
		tx:           tx,
		resumeSource: resumeSource,
		queue:        queue,
	}
}

// BatchOrchestrator returns the configured batch submission service.
func (r *ServiceRegistry) BatchOrchestrator() *service.BatchOrchestrator {
	return service.NewBatchOrchestrator(
		service.BatchOrchestratorConfig{
			MinimumBalance: r.cfg.Billing.MinimumBalance,
			FetchParallel:  r.cfg.ResumeSource.FetchParallel,
		},
		r.ledger, r.tasks, r.resumeSource, r.queue,
	)
}

// TaskQueryService returns the configured task polling service.
func (r *ServiceRegistry) TaskQueryService() *service.DefaultTaskQueryService {
	return service.NewDefaultTaskQueryService(r.tasks)
}

// ExportService returns the configured result export service.
func (r *ServiceRegistry) ExportService() *service.DefaultExportService {
	return service.NewDefaultExportService(r.tasks)
}

// BillingService returns the configured balance and usage service.
func (r *ServiceRegistry) BillingService() *service.DefaultBillingService {
	return service.NewDefaultBillingService(r.ledger, r.usage)
}

// TaskProcessor returns the configured worker-side task processor.
func (r *ServiceRegistry) TaskProcessor(
	llm outbound.LLMClient,
	notify outbound.Notifier,
	pricing *config.PricingTable,
	metrics *worker.TaskMetrics,
) (*worker.TaskProcessor, error) {
	return worker.NewTaskProcessor(
		worker.TaskProcessorConfig{
			MinimumBalance: r.cfg.Billing.MinimumBalance,
			AssistantID:    r.cfg.LLM.AssistantID,
			Pricing:        pricing,
		},
		r.ledger, r.tasks, r.usage, r.tx, llm, notify, metrics,
	)
}
