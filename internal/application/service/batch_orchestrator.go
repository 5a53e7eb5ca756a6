// Package service contains the application services behind the inbound
// ports.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"resumeflow/internal/application/common/slogger"
	"resumeflow/internal/application/dto"
	"resumeflow/internal/domain/entity"
	domainerrors "resumeflow/internal/domain/errors/domain"
	"resumeflow/internal/port/outbound"
)

// BatchOrchestratorConfig tunes admission and résumé resolution.
type BatchOrchestratorConfig struct {
	// MinimumBalance is the admission threshold in internal tokens.
	MinimumBalance float64
	// FetchParallel bounds concurrent résumé fetches per batch.
	FetchParallel int
}

// BatchOrchestrator implements AnalysisService. One submission fans out
// into independent tasks: résumés whose text cannot be resolved are
// skipped and reported in the manifest, never aborting the batch.
type BatchOrchestrator struct {
	config       BatchOrchestratorConfig
	ledger       outbound.BalanceLedger
	tasks        outbound.TaskRepository
	resumeSource outbound.ResumeSource
	queue        outbound.TaskQueue
}

// NewBatchOrchestrator creates the batch orchestrator.
func NewBatchOrchestrator(
	config BatchOrchestratorConfig,
	ledger outbound.BalanceLedger,
	tasks outbound.TaskRepository,
	resumeSource outbound.ResumeSource,
	queue outbound.TaskQueue,
) *BatchOrchestrator {
	if config.MinimumBalance <= 0 {
		config.MinimumBalance = 5
	}
	if config.FetchParallel <= 0 {
		config.FetchParallel = 5
	}
	return &BatchOrchestrator{
		config:       config,
		ledger:       ledger,
		tasks:        tasks,
		resumeSource: resumeSource,
		queue:        queue,
	}
}

// SubmitBatch admits, resolves, persists and dispatches one batch.
func (o *BatchOrchestrator) SubmitBatch(ctx context.Context, request dto.SubmitBatchRequest) (*dto.BatchManifest, error) {
	if err := validateSubmitRequest(request); err != nil {
		return nil, err
	}

	balance, err := o.ledger.GetByOrganization(ctx, request.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	if !balance.CanAfford(o.config.MinimumBalance) {
		slogger.Info(ctx, "Batch rejected at admission gate", slogger.Fields2(
			"organization_id", request.OrganizationID.String(),
			"token_count", balance.TokenCount(),
		))
		return nil, domainerrors.ErrInsufficientBalance
	}

	resumeRefs := request.ResumeRefs
	if len(resumeRefs) == 0 {
		resumeRefs, err = o.resumeSource.ListResumeIDs(ctx, request.VacancyRef)
		if err != nil {
			return nil, fmt.Errorf("failed to list resumes for vacancy %s: %w", request.VacancyRef, err)
		}
	}

	resolved, skipped := o.resolveResumeTexts(ctx, resumeRefs)

	manifest := &dto.BatchManifest{
		SkippedResumeRefs: skipped,
	}

	total := len(resolved)
	for i, item := range resolved {
		taskID := uuid.New()
		task := entity.NewAnalysisTask(taskID, request.SessionID, item.ref, request.VacancyRef)

		if err := o.tasks.Create(ctx, task); err != nil {
			slogger.Error(ctx, "Failed to create task, skipping resume", slogger.Fields2(
				"resume_ref", item.ref,
				"error", err.Error(),
			))
			manifest.SkippedResumeRefs = append(manifest.SkippedResumeRefs, item.ref)
			continue
		}

		message := outbound.TaskMessage{
			TaskID:         taskID,
			SessionID:      request.SessionID,
			OrganizationID: request.OrganizationID,
			ResumeRef:      item.ref,
			VacancyRef:     request.VacancyRef,
			VacancyText:    request.VacancyText,
			ResumeText:     item.text,
			Current:        i + 1,
			Total:          total,
			MessageID:      uuid.New().String(),
		}
		if err := o.queue.PublishTask(ctx, message); err != nil {
			// The task row stays pending; redelivery tooling or a
			// resubmission picks it up. The batch keeps going.
			slogger.Error(ctx, "Failed to dispatch task", slogger.Fields2(
				"task_id", taskID.String(),
				"error", err.Error(),
			))
		}

		manifest.DispatchedTaskIDs = append(manifest.DispatchedTaskIDs, taskID)
	}

	manifest.TaskCount = len(manifest.DispatchedTaskIDs)

	slogger.Info(ctx, "Batch submitted", slogger.Fields3(
		"session_id", request.SessionID.String(),
		"dispatched", manifest.TaskCount,
		"skipped", len(manifest.SkippedResumeRefs),
	))

	return manifest, nil
}

type resolvedResume struct {
	index int
	ref   string
	text  string
}

// resolveResumeTexts fetches résumé bodies with bounded parallelism.
// Fetch failures and empty bodies land in skipped; input order is
// preserved in both result slices.
func (o *BatchOrchestrator) resolveResumeTexts(ctx context.Context, resumeRefs []string) ([]resolvedResume, []string) {
	sem := semaphore.NewWeighted(int64(o.config.FetchParallel))

	var mu sync.Mutex
	var wg sync.WaitGroup
	resolved := make([]resolvedResume, 0, len(resumeRefs))
	skippedIndex := make(map[int]string)

	for i, ref := range resumeRefs {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			skippedIndex[i] = ref
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(index int, resumeRef string) {
			defer wg.Done()
			defer sem.Release(1)

			text, err := o.resumeSource.FetchResume(ctx, resumeRef)
			mu.Lock()
			defer mu.Unlock()

			if err != nil || text == "" {
				if err != nil {
					slogger.Warn(ctx, "Skipping unresolvable resume", slogger.Fields2(
						"resume_ref", resumeRef,
						"error", err.Error(),
					))
				}
				skippedIndex[index] = resumeRef
				return
			}
			resolved = append(resolved, resolvedResume{index: index, ref: resumeRef, text: text})
		}(i, ref)
	}

	wg.Wait()

	sort.Slice(resolved, func(a, b int) bool { return resolved[a].index < resolved[b].index })

	skipped := make([]string, 0, len(skippedIndex))
	indices := make([]int, 0, len(skippedIndex))
	for index := range skippedIndex {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	for _, index := range indices {
		skipped = append(skipped, skippedIndex[index])
	}

	return resolved, skipped
}

func validateSubmitRequest(request dto.SubmitBatchRequest) error {
	if request.OrganizationID == uuid.Nil {
		return fmt.Errorf("%w: organization id is required", domainerrors.ErrInvalidInput)
	}
	if request.SessionID == uuid.Nil {
		return fmt.Errorf("%w: session id is required", domainerrors.ErrInvalidInput)
	}
	if request.VacancyRef == "" && request.VacancyText == "" {
		return fmt.Errorf("%w: vacancy ref or text is required", domainerrors.ErrInvalidInput)
	}
	return nil
}
