package outbound

import (
	"context"

	"github.com/google/uuid"
)

// LLMMessage is one element of the structured prompt sent to the LLM.
type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMAnalysis is the structured outcome of one analysis call.
type LLMAnalysis struct {
	Result      map[string]any `json:"result"`
	TokensSpent int            `json:"tokens_spent"`
}

// LLMClient defines the outbound port for the external analysis model.
// Implementations must distinguish a malformed response (missing
// expected keys) from transport errors; both are retryable, while
// request-construction errors are fatal.
type LLMClient interface {
	Analyze(ctx context.Context, messages []LLMMessage) (*LLMAnalysis, error)
}

// ResumeSource defines the outbound port for the external résumé API.
// Both operations are subject to HTTP 429 rate limiting with
// Retry-After support; implementations back off and retry internally up
// to their attempt budget.
type ResumeSource interface {
	// ListResumeIDs enumerates all résumé ids attached to a vacancy,
	// walking every page of the upstream listing.
	ListResumeIDs(ctx context.Context, vacancyRef string) ([]string, error)

	// FetchResume resolves one résumé's text.
	FetchResume(ctx context.Context, resumeRef string) (string, error)
}

// Notifier defines the outbound port for best-effort progress events.
// Publish never blocks task processing on delivery and reports errors
// for logging only.
type Notifier interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// ProgressStream exposes a live subscription to a session's progress
// channel. The returned channel closes when the context is canceled or
// the underlying subscription drops.
type ProgressStream interface {
	SubscribeProgress(ctx context.Context, channel string) (<-chan []byte, error)
}

// TaskMessage is the unit of work handed to the durable queue, one per
// analysis task.
type TaskMessage struct {
	TaskID         uuid.UUID `json:"task_id"`
	SessionID      uuid.UUID `json:"session_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	ResumeRef      string    `json:"resume_ref"`
	VacancyRef     string    `json:"vacancy_ref"`
	VacancyText    string    `json:"vacancy_text"`
	ResumeText     string    `json:"resume_text"`
	Current        int       `json:"current"`
	Total          int       `json:"total"`
	MessageID      string    `json:"message_id"`
}

// TaskQueue defines the outbound port for dispatching tasks to workers
// with at-least-once delivery.
type TaskQueue interface {
	PublishTask(ctx context.Context, message TaskMessage) error
}
