package mock

import (
	"context"
	"sync"

	"resumeflow/internal/port/outbound"
)

// LLMClient is a scripted LLMClient. Responses are served in order;
// errors can be injected per call.
type LLMClient struct {
	mu        sync.Mutex
	responses []llmScript
	callCount int

	// DefaultAnalysis is returned when the script is exhausted.
	DefaultAnalysis *outbound.LLMAnalysis
}

type llmScript struct {
	analysis *outbound.LLMAnalysis
	err      error
}

// NewLLMClient creates a scripted LLM client with a benign default answer.
func NewLLMClient() *LLMClient {
	return &LLMClient{
		DefaultAnalysis: &outbound.LLMAnalysis{
			Result:      map[string]any{"score": 50.0, "verdict": "average"},
			TokensSpent: 1000,
		},
	}
}

// EnqueueAnalysis scripts one successful answer.
func (c *LLMClient) EnqueueAnalysis(analysis *outbound.LLMAnalysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, llmScript{analysis: analysis})
}

// EnqueueError scripts one failing call.
func (c *LLMClient) EnqueueError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, llmScript{err: err})
}

func (c *LLMClient) Analyze(_ context.Context, _ []outbound.LLMMessage) (*outbound.LLMAnalysis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.callCount++
	if len(c.responses) > 0 {
		next := c.responses[0]
		c.responses = c.responses[1:]
		if next.err != nil {
			return nil, next.err
		}
		return next.analysis, nil
	}
	return c.DefaultAnalysis, nil
}

// CallCount returns how many analyses were requested.
func (c *LLMClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callCount
}

// ResumeSource is an in-memory ResumeSource backed by fixed maps.
type ResumeSource struct {
	mu sync.Mutex

	// Vacancies maps vacancy ref to its applicant résumé ids.
	Vacancies map[string][]string
	// Resumes maps résumé ref to its text.
	Resumes map[string]string
	// FetchErrors maps résumé ref to an injected fetch error.
	FetchErrors map[string]error
	// ListError, when set, fails every ListResumeIDs call.
	ListError error

	fetchCalls map[string]int
}

// NewResumeSource creates an empty in-memory résumé source.
func NewResumeSource() *ResumeSource {
	return &ResumeSource{
		Vacancies:   make(map[string][]string),
		Resumes:     make(map[string]string),
		FetchErrors: make(map[string]error),
		fetchCalls:  make(map[string]int),
	}
}

func (s *ResumeSource) ListResumeIDs(_ context.Context, vacancyRef string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListError != nil {
		return nil, s.ListError
	}
	return s.Vacancies[vacancyRef], nil
}

func (s *ResumeSource) FetchResume(_ context.Context, resumeRef string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetchCalls[resumeRef]++
	if err, ok := s.FetchErrors[resumeRef]; ok {
		return "", err
	}
	return s.Resumes[resumeRef], nil
}

// FetchCalls returns how many times the résumé was fetched.
func (s *ResumeSource) FetchCalls(resumeRef string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls[resumeRef]
}

// Notifier records published events in memory.
type Notifier struct {
	mu     sync.Mutex
	events []PublishedEvent

	// PublishError, when set, fails every publish.
	PublishError error
}

// PublishedEvent is one recorded notification.
type PublishedEvent struct {
	Channel string
	Payload any
}

// NewNotifier creates an in-memory notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Publish(_ context.Context, channel string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.PublishError != nil {
		return n.PublishError
	}
	n.events = append(n.events, PublishedEvent{Channel: channel, Payload: payload})
	return nil
}

// Events returns all recorded events.
func (n *Notifier) Events() []PublishedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]PublishedEvent, len(n.events))
	copy(out, n.events)
	return out
}

// TaskQueue records published task messages, optionally forwarding
// them to a handler to simulate a live worker.
type TaskQueue struct {
	mu       sync.Mutex
	messages []outbound.TaskMessage

	// PublishError, when set, fails every publish.
	PublishError error
	// Handler, when set, is invoked synchronously for every message.
	Handler func(ctx context.Context, message outbound.TaskMessage)
}

// NewTaskQueue creates an in-memory task queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

func (q *TaskQueue) PublishTask(ctx context.Context, message outbound.TaskMessage) error {
	q.mu.Lock()
	if q.PublishError != nil {
		defer q.mu.Unlock()
		return q.PublishError
	}
	q.messages = append(q.messages, message)
	handler := q.Handler
	q.mu.Unlock()

	if handler != nil {
		handler(ctx, message)
	}
	return nil
}

// Messages returns all published task messages.
func (q *TaskQueue) Messages() []outbound.TaskMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]outbound.TaskMessage, len(q.messages))
	copy(out, q.messages)
	return out
}

// ProgressStream is an in-memory progress subscription source. Tests
// push payloads into the channel returned by Emit.
type ProgressStream struct {
	SubscribeError error

	mu       sync.Mutex
	channels map[string]chan []byte
}

// NewProgressStream creates an in-memory progress stream.
func NewProgressStream() *ProgressStream {
	return &ProgressStream{channels: make(map[string]chan []byte)}
}

func (s *ProgressStream) SubscribeProgress(ctx context.Context, channel string) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SubscribeError != nil {
		return nil, s.SubscribeError
	}
	ch, ok := s.channels[channel]
	if !ok {
		ch = make(chan []byte, 16)
		s.channels[channel] = ch
	}
	return ch, nil
}

// Emit delivers one payload to the channel's subscriber buffer.
func (s *ProgressStream) Emit(channel string, payload []byte) {
	s.mu.Lock()
	ch, ok := s.channels[channel]
	if !ok {
		ch = make(chan []byte, 16)
		s.channels[channel] = ch
	}
	s.mu.Unlock()
	ch <- payload
}

// CloseChannel ends the subscription for a channel.
func (s *ProgressStream) CloseChannel(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[channel]; ok {
		close(ch)
		delete(s.channels, channel)
	}
}
