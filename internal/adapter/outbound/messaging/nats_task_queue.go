// Package messaging provides the NATS JetStream task queue adapter.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"resumeflow/internal/config"
	"resumeflow/internal/port/outbound"
)

const (
	// StreamName is the JetStream stream holding analysis tasks.
	StreamName = "ANALYSIS"

	// TaskSubject is the subject analysis tasks are published on.
	TaskSubject = "analysis.task"

	natsConnectionTimeoutSeconds = 5
	streamMaxAgeHours            = 24
)

// ConnectionHealthStatus represents the health status of the NATS connection.
type ConnectionHealthStatus struct {
	Connected    bool          `json:"connected"`
	LastError    string        `json:"last_error,omitempty"`
	Uptime       time.Duration `json:"uptime"`
	Reconnects   int           `json:"reconnects"`
	LastPingTime time.Time     `json:"last_ping_time"`
}

// PublishMetrics tracks task publishing metrics.
type PublishMetrics struct {
	PublishedCount    int64         `json:"published_count"`
	FailedCount       int64         `json:"failed_count"`
	AverageLatency    time.Duration `json:"average_latency"`
	LastPublishedTime time.Time     `json:"last_published_time"`
}

// NATSTaskQueue provides the NATS JetStream implementation of TaskQueue.
// Publishing trips a circuit breaker after repeated failures so a dead
// broker fails batches fast instead of timing out one task at a time.
type NATSTaskQueue struct {
	config           config.NATSConfig
	conn             *nats.Conn
	js               nats.JetStreamContext
	connectionHealth ConnectionHealthStatus
	metrics          PublishMetrics
	mutex            sync.RWMutex
	connectedAt      time.Time
	reconnectCount   int
	lastError        error

	circuitBreakerOpen bool
	lastFailureTime    time.Time
	failureCount       int
}

// NewNATSTaskQueue creates a task queue publisher. Connect must be
// called before the first publish.
func NewNATSTaskQueue(cfg config.NATSConfig) (*NATSTaskQueue, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL cannot be empty")
	}
	if !strings.HasPrefix(cfg.URL, "nats://") {
		return nil, errors.New("invalid NATS URL scheme")
	}
	if cfg.MaxReconnects < 0 {
		return nil, errors.New("max reconnects cannot be negative")
	}
	if cfg.ReconnectWait < 0 {
		return nil, errors.New("reconnect wait cannot be negative")
	}

	return &NATSTaskQueue{config: cfg}, nil
}

// Connect establishes the connection to the NATS server and opens a
// JetStream context.
func (q *NATSTaskQueue) Connect() error {
	opts := []nats.Option{
		nats.MaxReconnects(q.config.MaxReconnects),
		nats.ReconnectWait(q.config.ReconnectWait),
		nats.Timeout(natsConnectionTimeoutSeconds * time.Second),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			q.mutex.Lock()
			q.reconnectCount++
			q.mutex.Unlock()
			q.updateConnectionHealth(true, nil)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, _ error) {
			q.updateConnectionHealth(false, errors.New("connection lost"))
		}),
	}

	conn, err := nats.Connect(q.config.URL, opts...)
	if err != nil {
		q.updateConnectionHealth(false, err)
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		q.updateConnectionHealth(false, err)
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	q.conn = conn
	q.js = js
	q.updateConnectionHealth(true, nil)
	return nil
}

// Disconnect closes the NATS connection.
func (q *NATSTaskQueue) Disconnect() error {
	if q.conn != nil {
		q.conn.Close()
		q.conn = nil
		q.js = nil
	}
	q.updateConnectionHealth(false, nil)
	return nil
}

// EnsureStream creates the JetStream stream if it doesn't exist.
func (q *NATSTaskQueue) EnsureStream() error {
	if q.js == nil {
		return errors.New("not connected to NATS server")
	}

	streamConfig := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"analysis.>"},
		Storage:   nats.FileStorage,
		Retention: nats.WorkQueuePolicy,
		MaxAge:    streamMaxAgeHours * time.Hour,
		Replicas:  1,
	}

	if _, err := q.js.AddStream(streamConfig); err != nil {
		// Stream may already exist with the same configuration.
		if _, infoErr := q.js.StreamInfo(StreamName); infoErr == nil {
			return nil
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// PublishTask publishes one analysis task message to the durable queue.
func (q *NATSTaskQueue) PublishTask(ctx context.Context, message outbound.TaskMessage) error {
	start := time.Now()

	select {
	case <-ctx.Done():
		q.updateMetrics(false, time.Since(start))
		return ctx.Err()
	default:
	}

	if err := validateTaskMessage(message); err != nil {
		return err
	}

	if q.isCircuitBreakerOpen() {
		q.updateMetrics(false, time.Since(start))
		return errors.New("circuit breaker open: too many recent failures")
	}

	if q.js == nil {
		q.updateMetrics(false, time.Since(start))
		return errors.New("publish failed: not connected to NATS")
	}

	if message.MessageID == "" {
		message.MessageID = uuid.New().String()
	}

	data, err := json.Marshal(message)
	if err != nil {
		q.updateMetrics(false, time.Since(start))
		return fmt.Errorf("failed to marshal task message: %w", err)
	}

	// Synchronous publish so broker-side rejections surface here and
	// count against the circuit breaker.
	if _, err = q.js.Publish(TaskSubject, data, nats.Context(ctx)); err != nil {
		q.updateMetrics(false, time.Since(start))
		return fmt.Errorf("failed to publish task message: %w", err)
	}

	q.updateMetrics(true, time.Since(start))
	return nil
}

func validateTaskMessage(message outbound.TaskMessage) error {
	if message.TaskID == uuid.Nil {
		return errors.New("task ID cannot be nil")
	}
	if message.SessionID == uuid.Nil {
		return errors.New("session ID cannot be nil")
	}
	if message.OrganizationID == uuid.Nil {
		return errors.New("organization ID cannot be nil")
	}
	if message.ResumeRef == "" {
		return errors.New("resume ref cannot be empty")
	}
	return nil
}

// GetConnectionHealth returns the current connection health status.
func (q *NATSTaskQueue) GetConnectionHealth() ConnectionHealthStatus {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	status := q.connectionHealth
	status.Reconnects = q.reconnectCount
	if status.Connected {
		status.Uptime = time.Since(q.connectedAt)
	}
	if q.lastError != nil {
		status.LastError = q.lastError.Error()
	}
	return status
}

// GetPublishMetrics returns current task publishing metrics.
func (q *NATSTaskQueue) GetPublishMetrics() PublishMetrics {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.metrics
}

func (q *NATSTaskQueue) updateConnectionHealth(connected bool, err error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.connectionHealth.Connected = connected
	q.connectionHealth.LastPingTime = time.Now()

	if err != nil {
		q.connectionHealth.LastError = err.Error()
		q.lastError = err
	}

	if connected && q.connectedAt.IsZero() {
		q.connectedAt = time.Now()
	}
}

func (q *NATSTaskQueue) updateMetrics(success bool, latency time.Duration) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if success {
		q.metrics.PublishedCount++
		q.metrics.LastPublishedTime = time.Now()

		if q.metrics.AverageLatency == 0 {
			q.metrics.AverageLatency = latency
		} else {
			// EMA with alpha = 0.1
			q.metrics.AverageLatency = time.Duration(
				0.9*float64(q.metrics.AverageLatency) + 0.1*float64(latency),
			)
		}

		q.failureCount = 0
		q.circuitBreakerOpen = false
	} else {
		q.metrics.FailedCount++
		q.recordFailure()
	}
}

func (q *NATSTaskQueue) recordFailure() {
	const maxFailures = 3

	q.failureCount++
	q.lastFailureTime = time.Now()
	if q.failureCount >= maxFailures {
		q.circuitBreakerOpen = true
	}
}

func (q *NATSTaskQueue) isCircuitBreakerOpen() bool {
	const circuitOpenDuration = 30 * time.Second

	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.circuitBreakerOpen && time.Since(q.lastFailureTime) > circuitOpenDuration {
		q.circuitBreakerOpen = false
		q.failureCount = 0
	}
	return q.circuitBreakerOpen
}
