// Package messaging provides the NATS JetStream consumer feeding the
// task processor.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"resumeflow/internal/application/common/slogger"
	"resumeflow/internal/config"
	"resumeflow/internal/port/inbound"
	"resumeflow/internal/port/outbound"
)

// ConsumerConfig holds configuration for the task consumer.
type ConsumerConfig struct {
	Subject       string
	QueueGroup    string
	DurableName   string
	AckWait       time.Duration
	MaxDeliver    int
	MaxAckPending int
	TaskTimeout   time.Duration
	Concurrency   int
}

// ConsumerStats tracks message consumption statistics.
type ConsumerStats struct {
	MessagesReceived  int64
	MessagesProcessed int64
	MessagesFailed    int64
	LastProcessTime   time.Duration
	ActiveSince       time.Time
}

// NATSConsumer subscribes to the task subject and hands each message
// to the processor. Processing failures are NAKed so JetStream
// redelivers up to MaxDeliver; terminal-state idempotence in the
// processor makes redelivery safe.
type NATSConsumer struct {
	config     ConsumerConfig
	natsConfig config.NATSConfig
	processor  inbound.TaskProcessor

	conn    *nats.Conn
	sub     *nats.Subscription
	sem     chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
	stats   ConsumerStats
}

// NewNATSConsumer creates a task consumer with validation.
func NewNATSConsumer(
	consumerConfig ConsumerConfig,
	natsConfig config.NATSConfig,
	processor inbound.TaskProcessor,
) (*NATSConsumer, error) {
	if err := validateConsumerConfig(consumerConfig); err != nil {
		return nil, fmt.Errorf("invalid consumer configuration: %w", err)
	}
	if processor == nil {
		return nil, errors.New("task processor cannot be nil")
	}

	if consumerConfig.TaskTimeout <= 0 {
		consumerConfig.TaskTimeout = 5 * time.Minute
	}
	if consumerConfig.Concurrency <= 0 {
		consumerConfig.Concurrency = 4
	}

	return &NATSConsumer{
		config:     consumerConfig,
		natsConfig: natsConfig,
		processor:  processor,
		sem:        make(chan struct{}, consumerConfig.Concurrency),
		stats:      ConsumerStats{ActiveSince: time.Now()},
	}, nil
}

func validateConsumerConfig(config ConsumerConfig) error {
	if config.Subject == "" {
		return errors.New("subject cannot be empty")
	}
	if config.QueueGroup == "" {
		return errors.New("queue group cannot be empty")
	}
	if config.AckWait <= 0 {
		return errors.New("ack wait duration must be positive")
	}
	if config.MaxDeliver <= 0 {
		return errors.New("max deliver count must be positive")
	}
	return nil
}

// Start connects to NATS and begins consuming tasks.
func (n *NATSConsumer) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return fmt.Errorf("consumer already running for subject %s", n.config.Subject)
	}

	conn, err := nats.Connect(n.natsConfig.URL,
		nats.MaxReconnects(n.natsConfig.MaxReconnects),
		nats.ReconnectWait(n.natsConfig.ReconnectWait),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	sub, err := js.QueueSubscribe(
		n.config.Subject,
		n.config.QueueGroup,
		n.handleMessage,
		nats.Durable(n.config.DurableName),
		nats.ManualAck(),
		nats.AckWait(n.config.AckWait),
		nats.MaxDeliver(n.config.MaxDeliver),
		nats.MaxAckPending(n.config.MaxAckPending),
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.conn = conn
	n.sub = sub
	n.running = true
	n.stats.ActiveSince = time.Now()

	slogger.Info(ctx, "Task consumer started", slogger.Fields2(
		"subject", n.config.Subject,
		"queue_group", n.config.QueueGroup,
	))

	return nil
}

// Stop drains the subscription and waits for in-flight tasks.
func (n *NATSConsumer) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = false
	sub := n.sub
	conn := n.conn
	n.sub = nil
	n.conn = nil
	n.mu.Unlock()

	if sub != nil {
		if err := sub.Drain(); err != nil {
			slogger.Warn(ctx, "Failed to drain subscription", slogger.Field("error", err.Error()))
		}
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slogger.Warn(ctx, "Shutdown deadline reached with tasks in flight", nil)
	}

	if conn != nil {
		conn.Close()
	}

	slogger.Info(ctx, "Task consumer stopped", slogger.Field("subject", n.config.Subject))
	return nil
}

// Subject returns the consumer's subject.
func (n *NATSConsumer) Subject() string {
	return n.config.Subject
}

// QueueGroup returns the consumer's queue group.
func (n *NATSConsumer) QueueGroup() string {
	return n.config.QueueGroup
}

// DurableName returns the consumer's durable name.
func (n *NATSConsumer) DurableName() string {
	return n.config.DurableName
}

// GetStats returns consumer statistics.
func (n *NATSConsumer) GetStats() ConsumerStats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

func (n *NATSConsumer) handleMessage(msg *nats.Msg) {
	n.sem <- struct{}{}
	n.wg.Add(1)

	go func() {
		defer func() {
			<-n.sem
			n.wg.Done()
		}()
		n.processMessage(msg)
	}()
}

func (n *NATSConsumer) processMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), n.config.TaskTimeout)
	defer cancel()

	var taskMessage outbound.TaskMessage
	if err := json.Unmarshal(msg.Data, &taskMessage); err != nil {
		n.updateStats(false, 0)
		slogger.Error(ctx, "Failed to unmarshal task message", slogger.Field("error", err.Error()))
		// Malformed payloads can never succeed; terminate instead of redelivering.
		n.term(ctx, msg)
		return
	}

	start := time.Now()
	err := n.processor.ProcessTask(ctx, taskMessage)
	n.updateStats(err == nil, time.Since(start))

	if err != nil {
		slogger.Error(ctx, "Task processing failed, message will be redelivered", slogger.Fields2(
			"task_id", taskMessage.TaskID.String(),
			"error", err.Error(),
		))
		if nakErr := msg.Nak(); nakErr != nil {
			slogger.Warn(ctx, "Failed to NAK message", slogger.Field("error", nakErr.Error()))
		}
		return
	}

	if ackErr := msg.Ack(); ackErr != nil {
		slogger.Warn(ctx, "Failed to ACK message", slogger.Fields2(
			"task_id", taskMessage.TaskID.String(),
			"error", ackErr.Error(),
		))
	}
}

func (n *NATSConsumer) term(ctx context.Context, msg *nats.Msg) {
	if err := msg.Term(); err != nil {
		slogger.Warn(ctx, "Failed to terminate message", slogger.Field("error", err.Error()))
	}
}

func (n *NATSConsumer) updateStats(success bool, processTime time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stats.MessagesReceived++
	if success {
		n.stats.MessagesProcessed++
		n.stats.LastProcessTime = processTime
	} else {
		n.stats.MessagesFailed++
	}
}
