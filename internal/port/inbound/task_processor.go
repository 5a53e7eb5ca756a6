package inbound

import (
	"context"

	"resumeflow/internal/port/outbound"
)

// TaskProcessor executes exactly one task's analysis to completion or a
// well-defined failure, independently of other in-flight tasks. It is
// invoked by the durable queue consumer with at-least-once delivery;
// re-deliveries of terminal tasks are no-ops.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, message outbound.TaskMessage) error
}

// Consumer is a running subscription on the durable task queue.
type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Subject() string
	QueueGroup() string
	DurableName() string
}
