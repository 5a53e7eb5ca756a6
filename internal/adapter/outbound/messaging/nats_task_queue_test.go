package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeflow/internal/config"
	"resumeflow/internal/port/outbound"
)

func validMessage() outbound.TaskMessage {
	return outbound.TaskMessage{
		TaskID:         uuid.New(),
		SessionID:      uuid.New(),
		OrganizationID: uuid.New(),
		ResumeRef:      "r1",
		VacancyRef:     "v1",
		Current:        1,
		Total:          3,
	}
}

func TestNewNATSTaskQueue_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.NATSConfig
		wantErr string
	}{
		{
			name:    "empty URL",
			cfg:     config.NATSConfig{},
			wantErr: "NATS URL cannot be empty",
		},
		{
			name:    "wrong scheme",
			cfg:     config.NATSConfig{URL: "http://localhost:4222"},
			wantErr: "invalid NATS URL scheme",
		},
		{
			name:    "negative reconnects",
			cfg:     config.NATSConfig{URL: "nats://localhost:4222", MaxReconnects: -1},
			wantErr: "max reconnects cannot be negative",
		},
		{
			name: "valid",
			cfg:  config.NATSConfig{URL: "nats://localhost:4222", MaxReconnects: 5, ReconnectWait: time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue, err := NewNATSTaskQueue(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, queue)
		})
	}
}

func TestPublishTask_MessageValidation(t *testing.T) {
	queue, err := NewNATSTaskQueue(config.NATSConfig{URL: "nats://localhost:4222"})
	require.NoError(t, err)

	ctx := context.Background()

	msg := validMessage()
	msg.TaskID = uuid.Nil
	require.ErrorContains(t, queue.PublishTask(ctx, msg), "task ID")

	msg = validMessage()
	msg.SessionID = uuid.Nil
	require.ErrorContains(t, queue.PublishTask(ctx, msg), "session ID")

	msg = validMessage()
	msg.OrganizationID = uuid.Nil
	require.ErrorContains(t, queue.PublishTask(ctx, msg), "organization ID")

	msg = validMessage()
	msg.ResumeRef = ""
	require.ErrorContains(t, queue.PublishTask(ctx, msg), "resume ref")
}

func TestPublishTask_NotConnected(t *testing.T) {
	queue, err := NewNATSTaskQueue(config.NATSConfig{URL: "nats://localhost:4222"})
	require.NoError(t, err)

	err = queue.PublishTask(context.Background(), validMessage())
	require.ErrorContains(t, err, "not connected")

	metrics := queue.GetPublishMetrics()
	assert.Equal(t, int64(1), metrics.FailedCount)
	assert.Equal(t, int64(0), metrics.PublishedCount)
}

func TestPublishTask_CircuitBreakerOpensAfterFailures(t *testing.T) {
	queue, err := NewNATSTaskQueue(config.NATSConfig{URL: "nats://localhost:4222"})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.ErrorContains(t, queue.PublishTask(ctx, validMessage()), "not connected")
	}

	err = queue.PublishTask(ctx, validMessage())
	require.ErrorContains(t, err, "circuit breaker open")
}

func TestPublishTask_CancelledContext(t *testing.T) {
	queue, err := NewNATSTaskQueue(config.NATSConfig{URL: "nats://localhost:4222"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, queue.PublishTask(ctx, validMessage()), context.Canceled)
}

func TestEnsureStream_RequiresConnection(t *testing.T) {
	queue, err := NewNATSTaskQueue(config.NATSConfig{URL: "nats://localhost:4222"})
	require.NoError(t, err)

	require.ErrorContains(t, queue.EnsureStream(), "not connected")
}
