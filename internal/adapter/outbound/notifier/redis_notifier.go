// Package notifier publishes progress events over Redis Pub/Sub.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"resumeflow/internal/application/common/slogger"
)

// RedisNotifier delivers best-effort progress events to subscribers.
// Delivery failures are reported to the caller for logging only and
// never affect task processing.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier connects to Redis and verifies the connection.
func NewRedisNotifier(ctx context.Context, url, password string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisNotifier{client: client}, nil
}

// Publish serializes the payload as JSON and publishes it to the channel.
func (n *RedisNotifier) Publish(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}

	if err := n.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish progress event: %w", err)
	}

	slogger.Debug(ctx, "Published progress event", slogger.Field("channel", channel))
	return nil
}

// Subscribe opens a Pub/Sub subscription on the channel. The caller
// owns the returned subscription and must close it.
func (n *RedisNotifier) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return n.client.Subscribe(ctx, channel)
}

// SubscribeProgress opens a Pub/Sub subscription and pumps raw message
// payloads into the returned channel until the context is canceled.
func (n *RedisNotifier) SubscribeProgress(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := n.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer func() {
			if err := pubsub.Close(); err != nil {
				slogger.Warn(ctx, "Failed to close progress subscription", slogger.Field("error", err.Error()))
			}
		}()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases the underlying Redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
