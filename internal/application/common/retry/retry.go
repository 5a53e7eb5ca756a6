// Package retry provides a generic retry policy for external calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"resumeflow/internal/application/common/slogger"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	Jitter        bool          `json:"jitter"`
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Operation represents an operation that can be retried.
type Operation func(ctx context.Context) error

// RetryableChecker classifies errors as retryable or fatal.
type RetryableChecker interface {
	IsRetryable(err error) bool
}

// RateLimitError marks a rate-limited call and carries the
// server-supplied Retry-After delay when the upstream sent one.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Executor handles retry logic with exponential backoff. A rate-limited
// error overrides the computed backoff with the server-supplied delay.
type Executor struct {
	config  *Config
	checker RetryableChecker
}

// NewExecutor creates a retry executor with default error classification.
func NewExecutor(config *Config) *Executor {
	return NewExecutorWithChecker(config, nil)
}

// NewExecutorWithChecker creates a retry executor with custom error classification.
func NewExecutorWithChecker(config *Config, checker RetryableChecker) *Executor {
	if config == nil {
		config = DefaultConfig()
	}
	if checker == nil {
		checker = &DefaultRetryableChecker{}
	}
	return &Executor{
		config:  config,
		checker: checker,
	}
}

// Execute runs an operation, retrying retryable failures up to the
// configured budget. The last error is returned wrapped after the
// budget is exhausted.
func (e *Executor) Execute(ctx context.Context, operation Operation) error {
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.Delay(attempt, lastErr)
			slogger.Debug(ctx, "Retrying operation after delay", slogger.Fields3(
				"attempt", attempt,
				"max_retries", e.config.MaxRetries,
				"delay_ms", delay.Milliseconds(),
			))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				slogger.Info(ctx, "Operation succeeded after retries", slogger.Fields{
					"attempt": attempt + 1,
				})
			}
			return nil
		}

		lastErr = err

		if !e.checker.IsRetryable(err) {
			slogger.Debug(ctx, "Error is not retryable", slogger.Fields2(
				"error", err.Error(),
				"attempt", attempt+1,
			))
			return err
		}

		slogger.Warn(ctx, "Operation failed, will retry", slogger.Fields3(
			"error", err.Error(),
			"attempt", attempt+1,
			"max_retries", e.config.MaxRetries,
		))
	}

	return fmt.Errorf("operation failed after %d retries: %w", e.config.MaxRetries, lastErr)
}

// Delay returns the wait before the given attempt (1-based). A rate
// limit with a server-supplied Retry-After takes precedence over the
// computed exponential backoff.
func (e *Executor) Delay(attempt int, lastErr error) time.Duration {
	var rateLimit *RateLimitError
	if errors.As(lastErr, &rateLimit) && rateLimit.RetryAfter > 0 {
		return rateLimit.RetryAfter
	}

	delay := float64(e.config.InitialDelay) * math.Pow(e.config.BackoffFactor, float64(attempt-1))
	if delay > float64(e.config.MaxDelay) {
		delay = float64(e.config.MaxDelay)
	}

	if e.config.Jitter {
		// Up to ±25% of the delay
		jitterRange := delay * 0.25
		delay += (float64(time.Now().UnixNano()%1000000)/1000000.0 - 0.5) * 2 * jitterRange
	}

	return time.Duration(delay)
}

// DefaultRetryableChecker treats rate limits and common transient
// transport failures as retryable.
type DefaultRetryableChecker struct{}

// IsRetryable checks if an error should be retried based on common patterns.
func (d *DefaultRetryableChecker) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return containsAny(errStr, []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"deadlock",
		"connection lost",
		"too many connections",
		"temporary",
		"try again",
		"resource temporarily unavailable",
		"network is unreachable",
		"no route to host",
	})
}

func containsAny(s string, substrings []string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// WithRetry executes a function with retry logic using the default configuration.
func WithRetry(ctx context.Context, operation Operation) error {
	return NewExecutor(DefaultConfig()).Execute(ctx, operation)
}

// WithRetryConfig executes a function with custom retry configuration.
func WithRetryConfig(ctx context.Context, config *Config, operation Operation) error {
	return NewExecutor(config).Execute(ctx, operation)
}
