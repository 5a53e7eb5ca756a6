package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
		Jitter:        false,
	}
}

func TestExecutor_SuccessOnFirstAttempt(t *testing.T) {
	executor := NewExecutor(testConfig())
	callCount := 0

	err := executor.Execute(context.Background(), func(ctx context.Context) error {
		callCount++
		return nil
	})
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got: %d", callCount)
	}
}

func TestExecutor_SuccessAfterRetries(t *testing.T) {
	executor := NewExecutor(testConfig())
	callCount := 0

	err := executor.Execute(context.Background(), func(ctx context.Context) error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got: %d", callCount)
	}
}

func TestExecutor_FailureAfterMaxRetries(t *testing.T) {
	config := testConfig()
	config.MaxRetries = 2
	executor := NewExecutor(config)
	callCount := 0

	err := executor.Execute(context.Background(), func(ctx context.Context) error {
		callCount++
		return errors.New("timeout")
	})
	if err == nil {
		t.Error("Expected error after exhausting retries")
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (initial + 2 retries), got: %d", callCount)
	}
}

func TestExecutor_FatalErrorNotRetried(t *testing.T) {
	executor := NewExecutor(testConfig())
	callCount := 0
	fatal := errors.New("invalid request body")

	err := executor.Execute(context.Background(), func(ctx context.Context) error {
		callCount++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("Expected fatal error to surface unwrapped, got: %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call for non-retryable error, got: %d", callCount)
	}
}

func TestExecutor_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := testConfig()
	config.InitialDelay = time.Second
	executor := NewExecutor(config)

	callCount := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := executor.Execute(ctx, func(ctx context.Context) error {
		callCount++
		return errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got: %d", callCount)
	}
}

func TestExecutor_Delay_ExponentialBackoff(t *testing.T) {
	executor := NewExecutor(&Config{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        false,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 8 * time.Second}, // capped at MaxDelay
	}

	for _, tt := range tests {
		if got := executor.Delay(tt.attempt, errors.New("timeout")); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestExecutor_Delay_HonorsRetryAfter(t *testing.T) {
	executor := NewExecutor(testConfig())

	rateLimited := &RateLimitError{RetryAfter: 2 * time.Second}
	if got := executor.Delay(1, rateLimited); got != 2*time.Second {
		t.Errorf("Delay with Retry-After = %s, want 2s", got)
	}

	// Without a server-supplied delay, fall back to computed backoff.
	noHint := &RateLimitError{}
	if got := executor.Delay(1, noHint); got != 10*time.Millisecond {
		t.Errorf("Delay without Retry-After = %s, want 10ms", got)
	}
}

func TestDefaultRetryableChecker(t *testing.T) {
	checker := &DefaultRetryableChecker{}

	tests := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{errors.New("request Timeout exceeded"), true},
		{&RateLimitError{}, true},
		{&RateLimitError{RetryAfter: time.Second}, true},
		{errors.New("invalid request"), false},
		{errors.New("unauthorized"), false},
	}

	for _, tt := range tests {
		if got := checker.IsRetryable(tt.err); got != tt.retryable {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}
}
