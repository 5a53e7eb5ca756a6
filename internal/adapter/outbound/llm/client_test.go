package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeflow/internal/application/common/retry"
	"resumeflow/internal/port/outbound"
)

func testMessages() []outbound.LLMMessage {
	return []outbound.LLMMessage{
		{Role: "system", Content: "You are a resume analyst."},
		{Role: "user", Content: "vacancy + resume"},
	}
}

func newTestClient(t *testing.T, baseURL string, maxRetries int) *Client {
	t.Helper()
	client, err := NewClient(&ClientConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Model:      "test-model",
		MaxRetries: maxRetries,
	})
	require.NoError(t, err)
	// Collapse retry delays so tests stay fast.
	client.retrier = retry.NewExecutorWithChecker(&retry.Config{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}, &analysisRetryChecker{})
	return client
}

func chatCompletionBody(content string, totalTokens int) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]any{"total_tokens": totalTokens},
	}
}

func TestNewClient_Validation(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewClient(nil)
		require.Error(t, err)
	})

	t.Run("missing API key", func(t *testing.T) {
		_, err := NewClient(&ClientConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key")
	})

	t.Run("defaults applied", func(t *testing.T) {
		client, err := NewClient(&ClientConfig{APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, client.config.Model)
		assert.Equal(t, defaultTimeout, client.config.Timeout)
		assert.Equal(t, 3, client.config.MaxRetries)
	})
}

func TestAnalyze_Success(t *testing.T) {
	var gotAuth, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		require.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionBody(`{"score": 87, "verdict": "strong"}`, 1500))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	analysis, err := client.Analyze(context.Background(), testMessages())
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotModel)
	assert.Equal(t, 1500, analysis.TokensSpent)
	assert.Equal(t, float64(87), analysis.Result["score"])
	assert.Equal(t, "strong", analysis.Result["verdict"])
}

func TestAnalyze_EmptyPrompt(t *testing.T) {
	client := newTestClient(t, "http://localhost:0", 0)
	_, err := client.Analyze(context.Background(), nil)

	var fatal *FatalRequestError
	require.ErrorAs(t, err, &fatal)
}

func TestAnalyze_MalformedResponseRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			// First answer has no choices at all.
			_, _ = w.Write([]byte(`{"choices": [], "usage": {"total_tokens": 0}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(chatCompletionBody(`{"score": 42}`, 800))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	analysis, err := client.Analyze(context.Background(), testMessages())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 800, analysis.TokensSpent)
}

func TestAnalyze_NonJSONContentIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionBody("sorry, I cannot help with that", 100))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	_, err := client.Analyze(context.Background(), testMessages())
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestAnalyze_RateLimitHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionBody(`{"score": 10}`, 300))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	analysis, err := client.Analyze(context.Background(), testMessages())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 300, analysis.TokensSpent)
}

func TestAnalyze_ClientErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "context length exceeded"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)
	_, err := client.Analyze(context.Background(), testMessages())

	var fatal *FatalRequestError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, http.StatusBadRequest, fatal.StatusCode)
	assert.Equal(t, "context length exceeded", fatal.Message)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestAnalyze_ServerErrorRetriedUntilExhaustion(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	_, err := client.Analyze(context.Background(), testMessages())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-1"))
	assert.Equal(t, 7*time.Second, parseRetryAfter("7"))
}

func TestAnalysisRetryChecker(t *testing.T) {
	checker := &analysisRetryChecker{}

	assert.True(t, checker.IsRetryable(ErrMalformedResponse))
	assert.True(t, checker.IsRetryable(&retry.RateLimitError{RetryAfter: time.Second}))
	assert.False(t, checker.IsRetryable(&FatalRequestError{StatusCode: 400, Message: "bad"}))
	assert.False(t, checker.IsRetryable(errors.New("validation failed")))
}
