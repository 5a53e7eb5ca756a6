// Package llm provides the HTTP client for the external analysis model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resumeflow/internal/application/common/retry"
	"resumeflow/internal/application/common/slogger"
	"resumeflow/internal/port/outbound"
)

const (
	// DefaultModel is the default analysis model.
	DefaultModel = "gpt-4o-mini"

	defaultTimeout = 120 * time.Second
)

// ErrMalformedResponse signals a response that arrived but is missing
// the expected structure. Distinguishable from transport errors and
// retryable: the model occasionally returns empty or truncated output.
var ErrMalformedResponse = errors.New("malformed llm response")

// FatalRequestError signals a request the upstream rejected for a
// non-transient reason (4xx other than 429). Never retried.
type FatalRequestError struct {
	StatusCode int
	Message    string
}

func (e *FatalRequestError) Error() string {
	return fmt.Sprintf("llm request rejected (HTTP %d): %s", e.StatusCode, e.Message)
}

// ClientConfig holds the configuration for the LLM API client.
type ClientConfig struct {
	BaseURL    string        `json:"base_url"`
	APIKey     string        `json:"api_key"`
	Model      string        `json:"model"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	UserAgent  string        `json:"user_agent"`
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("API key cannot be empty")
	}
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http") {
		return errors.New("invalid base URL")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	return nil
}

// Client calls the external analysis model over HTTP.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	retrier    *retry.Executor
}

// NewClient creates a new LLM API client with the provided configuration.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	finalConfig := applyConfigDefaults(config)

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxRetries = finalConfig.MaxRetries
	retryConfig.InitialDelay = time.Second

	return &Client{
		config:     finalConfig,
		httpClient: createHTTPClient(finalConfig.Timeout),
		retrier:    retry.NewExecutorWithChecker(retryConfig, &analysisRetryChecker{}),
	}, nil
}

func applyConfigDefaults(config *ClientConfig) *ClientConfig {
	finalConfig := *config
	finalConfig.APIKey = strings.TrimSpace(config.APIKey)

	if finalConfig.BaseURL == "" {
		finalConfig.BaseURL = "https://api.openai.com/v1"
	}
	if finalConfig.Model == "" {
		finalConfig.Model = DefaultModel
	}
	if finalConfig.Timeout == 0 {
		finalConfig.Timeout = defaultTimeout
	}
	if finalConfig.MaxRetries == 0 {
		finalConfig.MaxRetries = 3
	}
	if finalConfig.UserAgent == "" {
		finalConfig.UserAgent = "resumeflow-llm-client/1.0"
	}

	return &finalConfig
}

func createHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// analysisRetryChecker retries transport errors, rate limits and
// malformed responses; FatalRequestError stops immediately.
type analysisRetryChecker struct {
	fallback retry.DefaultRetryableChecker
}

func (c *analysisRetryChecker) IsRetryable(err error) bool {
	var fatal *FatalRequestError
	if errors.As(err, &fatal) {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) {
		return true
	}
	return c.fallback.IsRetryable(err)
}

type chatRequest struct {
	Model          string             `json:"model"`
	Messages       []chatMessage      `json:"messages"`
	ResponseFormat chatResponseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze sends the structured prompt and returns the parsed analysis
// result with the model-reported token cost. Transport failures, rate
// limits and malformed responses are retried up to the configured
// budget before the last error surfaces.
func (c *Client) Analyze(ctx context.Context, messages []outbound.LLMMessage) (*outbound.LLMAnalysis, error) {
	if len(messages) == 0 {
		return nil, &FatalRequestError{StatusCode: 0, Message: "empty prompt"}
	}

	var analysis *outbound.LLMAnalysis
	err := c.retrier.Execute(ctx, func(ctx context.Context) error {
		result, callErr := c.analyzeOnce(ctx, messages)
		if callErr != nil {
			return callErr
		}
		analysis = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return analysis, nil
}

func (c *Client) analyzeOnce(ctx context.Context, messages []outbound.LLMMessage) (*outbound.LLMAnalysis, error) {
	reqBody := chatRequest{
		Model:          c.config.Model,
		ResponseFormat: chatResponseFormat{Type: "json_object"},
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &FatalRequestError{StatusCode: 0, Message: err.Error()}
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &FatalRequestError{StatusCode: 0, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slogger.Warn(ctx, "Failed to close llm response body", slogger.Field("error", closeErr.Error()))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleHTTPError(ctx, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llm response: %w", err)
	}

	return parseAnalysis(body)
}

func (c *Client) handleHTTPError(ctx context.Context, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var parsed chatResponse
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
		message = parsed.Error.Message
	}

	slogger.Error(ctx, "HTTP error from llm API", slogger.Fields3(
		"status_code", resp.StatusCode,
		"status", resp.Status,
		"api_message", message,
	))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &retry.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return fmt.Errorf("llm upstream error (HTTP %d): temporary", resp.StatusCode)
	default:
		return &FatalRequestError{StatusCode: resp.StatusCode, Message: message}
	}
}

// parseAnalysis extracts the structured result from the chat response.
// Empty choices, empty content or non-JSON content all count as
// malformed: the call reached the model but the answer is unusable.
func parseAnalysis(body []byte) (*outbound.LLMAnalysis, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err.Error())
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("%w: content is not a JSON object", ErrMalformedResponse)
	}

	return &outbound.LLMAnalysis{
		Result:      result,
		TokensSpent: parsed.Usage.TotalTokens,
	}, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
