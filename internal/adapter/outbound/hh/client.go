// Package hh provides the HTTP client for the external résumé API.
package hh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"resumeflow/internal/application/common/slogger"
	domainerrors "resumeflow/internal/domain/errors/domain"
)

const (
	contentType      = "application/json"
	defaultUserAgent = "resumeflow/1.0"

	defaultMaxAttempts    = 5
	defaultRequestsPerSec = 5.0
	defaultHTTPTimeout    = 30 * time.Second
)

// ClientConfig holds the résumé API client configuration.
type ClientConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxAttempts    int
	RequestsPerSec float64
	UserAgent      string
}

// Client fetches vacancy applicants and résumé bodies from the
// external HR API. All requests pass through a shared rate limiter,
// and HTTP 429 answers are retried with the server-supplied
// Retry-After when present, exponential backoff otherwise. After the
// attempt budget the caller sees ErrResumeUnavailable and decides
// whether to skip.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *ResumeCache
}

// NewClient creates a résumé API client. cache may be nil to disable
// resume body caching.
func NewClient(config *ClientConfig, cache *ResumeCache) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	finalConfig := *config
	if finalConfig.Timeout <= 0 {
		finalConfig.Timeout = defaultHTTPTimeout
	}
	if finalConfig.MaxAttempts <= 0 {
		finalConfig.MaxAttempts = defaultMaxAttempts
	}
	if finalConfig.RequestsPerSec <= 0 {
		finalConfig.RequestsPerSec = defaultRequestsPerSec
	}
	if finalConfig.UserAgent == "" {
		finalConfig.UserAgent = defaultUserAgent
	}

	return &Client{
		config:     &finalConfig,
		httpClient: &http.Client{Timeout: finalConfig.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(finalConfig.RequestsPerSec), 1),
		cache:      cache,
	}, nil
}

type itemResponse struct {
	Items   []applicantItem `json:"items"`
	Found   int             `json:"found"`
	Pages   int             `json:"pages"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

type applicantItem struct {
	Resume struct {
		ID string `json:"id"`
	} `json:"resume"`
}

type resumeResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ListResumeIDs enumerates the résumé ids of every applicant attached
// to a vacancy, walking all pages of the upstream listing.
func (c *Client) ListResumeIDs(ctx context.Context, vacancyRef string) ([]string, error) {
	if vacancyRef == "" {
		return nil, fmt.Errorf("%w: vacancy ref is required", domainerrors.ErrInvalidInput)
	}

	listURL := fmt.Sprintf("%s/vacancies/%s/applicants", c.config.BaseURL, url.PathEscape(vacancyRef))

	var ids []string
	page := 0
	for {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))

		var response itemResponse
		if err := c.getJSON(ctx, listURL, q, &response); err != nil {
			return nil, fmt.Errorf("list applicants for vacancy %s: %w", vacancyRef, err)
		}

		for _, item := range response.Items {
			if item.Resume.ID != "" {
				ids = append(ids, item.Resume.ID)
			}
		}

		if response.Page >= response.Pages-1 {
			break
		}
		page = response.Page + 1
	}

	slogger.Debug(ctx, "Listed vacancy applicants", slogger.Fields2(
		"vacancy_ref", vacancyRef,
		"resume_count", len(ids),
	))

	return ids, nil
}

// FetchResume resolves one résumé's text, consulting the cache first.
func (c *Client) FetchResume(ctx context.Context, resumeRef string) (string, error) {
	if resumeRef == "" {
		return "", fmt.Errorf("%w: resume ref is required", domainerrors.ErrInvalidInput)
	}

	if c.cache != nil {
		if text, ok := c.cache.Get(resumeRef); ok {
			return text, nil
		}
	}

	resumeURL := fmt.Sprintf("%s/resumes/%s", c.config.BaseURL, url.PathEscape(resumeRef))

	var response resumeResponse
	if err := c.getJSON(ctx, resumeURL, nil, &response); err != nil {
		return "", fmt.Errorf("fetch resume %s: %w", resumeRef, err)
	}

	if response.Text == "" {
		return "", fmt.Errorf("%w: %s has empty body", domainerrors.ErrResumeUnavailable, resumeRef)
	}

	if c.cache != nil {
		c.cache.Set(resumeRef, response.Text)
	}

	return response.Text, nil
}

// getJSON performs a rate-limited GET with the 429 retry loop and
// decodes the answer into target.
func (c *Client) getJSON(ctx context.Context, rawURL string, q url.Values, target any) error {
	var lastErr error

	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, retryAfter, err := c.doRequest(ctx, rawURL, q)
		if err == nil {
			return json.Unmarshal(body, target)
		}

		lastErr = err
		if retryAfter < 0 {
			// Not a rate limit; fail immediately.
			return err
		}

		delay := retryAfter
		if delay == 0 {
			delay = time.Duration(1<<uint(attempt)) * time.Second
		}

		slogger.Warn(ctx, "Resume API rate limited, backing off", slogger.Fields3(
			"url", rawURL,
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds(),
		))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%w: %v", domainerrors.ErrResumeUnavailable, lastErr)
}

// doRequest executes one GET. The second return is the rate-limit
// backoff hint: negative means the failure is not retryable, zero
// means rate-limited without a server-specified delay.
func (c *Client) doRequest(ctx context.Context, rawURL string, q url.Values) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, -1, err
	}

	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Content-Type", contentType)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, -1, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, -1, readErr
		}
		return body, 0, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, -1, domainerrors.ErrResumeNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("rate limited: %s", resp.Status)
	default:
		return nil, -1, fmt.Errorf("bad status: %s", resp.Status)
	}
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
