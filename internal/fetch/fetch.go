// Package fetch provides HTTP fetching for wiki pages and API endpoints.
// This package centralizes the request logic used by enumeration and harvesting.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent identifies the scraper to wiki operators.
const DefaultUserAgent = "wikiharvest/1.0 (research use)"

// Result holds the raw response from a URL fetch.
type Result struct {
	URL         string
	Body        string
	ContentType string
	StatusCode  int
}

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	Headers     map[string]string
	MaxAttempts int // attempts for retryable failures; values below 1 mean a single attempt
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxAttempts: 3,
	}
}

// retryableStatus reports whether an HTTP status is worth retrying.
// 429 and 5xx are transient; other 4xx are not.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// URL retrieves the content at urlStr with a single request.
// On a non-2xx response the Result is still returned alongside the error
// so callers can inspect the status code.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{
			URL:     urlStr,
			Message: "invalid URL",
			Cause:   err,
		}
	}

	client := &http.Client{
		Timeout: opts.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to create request",
			Cause:   err,
		}
	}

	req.Header.Set("User-Agent", opts.UserAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{
			URL:       urlStr,
			Message:   "HTTP request failed",
			Retryable: true,
			Cause:     err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{
			URL:       urlStr,
			Message:   "failed to read response body",
			Retryable: true,
			Cause:     err,
		}
	}

	result := &Result{
		URL:         urlStr,
		Body:        string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode != http.StatusOK {
		return result, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
		}
	}

	return result, nil
}

// URLWithRetry retrieves urlStr, retrying retryable failures with
// exponential backoff (1s, 2s, 4s, ...). Permanent failures such as 404
// return immediately.
func URLWithRetry(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := time.Second
	var result *Result
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = URL(ctx, urlStr, opts)
		if err == nil {
			return result, nil
		}

		var fetchErr *Error
		if !errors.As(err, &fetchErr) || !fetchErr.Retryable || attempt == attempts {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, &Error{URL: urlStr, Message: "fetch cancelled", Cause: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return result, err
}
