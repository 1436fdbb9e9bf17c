package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

// HTTPClient wraps the standard http.Client with retry logic and configuration
type HTTPClient struct {
	client      *http.Client
	retryConfig lib.RetryConfig
	logger      *lib.Logger
}

// NewHTTPClient creates an HTTP client with timeout and retry configuration.
// Outbound requests are traced through the global otel propagator.
func NewHTTPClient(timeout time.Duration, retryConfig models.RetryConfig, logger *lib.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retryConfig: lib.NewRetryConfigFromModel(retryConfig),
		logger:      logger,
	}
}

// statusError is a transient HTTP status that survived every retry
type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Do executes an HTTP request with retry logic for transient errors.
// Non-transient statuses (4xx) are returned to the caller with their body.
func (c *HTTPClient) Do(ctx context.Context, method string, url string, body []byte) (*http.Response, error) {
	var resp *http.Response

	attempt := 0
	operation := func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		lib.LogServiceCall(c.logger, req.URL.Host, req.URL.Path, req.Method)
		startTime := time.Now()
		r, err := c.client.Do(req)
		if err != nil {
			lib.LogRetry(c.logger, url, attempt, c.retryConfig.MaxAttempts, err)
			attempt++
			return err
		}
		lib.LogServiceResponse(c.logger, req.URL.Host, r.StatusCode, time.Since(startTime))

		if lib.ClassifyHTTPError(r.StatusCode) == models.ErrorTypeTransient {
			_, _ = io.Copy(io.Discard, r.Body)
			_ = r.Body.Close()
			statusErr := &statusError{StatusCode: r.StatusCode}
			lib.LogRetry(c.logger, url, attempt, c.retryConfig.MaxAttempts, statusErr)
			attempt++
			return statusErr
		}

		resp = r
		return nil
	}

	shouldRetry := func(err error) bool {
		var se *statusError
		return errors.As(err, &se) || lib.IsNetworkError(err)
	}

	if err := lib.ExecuteWithRetry(ctx, operation, c.retryConfig, shouldRetry); err != nil {
		return nil, err
	}
	return resp, nil
}

// DoJSON sends in as JSON (when not nil) and decodes a 2xx answer into out
// (when not nil). It returns the HTTP status so callers can interpret 404s.
// Any status outside 2xx is reported as a service error. A cancelled or
// expired caller context is returned as is.
func (c *HTTPClient) DoJSON(ctx context.Context, service string, method string, url string, in any, out any) (int, error) {
	var body []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to encode %s request: %w", service, err)
		}
		body = encoded
	}

	resp, err := c.Do(ctx, method, url, body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return 0, ctxErr
		}
		var se *statusError
		if errors.As(err, &se) {
			return se.StatusCode, lib.ErrServiceUnavailable(service, se.StatusCode, err)
		}
		return 0, lib.ErrServiceUnavailable(service, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var cause error
		if len(detail) > 0 {
			cause = errors.New(string(bytes.TrimSpace(detail)))
		}
		return resp.StatusCode, lib.ErrServiceUnavailable(service, resp.StatusCode, cause)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, lib.ErrServiceUnavailable(service, resp.StatusCode,
				fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return resp.StatusCode, nil
}
