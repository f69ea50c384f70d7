package rest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xabinapal/tiledb-cloud/internal/config"
)

// retryTransport replays requests whose response status the policy marks retryable.
// Transport errors are returned immediately.
type retryTransport struct {
	next   http.RoundTripper
	policy config.RetryPolicy
	logger *slog.Logger
}

type retryableStatusError struct {
	status int
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("retryable status %d", e.status)
}

// RoundTrip implements http.RoundTripper.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	maxTries := t.policy.MaxTries()
	if maxTries <= 1 {
		return t.next.RoundTrip(req)
	}

	var attempt uint
	operation := func() (*http.Response, error) {
		attempt++
		r, err := rewind(req, attempt)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := t.next.RoundTrip(r)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if attempt >= maxTries || !t.policy.Retryable(r.Method, resp.StatusCode) {
			return resp, nil
		}
		if !replayable(req) {
			// the body is gone, hand back what we have
			return resp, nil
		}

		retryErr := retryAfter(resp)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		resp.Body.Close()
		return nil, retryErr
	}

	return backoff.Retry(req.Context(), operation,
		backoff.WithBackOff(t.policy.NewBackOff()),
		backoff.WithMaxTries(maxTries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			t.logger.Debug("retrying request",
				"method", req.Method,
				"url", req.URL.Redacted(),
				"attempt", attempt,
				"delay", d,
				"error", err,
			)
		}),
	)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// rewind returns the request to send on the given attempt, with a fresh body
// on retries.
func rewind(req *http.Request, attempt uint) (*http.Request, error) {
	if attempt == 1 || req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to replay request body: %w", err)
	}
	r := req.Clone(req.Context())
	r.Body = body
	return r, nil
}

// retryAfter honours a Retry-After header given in seconds.
func retryAfter(resp *http.Response) error {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return backoff.RetryAfter(secs)
		}
	}
	return &retryableStatusError{status: resp.StatusCode}
}
