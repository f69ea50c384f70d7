package config

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultRetryTotal is the number of retries after the first attempt.
	DefaultRetryTotal = 100
	// DefaultBackoffFactor is the delay unit between retries.
	DefaultBackoffFactor = 250 * time.Millisecond
	// DefaultMaxBackoff caps a single delay.
	DefaultMaxBackoff = 120 * time.Second
)

// RetryPolicy describes how the transport retries failed requests.
// Only the listed statuses are retried and delays grow linearly.
type RetryPolicy struct {
	// Total is the maximum number of retries after the first attempt.
	Total int
	// BackoffFactor is multiplied by the retry number to get the delay.
	BackoffFactor time.Duration
	// MaxBackoff caps each delay. Zero means no cap.
	MaxBackoff time.Duration
	// StatusForcelist are the HTTP statuses that trigger a retry.
	StatusForcelist []int
	// AllowedMethods are the HTTP methods that may be retried.
	AllowedMethods []string
	// RemoveHeadersOnRedirect lists headers dropped when following a redirect.
	RemoveHeadersOnRedirect []string
}

// DefaultRetryPolicy retries 503 responses for every standard method, with a
// 250ms linear backoff, and never strips headers on redirect.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Total:         DefaultRetryTotal,
		BackoffFactor: DefaultBackoffFactor,
		MaxBackoff:    DefaultMaxBackoff,
		StatusForcelist: []int{
			http.StatusServiceUnavailable,
		},
		AllowedMethods: []string{
			http.MethodDelete,
			http.MethodGet,
			http.MethodHead,
			http.MethodOptions,
			http.MethodPatch,
			http.MethodPost,
			http.MethodPut,
			http.MethodTrace,
		},
		RemoveHeadersOnRedirect: []string{},
	}
}

// Retryable reports whether a response with status to a request with method
// should be retried.
func (p RetryPolicy) Retryable(method string, status int) bool {
	if !slices.Contains(p.StatusForcelist, status) {
		return false
	}
	return slices.ContainsFunc(p.AllowedMethods, func(m string) bool {
		return strings.EqualFold(m, method)
	})
}

// MaxTries is the total number of attempts, including the first.
func (p RetryPolicy) MaxTries() uint {
	if p.Total <= 0 {
		return 1
	}
	return uint(p.Total) + 1 // #nosec G115 -- Total is positive
}

// NewBackOff returns a fresh linear backoff for one logical request.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	return &linearBackOff{factor: p.BackoffFactor, max: p.MaxBackoff}
}

func (p RetryPolicy) clone() RetryPolicy {
	out := p
	out.StatusForcelist = slices.Clone(p.StatusForcelist)
	out.AllowedMethods = slices.Clone(p.AllowedMethods)
	out.RemoveHeadersOnRedirect = slices.Clone(p.RemoveHeadersOnRedirect)
	return out
}

// linearBackOff waits factor*n before the n-th retry.
type linearBackOff struct {
	factor  time.Duration
	max     time.Duration
	attempt int
}

// NextBackOff implements backoff.BackOff.
func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	d := b.factor * time.Duration(b.attempt)
	if b.max > 0 && d > b.max {
		return b.max
	}
	return d
}

// Reset implements backoff.BackOff.
func (b *linearBackOff) Reset() {
	b.attempt = 0
}
