// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package retry implements the retry policy for internal/travel's
// outbound calls to the distance-matrix routing API. A lookup can fail
// two distinct ways: the transport itself (timeout, 5xx, 429) or the
// API's own per-element status on an otherwise-200 response
// (OVER_QUERY_LIMIT, UNKNOWN_ERROR). Both need exponential backoff;
// neither should be retried past MaxRetries or once the caller's
// context is done.
package retry

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// Policy decides whether a travel-time lookup attempt should be
// retried and how long to wait before the next one.
type Policy interface {
	// ShouldRetryResponse inspects a transport-level outcome: a
	// network error, or an HTTP response whose status code signals a
	// transient failure.
	ShouldRetryResponse(ctx context.Context, resp *http.Response, err error, attempt int) bool

	// ShouldRetryElementStatus inspects a distance-matrix element's
	// own status field on an otherwise-successful HTTP response.
	ShouldRetryElementStatus(status string, attempt int) bool

	// WaitTime returns the wait time before the next retry.
	WaitTime(attempt int) time.Duration

	// MaxRetries returns the maximum number of retries.
	MaxRetries() int
}

// RouteBackoff is the distance-matrix routing API's retry policy:
// exponential backoff with jitter, shared between transport failures
// and element-level rate-limit/server statuses.
type RouteBackoff struct {
	maxRetries    int
	minWaitTime   time.Duration
	maxWaitTime   time.Duration
	backoffFactor float64
	jitter        bool
}

// NewRouteBackoff creates the default distance-matrix retry policy.
func NewRouteBackoff() *RouteBackoff {
	return &RouteBackoff{
		maxRetries:    3,
		minWaitTime:   1 * time.Second,
		maxWaitTime:   30 * time.Second,
		backoffFactor: 2.0,
		jitter:        true,
	}
}

// WithMaxRetries sets the maximum number of retries.
func (e *RouteBackoff) WithMaxRetries(maxRetries int) *RouteBackoff {
	e.maxRetries = maxRetries
	return e
}

// WithMinWaitTime sets the minimum wait time.
func (e *RouteBackoff) WithMinWaitTime(minWaitTime time.Duration) *RouteBackoff {
	e.minWaitTime = minWaitTime
	return e
}

// WithMaxWaitTime sets the maximum wait time.
func (e *RouteBackoff) WithMaxWaitTime(maxWaitTime time.Duration) *RouteBackoff {
	e.maxWaitTime = maxWaitTime
	return e
}

// WithBackoffFactor sets the backoff factor.
func (e *RouteBackoff) WithBackoffFactor(backoffFactor float64) *RouteBackoff {
	e.backoffFactor = backoffFactor
	return e
}

// WithJitter enables or disables jitter.
func (e *RouteBackoff) WithJitter(jitter bool) *RouteBackoff {
	e.jitter = jitter
	return e
}

// ShouldRetryResponse retries network errors and the 429/5xx statuses
// the distance-matrix API uses to signal transient overload.
func (e *RouteBackoff) ShouldRetryResponse(ctx context.Context, resp *http.Response, err error, attempt int) bool {
	if attempt >= e.maxRetries {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	default:
	}

	if err != nil {
		return true
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// ShouldRetryElementStatus retries the two distance-matrix element
// statuses that indicate a transient condition on the provider's side
// rather than a permanently unroutable pair. OVER_QUERY_LIMIT is the
// provider throttling this API key; UNKNOWN_ERROR is its own generic
// "try again" signal. Every other status (NOT_FOUND, ZERO_RESULTS,
// MAX_ROUTE_LENGTH_EXCEEDED, ...) is permanent and not retried.
func (e *RouteBackoff) ShouldRetryElementStatus(status string, attempt int) bool {
	if attempt >= e.maxRetries {
		return false
	}
	switch status {
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return true
	default:
		return false
	}
}

// WaitTime returns the wait time before the next retry.
func (e *RouteBackoff) WaitTime(attempt int) time.Duration {
	if attempt <= 0 {
		return e.minWaitTime
	}

	waitTime := time.Duration(float64(e.minWaitTime) * math.Pow(e.backoffFactor, float64(attempt-1)))

	if waitTime > e.maxWaitTime {
		waitTime = e.maxWaitTime
	}

	if e.jitter {
		jitterAmount := time.Duration(rand.Float64() * float64(waitTime) * 0.1)
		waitTime += jitterAmount
	}

	return waitTime
}

// MaxRetries returns the maximum number of retries.
func (e *RouteBackoff) MaxRetries() int {
	return e.maxRetries
}
