// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package middleware wraps the outbound http.RoundTripper internal/travel
// uses to call the distance-matrix routing API. It only carries the two
// concerns a RoundTripper can see without understanding the response
// body — correlation IDs and structured request/response logging.
// Retry is schema-aware (it inspects decoded element statuses) and stays
// in pkg/retry; it is never chained here.
package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/vwp-nl/fieldplan-core/pkg/logging"
)

// Middleware wraps an http.RoundTripper with one cross-cutting concern.
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain composes middlewares in call order: Chain(a, b)(t) runs a, then
// b, then t.
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// requestIDContextKey is the context key WithRequestID stores the
// generated ID under, so a caller further down the stack (e.g. the
// logging middleware) can read it back.
type requestIDContextKey struct{}

// WithLogging logs each outbound distance-matrix lookup: method, host,
// and path on the way out; status code and duration on the way back.
func WithLogging(logger logging.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			fields := []any{"host", req.URL.Host, "path", req.URL.Path}
			if id, ok := req.Context().Value(requestIDContextKey{}).(string); ok {
				fields = append(fields, "request_id", id)
			}
			reqLogger := logging.LogAPICall(logger, req.Method, req.URL.Path, fields...)
			reqLogger.Debug("sending travel-time lookup")

			resp, err := next.RoundTrip(req)

			duration := time.Since(start)
			if err != nil {
				logging.LogError(reqLogger, err, "travel_lookup_failed", "duration_ms", duration.Milliseconds())
				return nil, err
			}

			reqLogger.Info("travel-time lookup completed",
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds(),
			)
			return resp, nil
		})
	}
}

// WithRequestID stamps every outbound lookup with an X-Request-ID
// header (useful for correlating with the routing provider's own logs)
// and carries the same ID in the request context for WithLogging to
// pick up.
func WithRequestID(generator func() string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			requestID := generator()

			req = cloneRequest(req)
			req.Header.Set("X-Request-ID", requestID)
			req = req.WithContext(context.WithValue(req.Context(), requestIDContextKey{}, requestID))

			return next.RoundTrip(req)
		})
	}
}

// cloneRequest shallow-copies a request (and its body, if any) so a
// middleware can mutate headers without touching the caller's request.
func cloneRequest(req *http.Request) *http.Request {
	r := req.Clone(req.Context())

	if req.Body != nil {
		bodyBytes, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	return r
}
