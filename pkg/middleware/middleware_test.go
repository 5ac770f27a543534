// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vwp-nl/fieldplan-core/pkg/logging"
)

// stubRouteTripper stands in for the distance-matrix endpoint's
// transport, recording the request it received.
type stubRouteTripper struct {
	lastReq *http.Request
	resp    *http.Response
	err     error
}

func (s *stubRouteTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func okResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestWithRequestID_StampsHeaderAndContext(t *testing.T) {
	stub := &stubRouteTripper{resp: okResponse(`{"rows":[]}`)}
	var seenIDs []string
	ids := []string{"req-1", "req-2"}
	next := 0
	generator := func() string {
		id := ids[next]
		next++
		seenIDs = append(seenIDs, id)
		return id
	}

	transport := WithRequestID(generator)(stub)

	req1 := httptest.NewRequest(http.MethodGet, "https://maps.googleapis.com/maps/api/distancematrix/json", nil)
	_, err := transport.RoundTrip(req1)
	require.NoError(t, err)
	assert.Equal(t, "req-1", stub.lastReq.Header.Get("X-Request-ID"))
	assert.Equal(t, "req-1", stub.lastReq.Context().Value(requestIDContextKey{}))

	req2 := httptest.NewRequest(http.MethodGet, "https://maps.googleapis.com/maps/api/distancematrix/json", nil)
	_, err = transport.RoundTrip(req2)
	require.NoError(t, err)
	assert.Equal(t, "req-2", stub.lastReq.Header.Get("X-Request-ID"))
	assert.Equal(t, []string{"req-1", "req-2"}, seenIDs)
}

func TestWithRequestID_DoesNotMutateOriginalRequest(t *testing.T) {
	stub := &stubRouteTripper{resp: okResponse("")}
	transport := WithRequestID(func() string { return "route-id" })(stub)

	req := httptest.NewRequest(http.MethodGet, "https://maps.googleapis.com/maps/api/distancematrix/json", nil)
	_, err := transport.RoundTrip(req)
	require.NoError(t, err)

	assert.Empty(t, req.Header.Get("X-Request-ID"), "the caller's original request must be untouched")
	assert.Equal(t, "route-id", stub.lastReq.Header.Get("X-Request-ID"))
}

func TestWithLogging_SucceedsAndPropagatesResponse(t *testing.T) {
	stub := &stubRouteTripper{resp: okResponse(`{"rows":[{"elements":[{"status":"OK"}]}]}`)}
	transport := WithLogging(logging.NoOpLogger{})(stub)

	req := httptest.NewRequest(http.MethodGet, "https://maps.googleapis.com/maps/api/distancematrix/json?origins=a&destinations=b", nil)
	resp, err := transport.RoundTrip(req)

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWithLogging_PropagatesTransportError(t *testing.T) {
	stub := &stubRouteTripper{err: assertErr("dial tcp: no route to maps.googleapis.com")}
	transport := WithLogging(logging.NoOpLogger{})(stub)

	req := httptest.NewRequest(http.MethodGet, "https://maps.googleapis.com/maps/api/distancematrix/json", nil)
	resp, err := transport.RoundTrip(req)

	assert.Nil(t, resp)
	assert.Error(t, err)
}

func TestWithLogging_ReadsRequestIDFromContext(t *testing.T) {
	stub := &stubRouteTripper{resp: okResponse("")}
	chain := Chain(
		WithRequestID(func() string { return "chained-id" }),
		WithLogging(logging.NoOpLogger{}),
	)
	transport := chain(stub)

	req := httptest.NewRequest(http.MethodGet, "https://maps.googleapis.com/maps/api/distancematrix/json", nil)
	_, err := transport.RoundTrip(req)
	require.NoError(t, err)

	assert.Equal(t, "chained-id", stub.lastReq.Header.Get("X-Request-ID"))
}

func TestChain_RunsMiddlewareInCallOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(req)
			})
		}
	}
	stub := &stubRouteTripper{resp: okResponse("")}
	transport := Chain(mark("a"), mark("b"))(stub)

	req := httptest.NewRequest(http.MethodGet, "https://maps.googleapis.com/maps/api/distancematrix/json", nil)
	_, err := transport.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
