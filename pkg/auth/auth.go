// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package auth signs outbound requests made by the core to external
// collaborators. The planning core itself has no authentication
// surface of its own (see the HTTP API scope notes); this package only
// covers the travel-time routing API client.
package auth

import (
	"context"
	"net/http"
)

// Provider adds authentication to an outbound HTTP request.
type Provider interface {
	Authenticate(ctx context.Context, req *http.Request) error
	Type() string
}

// APIKeyAuth signs requests with a query-string API key, the scheme
// used by the Google Maps/Routes APIs the travel-time oracle talks to.
type APIKeyAuth struct {
	key   string
	param string
}

// NewAPIKeyAuth creates a provider that appends key=<apiKey> to every
// request's query string. param defaults to "key" when empty.
func NewAPIKeyAuth(apiKey, param string) *APIKeyAuth {
	if param == "" {
		param = "key"
	}
	return &APIKeyAuth{key: apiKey, param: param}
}

// Authenticate appends the API key to the request's query parameters.
func (a *APIKeyAuth) Authenticate(ctx context.Context, req *http.Request) error {
	q := req.URL.Query()
	q.Set(a.param, a.key)
	req.URL.RawQuery = q.Encode()
	return nil
}

// Type returns the authentication type.
func (a *APIKeyAuth) Type() string {
	return "api_key"
}

// NoAuth implements no authentication.
type NoAuth struct{}

// NewNoAuth creates a new no-auth provider.
func NewNoAuth() *NoAuth {
	return &NoAuth{}
}

// Authenticate is a no-op for no authentication.
func (n *NoAuth) Authenticate(ctx context.Context, req *http.Request) error {
	return nil
}

// Type returns the authentication type.
func (n *NoAuth) Type() string {
	return "none"
}
