// Package credentials resolves and applies authentication for voice and chat
// backends. It covers header-based API keys as well as AWS SigV4, GCP OAuth,
// and Azure AD token flows for the cloud speech services.
package credentials

import (
	"context"
	"net/http"
)

// Credential applies authentication to outbound HTTP requests.
// Implementations cover the schemes the supported backends use:
// static API keys, SigV4 signing, and short-lived OAuth tokens.
type Credential interface {
	// Apply adds authentication to the HTTP request. It may modify
	// headers, query parameters, or the request body.
	Apply(ctx context.Context, req *http.Request) error

	// Type returns the credential type identifier (e.g. "api_key", "aws").
	Type() string
}

// APIKeyCredential implements header-based API key authentication.
// The header name and value prefix vary per backend.
type APIKeyCredential struct {
	apiKey     string
	headerName string
	prefix     string
}

// APIKeyOption configures an APIKeyCredential.
type APIKeyOption func(*APIKeyCredential)

// WithHeaderName sets the header carrying the API key.
func WithHeaderName(name string) APIKeyOption {
	return func(c *APIKeyCredential) {
		c.headerName = name
	}
}

// WithBearerPrefix prepends "Bearer " to the API key value.
func WithBearerPrefix() APIKeyOption {
	return func(c *APIKeyCredential) {
		c.prefix = "Bearer "
	}
}

// WithPrefix sets a custom prefix for the API key value.
func WithPrefix(prefix string) APIKeyOption {
	return func(c *APIKeyCredential) {
		c.prefix = prefix
	}
}

// NewAPIKeyCredential creates an API key credential.
// The default is an "Authorization: Bearer <key>" header.
func NewAPIKeyCredential(apiKey string, opts ...APIKeyOption) *APIKeyCredential {
	c := &APIKeyCredential{
		apiKey:     apiKey,
		headerName: "Authorization",
		prefix:     "Bearer ",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply sets the API key header on the request.
func (c *APIKeyCredential) Apply(_ context.Context, req *http.Request) error {
	if c.apiKey != "" {
		req.Header.Set(c.headerName, c.prefix+c.apiKey)
	}
	return nil
}

// Type returns "api_key".
func (c *APIKeyCredential) Type() string {
	return "api_key"
}

// APIKey returns the raw API key value. Some SDK-backed integrations
// need the key directly rather than through HTTP header injection.
func (c *APIKeyCredential) APIKey() string {
	return c.apiKey
}

// NoOpCredential is used for backends that require no authentication,
// such as a local Ollama daemon or the canned fallback responder.
type NoOpCredential struct{}

// Apply does nothing.
func (c *NoOpCredential) Apply(_ context.Context, _ *http.Request) error {
	return nil
}

// Type returns "none".
func (c *NoOpCredential) Type() string {
	return "none"
}
