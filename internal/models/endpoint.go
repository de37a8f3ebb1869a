package models

import (
	"time"

	"github.com/hookfreight/hookfreight/internal/idgen"
)

const (
	// DefaultHTTPTimeoutMs applies when an endpoint doesn't set its own timeout.
	DefaultHTTPTimeoutMs = 10_000
	// MaxHTTPTimeoutMs caps per-endpoint timeouts.
	MaxHTTPTimeoutMs = 120_000
)

// EndpointAuth is an optional static header added to every forwarded request.
type EndpointAuth struct {
	HeaderName  string `json:"header_name"`
	HeaderValue string `json:"header_value"`
}

// Endpoint is one capture URL plus its forwarding configuration. The hook
// token is assigned at creation and never changes.
type Endpoint struct {
	ID                string        `json:"id"`
	AppID             string        `json:"app_id"`
	HookToken         string        `json:"hook_token"`
	ForwardURL        string        `json:"forward_url"`
	ForwardingEnabled bool          `json:"forwarding_enabled"`
	Authentication    *EndpointAuth `json:"authentication,omitempty"`
	HTTPTimeoutMs     int           `json:"http_timeout_ms"`
	IsActive          bool          `json:"is_active"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func NewEndpoint(appID string) Endpoint {
	now := time.Now().UTC()
	return Endpoint{
		ID:            idgen.Endpoint(),
		AppID:         appID,
		HookToken:     idgen.HookToken(),
		HTTPTimeoutMs: DefaultHTTPTimeoutMs,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Timeout returns the forwarding timeout, defaulted and capped.
func (e *Endpoint) Timeout() time.Duration {
	ms := e.HTTPTimeoutMs
	if ms <= 0 {
		ms = DefaultHTTPTimeoutMs
	}
	if ms > MaxHTTPTimeoutMs {
		ms = MaxHTTPTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}
