package auth

import (
	"log/slog"
	"time"

	"github.com/onecgate/onecgate/internal/instrumentation"
)

// Config holds the OAuth handler configuration
type Config struct {
	// Issuer is the externally visible base URL of the gateway.
	// It is used as the issuer in discovery metadata and as the
	// resource identifier for RFC 9728.
	Issuer string

	// SupportedScopes are the scopes advertised in discovery metadata
	SupportedScopes []string

	// AuthorizationCodeTTL is how long authorization codes stay valid
	// Default: 2 minutes
	AuthorizationCodeTTL time.Duration

	// AccessTokenTTL is the access token lifetime
	// Default: 1 hour
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the refresh token lifetime
	// Default: 14 days
	RefreshTokenTTL time.Duration

	// RotateRefreshTokens enables refresh token rotation on each refresh
	// grant. Default: false (the presented token stays valid).
	RotateRefreshTokens bool

	// MaxClientsPerIP limits the number of clients that can be registered
	// per IP. Prevents DoS attacks via mass client registration.
	// 0 = use default (10), negative = no limit.
	MaxClientsPerIP int

	// Rate limiting configuration for the OAuth endpoints
	RateLimit RateLimitConfig

	// Metrics records grant outcomes and live token counts (optional,
	// defaults to a no-op recorder)
	Metrics *instrumentation.Metrics

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is the number of requests per second allowed per IP (0 = no limit)
	Rate int

	// Burst is the maximum burst size allowed per IP
	Burst int

	// CleanupInterval is how often to cleanup inactive rate limiters
	// Default: 5 minutes
	CleanupInterval time.Duration

	// TrustProxy indicates whether to trust X-Forwarded-For and X-Real-IP
	// headers. Only set to true if the server is behind a trusted proxy.
	TrustProxy bool
}

// withDefaults fills in zero values with the package defaults
func (c *Config) withDefaults() {
	if c.AuthorizationCodeTTL == 0 {
		c.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if c.MaxClientsPerIP == 0 {
		c.MaxClientsPerIP = DefaultMaxClientsPerIP
	}
	if c.Metrics == nil {
		c.Metrics = &instrumentation.Metrics{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
