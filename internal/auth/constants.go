package auth

import "time"

// Token and code lifetimes
const (
	// DefaultAuthorizationCodeTTL is how long authorization codes are valid (2 minutes)
	DefaultAuthorizationCodeTTL = 2 * time.Minute

	// DefaultAccessTokenTTL is the default access token expiry (1 hour)
	DefaultAccessTokenTTL = 1 * time.Hour

	// DefaultRefreshTokenTTL is the default time-to-live for refresh tokens (14 days)
	DefaultRefreshTokenTTL = 14 * 24 * time.Hour

	// DefaultSweepInterval is how often expired tokens and codes are swept
	// from memory. Expiry is always enforced at lookup time; the sweep only
	// bounds memory growth.
	DefaultSweepInterval = 1 * time.Minute

	// DefaultRateLimitCleanupInterval is how often to cleanup inactive rate limiters
	DefaultRateLimitCleanupInterval = 5 * time.Minute

	// InactiveLimiterCleanupWindow is the time after which inactive limiters are removed
	InactiveLimiterCleanupWindow = 10 * time.Minute
)

// Client and security defaults
const (
	// DefaultMaxClientsPerIP is the default limit for client registrations per IP
	DefaultMaxClientsPerIP = 10

	// DefaultRateLimitRate is the default requests per second per IP
	DefaultRateLimitRate = 10

	// DefaultRateLimitBurst is the default burst size for rate limiting
	DefaultRateLimitBurst = 20

	// DefaultTokenEndpointAuthMethod is the default client authentication method
	DefaultTokenEndpointAuthMethod = "client_secret_basic"
)

// Token generation lengths (bytes of entropy before base64url encoding)
const (
	// ClientIDTokenLength is the length of generated client IDs
	ClientIDTokenLength = 16

	// ClientSecretTokenLength is the length of generated client secrets
	ClientSecretTokenLength = 32

	// AuthorizationCodeLength is the length of generated authorization codes
	AuthorizationCodeLength = 32

	// AccessTokenLength is the length of generated access tokens
	AccessTokenLength = 32

	// RefreshTokenLength is the length of generated refresh tokens
	RefreshTokenLength = 32
)

// Grant type identifiers
const (
	GrantTypePassword          = "password"
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// PKCE code challenge methods
const (
	ChallengeMethodS256  = "S256"
	ChallengeMethodPlain = "plain"
)

// Supported grant types, response types and auth methods
var (
	// DefaultGrantTypes are the grant types supported by default
	DefaultGrantTypes = []string{"authorization_code", "password", "refresh_token"}

	// DefaultResponseTypes are the response types supported by default
	DefaultResponseTypes = []string{"code"}

	// SupportedCodeChallengeMethods are the PKCE methods we support
	SupportedCodeChallengeMethods = []string{"S256", "plain"}

	// SupportedTokenAuthMethods are the supported token endpoint auth methods
	SupportedTokenAuthMethods = []string{"client_secret_basic", "client_secret_post", "none"}

	// LoopbackAddresses lists recognized loopback addresses for development
	LoopbackAddresses = []string{"localhost", "127.0.0.1", "::1", "[::1]"}
)
