package auth

import (
	"context"
	"strings"

	"github.com/onecgate/onecgate/internal/instrumentation"
)

// Auth modes for the gateway
const (
	// ModeNone disables token checks: every request runs under the static
	// credential from the environment
	ModeNone = "none"

	// ModeOAuth2 requires a Bearer token issued by this server
	ModeOAuth2 = "oauth2"
)

// Resolver turns an inbound request's Authorization header into the
// effective back-end credential.
type Resolver struct {
	mode    string
	static  Credential
	tokens  *TokenStore
	metrics *instrumentation.Metrics
}

// NewResolver creates a resolver for the given auth mode.
// In ModeNone the static credential is returned for every request and
// tokens may be nil. In ModeOAuth2 a token store is required.
func NewResolver(mode string, static Credential, tokens *TokenStore) *Resolver {
	return &Resolver{
		mode:    mode,
		static:  static,
		tokens:  tokens,
		metrics: &instrumentation.Metrics{},
	}
}

// SetMetrics attaches a metrics recorder for token validation outcomes.
// Must be called before the resolver starts serving requests.
func (r *Resolver) SetMetrics(m *instrumentation.Metrics) {
	if m == nil {
		m = &instrumentation.Metrics{}
	}
	r.metrics = m
}

// Mode returns the configured auth mode
func (r *Resolver) Mode() string {
	return r.mode
}

// Resolve returns the back-end credential for a request given its
// Authorization header value. All failures are ErrUnauthorized: callers
// learn nothing about whether the token was missing, malformed, unknown
// or expired.
func (r *Resolver) Resolve(authorization string) (Credential, error) {
	if r.mode != ModeOAuth2 {
		return r.static, nil
	}

	if authorization == "" {
		r.metrics.RecordTokenValidation(context.Background(), instrumentation.StatusError)
		return Credential{}, ErrUnauthorized
	}

	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		r.metrics.RecordTokenValidation(context.Background(), instrumentation.StatusError)
		return Credential{}, ErrUnauthorized
	}

	record, err := r.tokens.ValidateAccess(parts[1])
	if err != nil {
		r.metrics.RecordTokenValidation(context.Background(), instrumentation.StatusError)
		return Credential{}, ErrUnauthorized
	}

	r.metrics.RecordTokenValidation(context.Background(), instrumentation.StatusSuccess)
	return record.Credential, nil
}
