package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/onecgate/onecgate/internal/instrumentation"
)

// Handler implements the OAuth 2.1 endpoints of the gateway.
// It is both the authorization server (issuing tokens bound to back-end
// credentials) and the resource server front (validating Bearer tokens on
// the MCP endpoints via RequireToken).
type Handler struct {
	config      *Config
	clients     *ClientStore
	codes       *CodeStore
	tokens      *TokenStore
	grants      *GrantService
	rateLimiter RateLimiter
	metrics     *instrumentation.Metrics
	logger      *slog.Logger
}

// NewHandler creates a new OAuth handler.
// verifier checks password grant credentials against the back-end and may
// be nil to disable the password grant.
func NewHandler(config *Config, verifier CredentialVerifier) (*Handler, error) {
	if config.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}

	// Allow HTTP only for loopback addresses (development),
	// require HTTPS everywhere else
	parsedURL, err := url.Parse(config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer URL: %w", err)
	}
	if parsedURL.Scheme != "https" && !isLoopback(parsedURL.Hostname()) {
		return nil, fmt.Errorf("issuer must use HTTPS in production (got %s://)", parsedURL.Scheme)
	}

	config.withDefaults()
	logger := config.Logger

	var rateLimiter RateLimiter
	if config.RateLimit.Rate > 0 {
		burst := config.RateLimit.Burst
		if burst == 0 {
			burst = config.RateLimit.Rate * 2
		}
		rateLimiter = NewTokenBucketLimiter(config.RateLimit.Rate, burst,
			config.RateLimit.TrustProxy, config.RateLimit.CleanupInterval, logger)
		logger.Info("IP-based rate limiting enabled",
			"rate", config.RateLimit.Rate,
			"burst", burst)
	}

	clients := NewClientStore(logger)
	codes := NewCodeStore(config.AuthorizationCodeTTL, logger)
	tokens := NewTokenStore(config.AccessTokenTTL, config.RefreshTokenTTL, logger)
	tokens.SetMetrics(config.Metrics)

	grants := NewGrantService(codes, tokens, verifier, logger)
	grants.RotateRefreshTokens = config.RotateRefreshTokens

	return &Handler{
		config:      config,
		clients:     clients,
		codes:       codes,
		tokens:      tokens,
		grants:      grants,
		rateLimiter: rateLimiter,
		metrics:     config.Metrics,
		logger:      logger,
	}, nil
}

// Tokens returns the underlying token store (for resolver wiring and tests)
func (h *Handler) Tokens() *TokenStore {
	return h.tokens
}

// Clients returns the underlying client store
func (h *Handler) Clients() *ClientStore {
	return h.clients
}

// Close stops the background sweep goroutines
func (h *Handler) Close() {
	h.codes.Close()
	h.tokens.Close()
	if limiter, ok := h.rateLimiter.(*TokenBucketLimiter); ok {
		limiter.Close()
	}
}

// RegisterRoutes registers the OAuth endpoints on the given mux.
// The endpoints are served both under /oauth/ (advertised in discovery
// metadata) and at the bare paths for clients that hardcode them.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	token := h.rateLimit(http.HandlerFunc(h.ServeToken))
	authorize := h.rateLimit(http.HandlerFunc(h.ServeAuthorize))
	register := h.rateLimit(http.HandlerFunc(h.ServeRegister))

	mux.Handle("/oauth/token", token)
	mux.Handle("/oauth/authorize", authorize)
	mux.Handle("/oauth/register", register)
	mux.Handle("/token", token)
	mux.Handle("/authorize", authorize)
	mux.Handle("/register", register)
	mux.HandleFunc("/.well-known/oauth-authorization-server", h.ServeAuthorizationServerMetadata)
	mux.HandleFunc("/.well-known/oauth-protected-resource", h.ServeProtectedResourceMetadata)
}

// ServeToken handles the OAuth token endpoint
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, "invalid_request", "Failed to parse request", http.StatusBadRequest)
		return
	}

	var grant Grant
	clientRequired := false
	grantType := r.FormValue("grant_type")
	switch grantType {
	case GrantTypePassword:
		grant = PasswordGrant{
			Username: r.FormValue("username"),
			Password: r.FormValue("password"),
			Scope:    r.FormValue("scope"),
		}
	case GrantTypeAuthorizationCode:
		clientRequired = true
		grant = AuthorizationCodeGrant{
			Code:         r.FormValue("code"),
			RedirectURI:  r.FormValue("redirect_uri"),
			CodeVerifier: r.FormValue("code_verifier"),
		}
	case GrantTypeRefreshToken:
		grant = RefreshGrant{
			Token: r.FormValue("refresh_token"),
		}
	default:
		h.writeError(w, "unsupported_grant_type",
			fmt.Sprintf("Grant type %q not supported", grantType), http.StatusBadRequest)
		return
	}

	// Client authentication is mandatory for the authorization_code grant
	// and optional for password and refresh grants: a client that does
	// identify itself must still authenticate correctly.
	clientID, oauthErr := h.authenticateClient(r, clientRequired)
	if oauthErr != nil {
		h.metrics.RecordGrant(r.Context(), grantType, instrumentation.StatusError)
		if oauthErr.Code == "invalid_client" {
			w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
		}
		h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
		return
	}

	resp, oauthErr := h.grants.Exchange(r.Context(), clientID, grant)
	if oauthErr != nil {
		h.metrics.RecordGrant(r.Context(), grantType, instrumentation.StatusError)
		h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
		return
	}
	h.metrics.RecordGrant(r.Context(), grantType, instrumentation.StatusSuccess)

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode token response", "error", err)
	}
}

// authenticateClient authenticates the client from Basic auth or form
// parameters (client_secret_basic / client_secret_post). Public clients
// present only their client_id.
func (h *Handler) authenticateClient(r *http.Request, required bool) (string, *OAuthError) {
	clientID := r.FormValue("client_id")
	clientSecret := r.FormValue("client_secret")

	if basicID, basicSecret, ok := r.BasicAuth(); ok {
		// RFC 6749 section 2.3.1: credentials are form-urlencoded before
		// being placed in the Basic header
		if unescaped, err := url.QueryUnescape(basicID); err == nil {
			basicID = unescaped
		}
		if unescaped, err := url.QueryUnescape(basicSecret); err == nil {
			basicSecret = unescaped
		}
		clientID = basicID
		clientSecret = basicSecret
	}

	if clientID == "" {
		if required {
			return "", ErrInvalidClient("client authentication required")
		}
		return "", nil
	}

	client, err := h.clients.GetClient(clientID)
	if err != nil {
		h.logger.Warn("Unknown client at token endpoint", "client_id", clientID)
		return "", ErrInvalidClient("client authentication failed")
	}

	if client.Public() {
		return clientID, nil
	}

	if err := h.clients.ValidateClientSecret(clientID, clientSecret); err != nil {
		h.logger.Warn("Client secret validation failed", "client_id", clientID)
		return "", ErrInvalidClient("client authentication failed")
	}

	return clientID, nil
}

// ServeRegister handles Dynamic Client Registration (RFC 7591)
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "invalid_request", "Failed to parse registration request", http.StatusBadRequest)
		return
	}

	// At least one redirect_uri is required for the authorization_code flow
	if len(req.RedirectURIs) == 0 {
		h.writeError(w, "invalid_redirect_uri", "At least one redirect_uri is required", http.StatusBadRequest)
		return
	}

	for _, uri := range req.RedirectURIs {
		if err := validateRedirectURI(uri, h.config.Issuer); err != nil {
			h.writeError(w, "invalid_redirect_uri", err.Error(), http.StatusBadRequest)
			return
		}
	}

	// Check per-IP client registration limit for DoS protection
	clientIP := getClientIP(r, h.config.RateLimit.TrustProxy)
	if err := h.clients.CheckIPLimit(clientIP, h.config.MaxClientsPerIP); err != nil {
		h.logger.Warn("Client registration limit exceeded",
			"client_ip", clientIP,
			"limit", h.config.MaxClientsPerIP)
		h.writeError(w, "invalid_request",
			fmt.Sprintf("Client registration limit exceeded for your IP address (%d max)", h.config.MaxClientsPerIP),
			http.StatusTooManyRequests)
		return
	}

	resp, err := h.clients.RegisterClient(&req, clientIP)
	if err != nil {
		h.logger.Error("Failed to register client", "error", err)
		h.writeError(w, "server_error", "Failed to register client", http.StatusInternalServerError)
		return
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode registration response", "error", err)
	}
}

// ServeAuthorizationServerMetadata serves OAuth 2.0 Authorization Server
// Metadata (RFC 8414)
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := AuthorizationServerMetadata{
		Issuer:                            h.config.Issuer,
		AuthorizationEndpoint:             h.config.Issuer + "/oauth/authorize",
		TokenEndpoint:                     h.config.Issuer + "/oauth/token",
		RegistrationEndpoint:              h.config.Issuer + "/oauth/register",
		ScopesSupported:                   h.config.SupportedScopes,
		ResponseTypesSupported:            DefaultResponseTypes,
		GrantTypesSupported:               DefaultGrantTypes,
		TokenEndpointAuthMethodsSupported: SupportedTokenAuthMethods,
		CodeChallengeMethodsSupported:     SupportedCodeChallengeMethods,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("Failed to encode authorization server metadata", "error", err)
	}
}

// ServeProtectedResourceMetadata serves OAuth 2.0 Protected Resource
// Metadata (RFC 9728). MCP clients discover the authorization server
// through this document after receiving a 401.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := ProtectedResourceMetadata{
		Resource:               h.config.Issuer,
		AuthorizationServers:   []string{h.config.Issuer},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        h.config.SupportedScopes,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("Failed to encode metadata", "error", err)
	}
}

// RateLimitMiddleware wraps an arbitrary handler with the same per-IP
// rate limiting applied to the OAuth endpoints. The server uses it to
// protect the MCP endpoints as well.
func (h *Handler) RateLimitMiddleware(next http.Handler) http.Handler {
	return h.rateLimit(next)
}

// rateLimit wraps a handler with IP-based rate limiting when configured
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	if h.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r, h.config.RateLimit.TrustProxy)

		if !h.rateLimiter.Allow(ip) {
			w.Header().Set("Retry-After", "1")
			h.writeError(w, "rate_limit_exceeded",
				"Rate limit exceeded. Please try again later",
				http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setSecurityHeaders sets security headers on HTTP responses
func (h *Handler) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	w.Header().Set("Referrer-Policy", "no-referrer")

	if parsedURL, err := url.Parse(h.config.Issuer); err == nil && parsedURL.Scheme == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

// writeError is a helper to write OAuth error responses
func (h *Handler) writeError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	h.logger.Debug("OAuth error", "code", errorCode, "description", description, "status", statusCode)
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// validateRedirectURI validates a redirect URI according to OAuth 2.0
// Security Best Current Practice
func validateRedirectURI(uri string, issuer string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid redirect_uri format: %s", uri)
	}

	if parsed.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain fragments: %s", uri)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("redirect_uri must have a scheme: %s", uri)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("redirect_uri scheme %q not allowed (only http/https permitted)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("redirect_uri must have a host: %s", uri)
	}

	// Loopback redirects stay allowed everywhere; non-loopback redirects
	// require HTTPS when the gateway itself is not running on loopback
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return fmt.Errorf("cannot validate redirect_uri: invalid issuer")
	}

	if !isLoopback(issuerURL.Hostname()) && !isLoopback(parsed.Hostname()) && parsed.Scheme != "https" {
		return fmt.Errorf("redirect_uri must use HTTPS for non-localhost redirects: %s", uri)
	}

	return nil
}

// isLoopback checks if a hostname is a loopback address
func isLoopback(hostname string) bool {
	for _, loopback := range LoopbackAddresses {
		if hostname == loopback {
			return true
		}
	}
	return len(hostname) > 4 && hostname[:4] == "127."
}
