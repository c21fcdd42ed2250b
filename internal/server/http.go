package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/onecgate/onecgate/internal/auth"
)

// HTTPServer hosts an MCP server over SSE or streamable HTTP, together
// with the OAuth endpoints and health probes. In oauth2 mode it
// implements RFC 9728 Protected Resource Metadata so MCP clients can
// discover the embedded authorization server.
type HTTPServer struct {
	mcpServer     *mcpserver.MCPServer
	serverContext *ServerContext
	httpServer    *http.Server
	health        *HealthChecker
	serverType    string // "sse" or "streamable-http"
	baseURL       string
}

// NewHTTPServer creates a new HTTP server for MCP.
// baseURL is the externally visible base URL of the gateway; OAuth 2.1
// requires it to be HTTPS except for loopback addresses.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, sc *ServerContext, serverType, baseURL string) (*HTTPServer, error) {
	if err := validateHTTPSRequirement(baseURL); err != nil {
		return nil, err
	}

	switch serverType {
	case "sse", "streamable-http":
	default:
		return nil, fmt.Errorf("unsupported server type: %s", serverType)
	}

	return &HTTPServer{
		mcpServer:     mcpServer,
		serverContext: sc,
		health:        NewHealthChecker(sc),
		serverType:    serverType,
		baseURL:       baseURL,
	}, nil
}

// Handler builds the HTTP handler serving the MCP endpoints, the OAuth
// endpoints (oauth2 mode only) and the health probes. Exposed separately
// from Start for tests.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	sc := s.serverContext

	// The OAuth handler brings its own routes: /token, /authorize,
	// /register and the two .well-known discovery documents.
	if sc.OAuth() != nil {
		sc.OAuth().RegisterRoutes(mux)
	}

	s.health.RegisterHealthEndpoints(mux)

	// Carries the credential resolved by the middleware from the request
	// context into the context seen by tool handlers.
	credentialFunc := func(ctx context.Context, r *http.Request) context.Context {
		if cred, ok := auth.CredentialFromContext(r.Context()); ok {
			return auth.WithCredential(ctx, cred)
		}
		return ctx
	}

	switch s.serverType {
	case "sse":
		sseServer := mcpserver.NewSSEServer(s.mcpServer,
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
			mcpserver.WithSSEContextFunc(credentialFunc),
		)
		mux.Handle("/sse", s.protect(sseServer))
		mux.Handle("/message", s.protect(sseServer))

	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath("/mcp"),
			mcpserver.WithHTTPContextFunc(credentialFunc),
		)
		mux.Handle("/mcp", s.protect(httpServer))
	}

	return s.instrument(mux)
}

// Start starts the HTTP server. It blocks until the listener fails or
// the server is shut down.
func (s *HTTPServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.serverContext.Logger().Info("starting MCP HTTP server",
		"addr", addr,
		"transport", s.serverType,
		"auth_mode", s.serverContext.Resolver().Mode(),
	)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// HealthChecker returns the health checker for readiness toggling.
func (s *HTTPServer) HealthChecker() *HealthChecker {
	return s.health
}

// protect wraps an MCP endpoint with rate limiting (oauth2 mode) and
// the credential resolver middleware. In none mode the resolver always
// yields the static credential, so the middleware never rejects.
func (s *HTTPServer) protect(next http.Handler) http.Handler {
	sc := s.serverContext
	handler := auth.RequireToken(sc.Resolver(), s.baseURL, next)
	if sc.OAuth() != nil {
		handler = sc.OAuth().RateLimitMiddleware(handler)
	}
	return handler
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so SSE streaming keeps working
// behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrument records request count and duration per method and path.
func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.serverContext.Metrics().RecordHTTPRequest(
			r.Context(), r.Method, r.URL.Path, recorder.status, time.Since(start))
	})
}

// validateHTTPSRequirement ensures OAuth 2.1 HTTPS compliance.
// HTTP is allowed only for loopback addresses (localhost, 127.0.0.1, ::1).
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	default:
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
