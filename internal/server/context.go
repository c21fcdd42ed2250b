package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/onecgate/onecgate/internal/auth"
	"github.com/onecgate/onecgate/internal/instrumentation"
	"github.com/onecgate/onecgate/internal/onec"
)

// Config holds the dependencies for a ServerContext.
type Config struct {
	// Backend is the 1C:Enterprise HTTP client all tool calls go through.
	Backend *onec.Client

	// Resolver maps inbound Authorization headers to back-end credentials.
	Resolver *auth.Resolver

	// OAuth is the embedded authorization server. Nil unless the gateway
	// runs in oauth2 mode.
	OAuth *auth.Handler

	// Instrumentation provides metrics and tracing. May be nil.
	Instrumentation *instrumentation.Provider

	// Metrics overrides the recorder derived from Instrumentation.
	// Defaults to the provider's recorder, or a no-op one when no
	// provider is configured.
	Metrics *instrumentation.Metrics

	// Logger is the structured logger for the server. Defaults to
	// slog.Default when nil.
	Logger *slog.Logger
}

// ServerContext holds the shared state for the MCP server: the back-end
// client, the credential resolver, the optional OAuth handler and the
// instrumentation provider.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	backend  *onec.Client
	resolver *auth.Resolver
	oauth    *auth.Handler
	provider *instrumentation.Provider
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, config Config) (*ServerContext, error) {
	if config.Backend == nil {
		return nil, fmt.Errorf("back-end client is required")
	}
	if config.Resolver == nil {
		return nil, fmt.Errorf("credential resolver is required")
	}
	if config.Resolver.Mode() == auth.ModeOAuth2 && config.OAuth == nil {
		return nil, fmt.Errorf("oauth2 mode requires an OAuth handler")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	metrics := config.Metrics
	if metrics == nil {
		if config.Instrumentation != nil {
			metrics = config.Instrumentation.Metrics()
		} else {
			metrics = &instrumentation.Metrics{}
		}
	}
	config.Resolver.SetMetrics(metrics)

	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		backend:  config.Backend,
		resolver: config.Resolver,
		oauth:    config.OAuth,
		provider: config.Instrumentation,
		metrics:  metrics,
		logger:   config.Logger,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Backend returns the 1C back-end client
func (sc *ServerContext) Backend() *onec.Client {
	return sc.backend
}

// Resolver returns the credential resolver
func (sc *ServerContext) Resolver() *auth.Resolver {
	return sc.resolver
}

// OAuth returns the embedded OAuth handler, or nil when the gateway
// runs without token checks
func (sc *ServerContext) OAuth() *auth.Handler {
	return sc.oauth
}

// Metrics returns the instrumentation metrics. The zero-value Metrics
// is returned when instrumentation is disabled, so callers never need a
// nil check.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Instrumentation returns the instrumentation provider. May be nil.
func (sc *ServerContext) Instrumentation() *instrumentation.Provider {
	return sc.provider
}

// Logger returns the server logger
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context. It stops the OAuth background
// sweepers and cancels the context handed to in-flight tool calls.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	if sc.oauth != nil {
		sc.oauth.Close()
	}
	sc.cancel()
	return nil
}
