package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/onecgate/onecgate/internal/auth"
	"github.com/onecgate/onecgate/internal/instrumentation"
	"github.com/onecgate/onecgate/internal/onec"
	"github.com/onecgate/onecgate/internal/resources"
	"github.com/onecgate/onecgate/internal/server"
	"github.com/onecgate/onecgate/internal/tools/metadata_tools"
)

// ServeConfig collects everything the serve command needs after flags
// and environment variables have been merged.
type ServeConfig struct {
	Transport string
	HTTPAddr  string
	BaseURL   string
	Debug     bool

	// 1C back end
	OnecURL      string
	OnecUsername string
	OnecPassword string

	// Authentication
	AuthMode string

	// OAuth security knobs (oauth2 mode only)
	MaxClientsPerIP     int
	RotateRefreshTokens bool
	TrustProxy          bool
	RateLimitRate       int
	RateLimitBurst      int

	// Metrics server
	MetricsEnabled bool
	MetricsAddr    string
}

func newServeCmd() *cobra.Command {
	var config ServeConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP gateway",
		Long: `Start the Model Context Protocol gateway in front of a 1C:Enterprise
back end.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - sse: Server-sent events HTTP transport (/sse + /message)
  - streamable-http: Streamable HTTP transport (/mcp)

Authentication modes (--auth-mode / MCP_AUTH_MODE):
  none    Every request is forwarded under the static credential from
          --onec-username/--onec-password (ONEC_USERNAME/ONEC_PASSWORD).
  oauth2  HTTP transports require a Bearer token issued by the embedded
          OAuth 2.1 server. Tokens are bound to the 1C credentials the
          user presented during authorization.

The 1C back end is addressed via --onec-url or ONEC_BASE_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadServeEnvVars(cmd, &config)
			return runServe(config)
		},
	}

	cmd.Flags().BoolVar(&config.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&config.Transport, "transport", "stdio", "Transport type: stdio, sse or streamable-http")
	cmd.Flags().StringVar(&config.HTTPAddr, "http-addr", ":8000", "HTTP server address (for sse and streamable-http transports)")
	cmd.Flags().StringVar(&config.BaseURL, "base-url", "", "Public base URL of the gateway. Required for deployed instances, auto-detected for localhost. Can also use MCP_BASE_URL env var.")

	cmd.Flags().StringVar(&config.OnecURL, "onec-url", "", "1C back-end base URL, e.g. http://erp.internal:8080. Can also use ONEC_BASE_URL env var.")
	cmd.Flags().StringVar(&config.OnecUsername, "onec-username", "", "Static 1C username for auth mode 'none'. Can also use ONEC_USERNAME env var.")
	cmd.Flags().StringVar(&config.OnecPassword, "onec-password", "", "Static 1C password for auth mode 'none'. Can also use ONEC_PASSWORD env var.")

	cmd.Flags().StringVar(&config.AuthMode, "auth-mode", auth.ModeNone, "Authentication mode: none or oauth2. Can also use MCP_AUTH_MODE env var.")

	cmd.Flags().IntVar(&config.MaxClientsPerIP, "oauth-max-clients-per-ip", auth.DefaultMaxClientsPerIP, "Maximum number of OAuth clients that can be registered per IP address. Can also use MCP_OAUTH_MAX_CLIENTS_PER_IP env var.")
	cmd.Flags().BoolVar(&config.RotateRefreshTokens, "oauth-rotate-refresh-tokens", false, "Rotate refresh tokens on each refresh grant. Can also use MCP_OAUTH_ROTATE_REFRESH_TOKENS env var.")
	cmd.Flags().BoolVar(&config.TrustProxy, "oauth-trust-proxy", false, "Trust X-Forwarded-For/X-Real-IP headers for rate limiting. Only enable behind a trusted proxy. Can also use MCP_OAUTH_TRUST_PROXY env var.")
	cmd.Flags().IntVar(&config.RateLimitRate, "oauth-rate-limit", auth.DefaultRateLimitRate, "Requests per second allowed per IP on the OAuth and MCP endpoints (0 disables rate limiting)")
	cmd.Flags().IntVar(&config.RateLimitBurst, "oauth-rate-limit-burst", auth.DefaultRateLimitBurst, "Burst size allowed per IP")

	cmd.Flags().BoolVar(&config.MetricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&config.MetricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars fills config fields from environment variables when
// the corresponding flag was not explicitly set.
func loadServeEnvVars(cmd *cobra.Command, config *ServeConfig) {
	if config.OnecURL == "" {
		config.OnecURL = os.Getenv("ONEC_BASE_URL")
	}
	if config.OnecUsername == "" {
		config.OnecUsername = os.Getenv("ONEC_USERNAME")
	}
	if config.OnecPassword == "" {
		config.OnecPassword = os.Getenv("ONEC_PASSWORD")
	}
	if config.BaseURL == "" {
		config.BaseURL = os.Getenv("MCP_BASE_URL")
	}

	if !cmd.Flags().Changed("auth-mode") {
		if mode := os.Getenv("MCP_AUTH_MODE"); mode != "" {
			config.AuthMode = mode
		}
	}
	if !cmd.Flags().Changed("oauth-max-clients-per-ip") {
		if envMax := os.Getenv("MCP_OAUTH_MAX_CLIENTS_PER_IP"); envMax != "" {
			if maxClients, err := strconv.Atoi(envMax); err == nil && maxClients > 0 {
				config.MaxClientsPerIP = maxClients
			}
		}
	}
	if !config.RotateRefreshTokens && os.Getenv("MCP_OAUTH_ROTATE_REFRESH_TOKENS") == "true" {
		config.RotateRefreshTokens = true
	}
	if !config.TrustProxy && os.Getenv("MCP_OAUTH_TRUST_PROXY") == "true" {
		config.TrustProxy = true
	}

	if !cmd.Flags().Changed("metrics-enabled") {
		if os.Getenv("METRICS_ENABLED") == "false" {
			config.MetricsEnabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			config.MetricsAddr = addr
		}
	}
}

func runServe(config ServeConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := setupLogger(config.Debug)

	switch config.AuthMode {
	case auth.ModeNone, auth.ModeOAuth2:
	default:
		return fmt.Errorf("unsupported auth mode: %s (supported: none, oauth2)", config.AuthMode)
	}

	if config.OnecURL == "" {
		return fmt.Errorf("1C back-end URL is required (--onec-url or ONEC_BASE_URL)")
	}
	if config.AuthMode == auth.ModeNone && (config.OnecUsername == "" || config.OnecPassword == "") {
		return fmt.Errorf("auth mode 'none' requires a static credential (--onec-username/--onec-password or ONEC_USERNAME/ONEC_PASSWORD)")
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	// Back-end client
	backend, err := onec.NewClient(onec.Config{
		BaseURL: config.OnecURL,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create back-end client: %w", err)
	}

	staticCredential := auth.Credential{
		Username: config.OnecUsername,
		Password: config.OnecPassword,
	}

	// OAuth handler and credential resolver
	var oauthHandler *auth.Handler
	var resolver *auth.Resolver

	baseURL := resolveBaseURL(config.BaseURL, config.HTTPAddr, logger)

	if config.AuthMode == auth.ModeOAuth2 {
		oauthHandler, err = auth.NewHandler(&auth.Config{
			Issuer:              baseURL,
			MaxClientsPerIP:     config.MaxClientsPerIP,
			RotateRefreshTokens: config.RotateRefreshTokens,
			RateLimit: auth.RateLimitConfig{
				Rate:       config.RateLimitRate,
				Burst:      config.RateLimitBurst,
				TrustProxy: config.TrustProxy,
			},
			Metrics: provider.Metrics(),
			Logger:  logger,
		}, backend)
		if err != nil {
			return fmt.Errorf("failed to create OAuth handler: %w", err)
		}
		resolver = auth.NewResolver(auth.ModeOAuth2, auth.Credential{}, oauthHandler.Tokens())
	} else {
		resolver = auth.NewResolver(auth.ModeNone, staticCredential, nil)
	}

	// Create server context
	serverContext, err := server.NewServerContext(shutdownCtx, server.Config{
		Backend:         backend,
		Resolver:        resolver,
		OAuth:           oauthHandler,
		Instrumentation: provider,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", "error", err)
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("onecgate", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithPromptCapabilities(true),
	)

	if err := registerAll(mcpSrv, serverContext); err != nil {
		return err
	}

	// Start the appropriate server based on transport type
	switch config.Transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "sse", "streamable-http":
		return runHTTPServer(shutdownCtx, mcpSrv, serverContext, config, baseURL, provider, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse, streamable-http)", config.Transport)
	}
}

// setupLogger installs the default slog logger. Logs go to stderr so
// the stdio transport keeps stdout clean for the protocol.
func setupLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// resolveBaseURL determines the externally visible base URL, falling
// back to localhost auto-detection for development.
func resolveBaseURL(baseURL, addr string, logger *slog.Logger) string {
	if baseURL != "" {
		return baseURL
	}
	if len(addr) > 0 && addr[0] == ':' {
		baseURL = fmt.Sprintf("http://localhost%s", addr)
	} else {
		baseURL = fmt.Sprintf("http://%s", addr)
	}
	logger.Info("no base URL configured, using auto-detected",
		"base_url", baseURL,
		"hint", "set --base-url or MCP_BASE_URL for deployed instances")
	return baseURL
}

// registerAll registers all MCP tools, resources and prompts
func registerAll(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := metadata_tools.RegisterMetadataTools(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register metadata tools: %w", err)
	}
	if err := resources.RegisterResources(mcpSrv); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}
	if err := resources.RegisterPrompts(mcpSrv); err != nil {
		return fmt.Errorf("failed to register prompts: %w", err)
	}
	return nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, config ServeConfig, baseURL string, provider *instrumentation.Provider, logger *slog.Logger) error {
	httpServer, err := server.NewHTTPServer(mcpSrv, sc, config.Transport, baseURL)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	// Start metrics server on its own port
	var metricsServer *server.MetricsServer
	if config.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    config.MetricsAddr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}
	}()

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(config.HTTPAddr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		httpServer.HealthChecker().SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
