package onec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onecgate/onecgate/internal/auth"
	"github.com/onecgate/onecgate/internal/logging"
)

// Defaults for the back-end client
const (
	// DefaultRPCPath is the back-end JSON-RPC endpoint path
	DefaultRPCPath = "/mcp/request"

	// DefaultHealthPath is the back-end health endpoint path
	DefaultHealthPath = "/health"

	// DefaultCallTimeout bounds a single proxied call
	DefaultCallTimeout = 30 * time.Second

	// DefaultHealthTimeout bounds a credential health check
	DefaultHealthTimeout = 5 * time.Second

	// DefaultMaxConns bounds the shared connection pool per host
	DefaultMaxConns = 32
)

// Config holds the back-end client configuration
type Config struct {
	// BaseURL is the back-end base URL, e.g. http://erp.local:8080
	BaseURL string

	// RPCPath is the JSON-RPC endpoint path (default /mcp/request)
	RPCPath string

	// HealthPath is the health endpoint path (default /health)
	HealthPath string

	// CallTimeout bounds a single proxied call (default 30s)
	CallTimeout time.Duration

	// MaxConns bounds concurrent connections to the back-end (default 32)
	MaxConns int

	// Logger for structured logging (optional)
	Logger *slog.Logger
}

// Client calls the 1C back-end over one shared pooled HTTP client
type Client struct {
	baseURL    string
	rpcPath    string
	healthPath string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a back-end client from the given configuration
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("back-end base URL is required")
	}

	rpcPath := config.RPCPath
	if rpcPath == "" {
		rpcPath = DefaultRPCPath
	}
	healthPath := config.HealthPath
	if healthPath == "" {
		healthPath = DefaultHealthPath
	}
	timeout := config.CallTimeout
	if timeout == 0 {
		timeout = DefaultCallTimeout
	}
	maxConns := config.MaxConns
	if maxConns == 0 {
		maxConns = DefaultMaxConns
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxConnsPerHost:     maxConns,
		MaxIdleConnsPerHost: maxConns,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		rpcPath:    rpcPath,
		healthPath: healthPath,
		timeout:    timeout,
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}, nil
}

// Call forwards a JSON-RPC call to the back-end with the given credential
// as Basic Auth and returns the raw result.
//
// Classification: HTTP 401 is KindUnauthorized, connection failures,
// timeouts and 5xx are KindUnavailable, a malformed envelope or a JSON-RPC
// error object is KindProtocol. One resolved credential per call, no
// retries, no credential fallback.
func (c *Client) Call(ctx context.Context, method string, params interface{}, cred auth.Credential) (json.RawMessage, error) {
	requestID := uuid.NewString()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      requestID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.rpcPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(cred.Username, cred.Password)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Back-end call failed",
			logging.Method(method),
			logging.UserHash(cred.Username),
			logging.Err(err),
			"duration", time.Since(start),
		)
		return nil, NewUnavailableError("back-end unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, NewUnauthorizedError("back-end rejected credential")
	case resp.StatusCode >= 500:
		return nil, NewUnavailableError(fmt.Sprintf("back-end returned status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, NewProtocolError(fmt.Sprintf("unexpected back-end status %d", resp.StatusCode), nil)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, NewProtocolError("malformed back-end response", err)
	}

	if envelope.ID != requestID {
		return nil, NewProtocolError("back-end response id mismatch", nil)
	}

	if envelope.Error != nil {
		return nil, &BackendError{
			Kind:    KindProtocol,
			Message: envelope.Error.Message,
			Code:    envelope.Error.Code,
		}
	}

	c.logger.Debug("Back-end call completed",
		logging.Method(method),
		"duration", time.Since(start),
	)

	return envelope.Result, nil
}

// HealthCheck verifies that the back-end is reachable and accepts the
// credential. Used by the password grant as its credential check.
func (c *Client) HealthCheck(ctx context.Context, cred auth.Credential) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultHealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(cred.Username, cred.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewUnavailableError("back-end unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return NewUnauthorizedError("back-end rejected credential")
	case resp.StatusCode != http.StatusOK:
		return NewUnavailableError(fmt.Sprintf("back-end health returned status %d", resp.StatusCode), nil)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return NewProtocolError("malformed health response", err)
	}
	if health.Status != "healthy" {
		return NewUnavailableError(fmt.Sprintf("back-end reports status %q", health.Status), nil)
	}

	return nil
}

// VerifyCredential implements auth.CredentialVerifier
func (c *Client) VerifyCredential(ctx context.Context, cred auth.Credential) error {
	return c.HealthCheck(ctx, cred)
}
