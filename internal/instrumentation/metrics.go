package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrResult    = "result"
	attrGrantType = "grant_type"
	attrTool      = "tool"
	attrTokenKind = "kind"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a no-op recorder, used when instrumentation is disabled.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// OAuth metrics
	grantsTotal           metric.Int64Counter
	tokenValidationsTotal metric.Int64Counter
	activeTokens          metric.Int64UpDownCounter

	// Back-end proxy metrics
	backendCallsTotal   metric.Int64Counter
	backendCallDuration metric.Float64Histogram

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.grantsTotal, err = meter.Int64Counter(
		"oauth_grants_total",
		metric.WithDescription("Total number of OAuth grant exchanges"),
		metric.WithUnit("{grant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_grants_total counter: %w", err)
	}

	m.tokenValidationsTotal, err = meter.Int64Counter(
		"oauth_token_validations_total",
		metric.WithDescription("Total number of access token validations"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_validations_total counter: %w", err)
	}

	m.activeTokens, err = meter.Int64UpDownCounter(
		"oauth_active_tokens",
		metric.WithDescription("Number of live issued tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_active_tokens gauge: %w", err)
	}

	m.backendCallsTotal, err = meter.Int64Counter(
		"backend_calls_total",
		metric.WithDescription("Total number of proxied back-end calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_calls_total counter: %w", err)
	}

	m.backendCallDuration, err = meter.Float64Histogram(
		"backend_call_duration_seconds",
		metric.WithDescription("Back-end call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_call_duration_seconds histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGrant records an OAuth grant exchange.
// grantType is password, authorization_code or refresh_token;
// result is "success" or "error".
func (m *Metrics) RecordGrant(ctx context.Context, grantType, result string) {
	if m.grantsTotal == nil {
		return // Instrumentation not initialized
	}

	m.grantsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrGrantType, grantType),
		attribute.String(attrResult, result),
	))
}

// RecordTokenValidation records an access token validation attempt.
// result is "success" or "error".
func (m *Metrics) RecordTokenValidation(ctx context.Context, result string) {
	if m.tokenValidationsTotal == nil {
		return // Instrumentation not initialized
	}

	m.tokenValidationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// AddActiveTokens adjusts the live token gauge.
// kind is "access" or "refresh"; delta may be negative.
func (m *Metrics) AddActiveTokens(ctx context.Context, kind string, delta int64) {
	if m.activeTokens == nil {
		return // Instrumentation not initialized
	}

	m.activeTokens.Add(ctx, delta, metric.WithAttributes(
		attribute.String(attrTokenKind, kind),
	))
}

// RecordBackendCall records a proxied back-end call with its RPC method,
// outcome status and duration.
func (m *Metrics) RecordBackendCall(ctx context.Context, method, status string, duration time.Duration) {
	if m.backendCallsTotal == nil || m.backendCallDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrStatus, status),
	}

	m.backendCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.backendCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
