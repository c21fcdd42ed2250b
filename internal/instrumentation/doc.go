// Package instrumentation provides OpenTelemetry metrics and tracing for
// the gateway.
//
// Metrics cover the OAuth grant pipeline (grants by type and result, token
// validations, live token counts), the back-end proxy (call counts and
// latency by method and status) and the HTTP surface. The meter provider
// exports through Prometheus by default; OTLP and stdout exporters are
// available for collector-based setups and local debugging.
package instrumentation
