// Package common provides shared helpers for MCP tool handlers:
// credential resolution from the request context and instrumentation
// wrapping for metrics and tracing.
package common
