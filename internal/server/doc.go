// Package server wires the MCP server to its HTTP transports.
//
// It hosts the MCP endpoints (stdio has no server here; SSE and
// streamable HTTP do), the OAuth endpoints when the gateway runs in
// oauth2 mode, Kubernetes health probes, and a dedicated Prometheus
// metrics listener. Every MCP request passes through the credential
// resolver so that tool handlers always find a back-end credential in
// their context.
package server
