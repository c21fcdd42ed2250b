// Package onec is the HTTP client for the 1C:Enterprise back-end service.
//
// It forwards JSON-RPC 2.0 calls with Basic Auth from the resolved
// credential over one shared pooled connection, classifies failures into
// unauthorized / unavailable / protocol, and performs no retries of its
// own.
package onec
