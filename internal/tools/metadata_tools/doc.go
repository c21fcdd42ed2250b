// Package metadata_tools registers the MCP tools exposing the 1C
// configuration metadata: object listings, object structure and
// predefined data. Each tool is a 1:1 passthrough to the matching
// back-end RPC method, called under the credential resolved for the
// request.
package metadata_tools
