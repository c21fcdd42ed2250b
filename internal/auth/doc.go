// Package auth implements the OAuth 2.1 authorization server that fronts
// the MCP gateway.
//
// The server issues opaque access tokens bound to 1C back-end credentials
// (username/password pairs). Supported flows are the resource owner
// password grant, the authorization code grant with PKCE, and refresh
// token grants. All state is held in memory; tokens do not survive a
// restart.
package auth
