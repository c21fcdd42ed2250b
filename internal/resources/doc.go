// Package resources registers the static MCP resources and prompts of
// the gateway: the embedded 1C syntax quick reference and the
// configuration exploration prompt. Unlike the tools these never touch
// the back end.
package resources
