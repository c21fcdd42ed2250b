// Package cmd implements the command-line interface for onecgate.
//
// This package provides the following commands:
//   - serve: Start the MCP gateway in front of a 1C:Enterprise back end
//   - token: Obtain an access token from a running gateway (password grant)
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
