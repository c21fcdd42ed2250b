package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the onecgate application
var rootCmd = &cobra.Command{
	Use:   "onecgate",
	Short: "MCP gateway for 1C:Enterprise",
	Long: `onecgate is a Model Context Protocol gateway in front of a 1C:Enterprise
back end. AI agents connect to it as an ordinary MCP server; every tool
call is forwarded to the 1C HTTP service under the credentials resolved
for the request.

It can run with:
  - no authentication, forwarding everything under a static credential
  - an embedded OAuth 2.1 authorization server issuing opaque tokens
    bound to per-user 1C credentials`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "onecgate version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("onecgate version %s\n", version)
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())
}
