package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/term"
)

// newTokenCmd obtains an access token from a running gateway using the
// OAuth password grant. Useful for scripting and for smoke-testing a
// deployment without an MCP client.
func newTokenCmd() *cobra.Command {
	var (
		gatewayURL string
		username   string
		password   string
		scope      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain an access token from a running gateway",
		Long: `Request an access token from a running onecgate instance via the OAuth
password grant. The 1C credentials are validated against the back end
and the returned token can be used as a Bearer token on the MCP
endpoints.

The password is read from ONEC_PASSWORD, the --password flag, or
interactively from the terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if gatewayURL == "" {
				gatewayURL = os.Getenv("MCP_BASE_URL")
			}
			if gatewayURL == "" {
				return fmt.Errorf("gateway URL is required (--url or MCP_BASE_URL)")
			}
			if username == "" {
				username = os.Getenv("ONEC_USERNAME")
			}
			if username == "" {
				return fmt.Errorf("username is required (--username or ONEC_USERNAME)")
			}
			if password == "" {
				password = os.Getenv("ONEC_PASSWORD")
			}
			if password == "" {
				fmt.Fprint(os.Stderr, "1C password: ")
				raw, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = string(raw)
			}

			conf := &oauth2.Config{
				Endpoint: oauth2.Endpoint{
					TokenURL: strings.TrimRight(gatewayURL, "/") + "/oauth/token",
				},
			}
			if scope != "" {
				conf.Scopes = strings.Fields(scope)
			}

			token, err := conf.PasswordCredentialsToken(context.Background(), username, password)
			if err != nil {
				return fmt.Errorf("token request failed: %w", err)
			}

			if jsonOutput {
				out := map[string]interface{}{
					"access_token": token.AccessToken,
					"token_type":   token.TokenType,
					"expiry":       token.Expiry,
				}
				if refresh := token.RefreshToken; refresh != "" {
					out["refresh_token"] = refresh
				}
				encoded, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(encoded))
				return nil
			}

			fmt.Println(token.AccessToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&gatewayURL, "url", "", "Base URL of the running gateway, e.g. http://localhost:8000. Can also use MCP_BASE_URL env var.")
	cmd.Flags().StringVar(&username, "username", "", "1C username. Can also use ONEC_USERNAME env var.")
	cmd.Flags().StringVar(&password, "password", "", "1C password. Can also use ONEC_PASSWORD env var. Prompted interactively if omitted.")
	cmd.Flags().StringVar(&scope, "scope", "", "Requested scopes (space separated)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full token response as JSON")

	return cmd
}
