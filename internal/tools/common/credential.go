package common

import (
	"context"

	"github.com/onecgate/onecgate/internal/auth"
	"github.com/onecgate/onecgate/internal/server"
)

// ResolveCredential returns the back-end credential for a tool call.
//
// On HTTP transports the bearer middleware has already resolved the
// credential into the context. On stdio there is no middleware, so the
// resolver is consulted directly: in none mode that yields the static
// credential, in oauth2 mode it fails because stdio carries no token.
func ResolveCredential(ctx context.Context, sc *server.ServerContext) (auth.Credential, error) {
	if cred, ok := auth.CredentialFromContext(ctx); ok {
		return cred, nil
	}
	return sc.Resolver().Resolve("")
}
