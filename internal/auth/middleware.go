package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// contextKey is the type for context keys
type contextKey string

// credentialContextKey is the key for storing the resolved back-end
// credential in the request context
const credentialContextKey contextKey = "backend_credential"

// RequireToken is middleware that resolves the effective back-end
// credential for a request and stores it in the request context.
// In oauth2 mode an invalid or missing Bearer token yields a 401 with a
// WWW-Authenticate challenge pointing at the resource metadata.
func RequireToken(resolver *Resolver, issuer string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, err := resolver.Resolve(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(
				`Bearer realm="%s", resource_metadata="/.well-known/oauth-protected-resource", error="invalid_token"`,
				issuer,
			))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(ErrorResponse{
				Error:            "invalid_token",
				ErrorDescription: "Missing or invalid access token",
			})
			return
		}

		ctx := WithCredential(r.Context(), cred)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithCredential returns a context carrying the resolved back-end credential
func WithCredential(ctx context.Context, cred Credential) context.Context {
	return context.WithValue(ctx, credentialContextKey, cred)
}

// CredentialFromContext retrieves the resolved back-end credential from the
// request context
func CredentialFromContext(ctx context.Context) (Credential, bool) {
	cred, ok := ctx.Value(credentialContextKey).(Credential)
	return cred, ok
}
