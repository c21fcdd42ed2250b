package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuthError is an RFC 6749 error response: the machine-readable code,
// a description for humans and the HTTP status to answer with.
type OAuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOAuthError builds an OAuthError with an explicit status code.
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{Code: code, Description: description, Status: status}
}

// ErrInvalidRequest: the request is malformed or missing a required
// parameter.
func ErrInvalidRequest(desc string) *OAuthError {
	return NewOAuthError("invalid_request", desc, http.StatusBadRequest)
}

// ErrInvalidGrant: the presented code, credential or refresh token is
// not acceptable. Descriptions stay generic so callers cannot probe
// which check failed.
func ErrInvalidGrant(desc string) *OAuthError {
	return NewOAuthError("invalid_grant", desc, http.StatusBadRequest)
}

// ErrInvalidClient: client authentication failed. Answered with 401
// and a WWW-Authenticate challenge at the token endpoint.
func ErrInvalidClient(desc string) *OAuthError {
	return NewOAuthError("invalid_client", desc, http.StatusUnauthorized)
}

// ErrUnsupportedGrantType: the grant_type value is not one this server
// implements.
func ErrUnsupportedGrantType(desc string) *OAuthError {
	return NewOAuthError("unsupported_grant_type", desc, http.StatusBadRequest)
}

// ErrInvalidRedirectURI: the redirect URI is missing, malformed or not
// registered for the client.
func ErrInvalidRedirectURI(desc string) *OAuthError {
	return NewOAuthError("invalid_redirect_uri", desc, http.StatusBadRequest)
}

// ErrServerError: an internal failure while executing an otherwise
// valid request.
func ErrServerError(desc string) *OAuthError {
	return NewOAuthError("server_error", desc, http.StatusInternalServerError)
}

// ErrUnauthorized is returned by token validation and credential
// resolution when no valid credential can be established. The transport
// layer maps it to a 401 with a WWW-Authenticate challenge.
var ErrUnauthorized = errors.New("unauthorized")
