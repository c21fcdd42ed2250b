package auth

// Credential is a back-end username/password pair bound to issued tokens.
// It is never serialized into any client-facing response.
type Credential struct {
	Username string
	Password string
}

// Client is a registered OAuth client
type Client struct {
	// ClientID is the generated client identifier
	ClientID string

	// ClientSecretHash is the bcrypt hash of the client secret.
	// Empty for public clients (token_endpoint_auth_method "none").
	ClientSecretHash string

	// ClientIDIssuedAt is the Unix timestamp of registration
	ClientIDIssuedAt int64

	// RedirectURIs are the registered redirect URIs
	RedirectURIs []string

	// TokenEndpointAuthMethod is how the client authenticates at the token endpoint
	TokenEndpointAuthMethod string

	// GrantTypes are the grant types the client may use
	GrantTypes []string

	// ResponseTypes are the response types the client may use
	ResponseTypes []string

	// ClientName is the human-readable client name
	ClientName string

	// Scope is the default scope for the client
	Scope string
}

// Public reports whether the client authenticates with no secret
func (c *Client) Public() bool {
	return c.TokenEndpointAuthMethod == "none"
}

// ClientRegistrationRequest is a Dynamic Client Registration request (RFC 7591)
type ClientRegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// ClientRegistrationResponse is a Dynamic Client Registration response (RFC 7591)
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ClientName              string   `json:"client_name,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// AuthorizationCode is an issued single-use authorization code with its
// bound credential and PKCE parameters
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	Credential          Credential
	CreatedAt           int64
	ExpiresAt           int64
}

// AccessToken is an issued opaque access token with its bound credential
type AccessToken struct {
	Token      string
	ClientID   string
	Credential Credential
	Scope      string
	IssuedAt   int64
	ExpiresAt  int64
}

// RefreshToken is an issued opaque refresh token with its bound credential
type RefreshToken struct {
	Token      string
	ClientID   string
	Credential Credential
	Scope      string
	IssuedAt   int64
	ExpiresAt  int64
}

// TokenResponse is a successful token endpoint response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ErrorResponse represents an OAuth error response
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}

// AuthorizationServerMetadata is OAuth 2.0 Authorization Server Metadata (RFC 8414)
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
}

// ProtectedResourceMetadata is OAuth 2.0 Protected Resource Metadata (RFC 9728)
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}
