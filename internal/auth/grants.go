package auth

import (
	"context"
	"log/slog"

	"github.com/onecgate/onecgate/internal/logging"
)

// CredentialVerifier checks a back-end credential pair for validity.
// The password grant is the only flow that verifies credentials against
// the back-end; rejection and outage both fail the grant.
type CredentialVerifier interface {
	// VerifyCredential returns nil when the back-end accepts the pair
	VerifyCredential(ctx context.Context, cred Credential) error
}

// Grant is a closed set of token grant requests. Each variant carries
// exactly the parameters its flow needs.
type Grant interface {
	grantType() string
}

// PasswordGrant is the resource owner password credentials grant
type PasswordGrant struct {
	Username string
	Password string
	Scope    string
}

// AuthorizationCodeGrant redeems an authorization code with PKCE
type AuthorizationCodeGrant struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// RefreshGrant exchanges a refresh token for a new access token
type RefreshGrant struct {
	Token string
}

func (PasswordGrant) grantType() string          { return GrantTypePassword }
func (AuthorizationCodeGrant) grantType() string { return GrantTypeAuthorizationCode }
func (RefreshGrant) grantType() string           { return GrantTypeRefreshToken }

// GrantService executes token grants against the stores. The HTTP handler
// authenticates the client first and passes the authenticated clientID in.
type GrantService struct {
	codes    *CodeStore
	tokens   *TokenStore
	verifier CredentialVerifier
	logger   *slog.Logger

	// RotateRefreshTokens enables refresh token rotation: each refresh
	// grant invalidates the presented token and issues a new one.
	// Default off: the same refresh token stays valid until it expires.
	RotateRefreshTokens bool
}

// NewGrantService creates a grant service over the given stores.
// verifier may be nil, in which case password grants are rejected.
func NewGrantService(codes *CodeStore, tokens *TokenStore, verifier CredentialVerifier, logger *slog.Logger) *GrantService {
	if logger == nil {
		logger = slog.Default()
	}

	return &GrantService{
		codes:    codes,
		tokens:   tokens,
		verifier: verifier,
		logger:   logger,
	}
}

// Exchange executes a grant for an authenticated client and returns the
// token response. Grant failures carry no detail about which check failed.
func (g *GrantService) Exchange(ctx context.Context, clientID string, grant Grant) (*TokenResponse, *OAuthError) {
	switch gr := grant.(type) {
	case PasswordGrant:
		return g.passwordGrant(ctx, clientID, gr)
	case AuthorizationCodeGrant:
		return g.authorizationCodeGrant(clientID, gr)
	case RefreshGrant:
		return g.refreshGrant(clientID, gr)
	default:
		return nil, ErrUnsupportedGrantType("unsupported grant type")
	}
}

func (g *GrantService) passwordGrant(ctx context.Context, clientID string, grant PasswordGrant) (*TokenResponse, *OAuthError) {
	if grant.Username == "" || grant.Password == "" {
		return nil, ErrInvalidRequest("username and password are required")
	}

	if g.verifier == nil {
		g.logger.Error("Password grant rejected: no credential verifier configured")
		return nil, ErrInvalidGrant("invalid credentials")
	}

	cred := Credential{Username: grant.Username, Password: grant.Password}

	if err := g.verifier.VerifyCredential(ctx, cred); err != nil {
		g.logger.Warn("Password grant failed",
			logging.ClientID(clientID),
			logging.UserHash(grant.Username),
			logging.Err(err),
		)
		return nil, ErrInvalidGrant("invalid credentials")
	}

	return g.issueTokens(clientID, cred, grant.Scope, GrantTypePassword)
}

func (g *GrantService) authorizationCodeGrant(clientID string, grant AuthorizationCodeGrant) (*TokenResponse, *OAuthError) {
	if grant.Code == "" {
		return nil, ErrInvalidRequest("code is required")
	}

	record, oauthErr := g.codes.Consume(grant.Code, clientID, grant.RedirectURI, grant.CodeVerifier)
	if oauthErr != nil {
		return nil, oauthErr
	}

	return g.issueTokens(clientID, record.Credential, record.Scope, GrantTypeAuthorizationCode)
}

func (g *GrantService) refreshGrant(clientID string, grant RefreshGrant) (*TokenResponse, *OAuthError) {
	if grant.Token == "" {
		return nil, ErrInvalidRequest("refresh_token is required")
	}

	record, err := g.tokens.ValidateRefresh(grant.Token)
	if err != nil {
		g.logger.Warn("Refresh grant failed", logging.ClientID(clientID))
		return nil, ErrInvalidGrant("invalid refresh token")
	}

	// A client that identifies itself must be the one the token was issued to
	if clientID != "" && record.ClientID != clientID {
		g.logger.Warn("Refresh token presented by wrong client", logging.ClientID(clientID))
		return nil, ErrInvalidGrant("invalid refresh token")
	}

	access, _, issueErr := g.tokens.Issue(clientID, record.Credential, record.Scope, false)
	if issueErr != nil {
		g.logger.Error("Failed to issue access token", logging.Err(issueErr))
		return nil, ErrServerError("failed to issue token")
	}

	resp := &TokenResponse{
		AccessToken: access.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(g.tokens.AccessTTL().Seconds()),
		Scope:       record.Scope,
	}

	// Default policy is non-rotating: the presented refresh token stays
	// valid until its own expiry and the response carries no new one.
	// With rotation enabled the old token is invalidated and replaced.
	if g.RotateRefreshTokens {
		rotated, rotateErr := g.tokens.IssueRefresh(record.ClientID, record.Credential, record.Scope)
		if rotateErr != nil {
			g.logger.Warn("Failed to rotate refresh token, keeping old one", logging.Err(rotateErr))
		} else {
			g.tokens.DeleteRefresh(grant.Token)
			resp.RefreshToken = rotated.Token
		}
	}

	g.logger.Info("Issued access token via refresh grant",
		logging.ClientID(clientID),
		logging.Grant(GrantTypeRefreshToken),
	)

	return resp, nil
}

func (g *GrantService) issueTokens(clientID string, cred Credential, scope, grantType string) (*TokenResponse, *OAuthError) {
	access, refresh, err := g.tokens.Issue(clientID, cred, scope, true)
	if err != nil {
		g.logger.Error("Failed to issue tokens", logging.Err(err))
		return nil, ErrServerError("failed to issue token")
	}

	g.logger.Info("Issued access token",
		logging.ClientID(clientID),
		logging.Grant(grantType),
		logging.UserHash(cred.Username),
		"scope", scope,
	)

	return &TokenResponse{
		AccessToken:  access.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(g.tokens.AccessTTL().Seconds()),
		RefreshToken: refresh.Token,
		Scope:        scope,
	}, nil
}
