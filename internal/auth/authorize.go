package auth

import (
	"net/http"
	"net/url"
)

// authorizeParams are the validated query parameters of an authorization
// request, threaded through the credential form as hidden fields
type authorizeParams struct {
	ClientID            string
	RedirectURI         string
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ServeAuthorize handles the OAuth authorization endpoint.
//
// GET renders a credential form where the operator enters the back-end
// username and password to bind to the session. POST binds the submitted
// pair, issues an authorization code and redirects back to the client.
// The pair is not verified against the back-end here; a wrong pair
// surfaces later as Unauthorized on the first proxied call.
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.serveAuthorizeForm(w, r)
	case http.MethodPost:
		h.serveAuthorizeSubmit(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// parseAuthorizeParams validates the authorization request parameters
// common to the GET and POST halves of the flow
func (h *Handler) parseAuthorizeParams(get func(string) string) (*authorizeParams, *OAuthError) {
	params := &authorizeParams{
		ClientID:            get("client_id"),
		RedirectURI:         get("redirect_uri"),
		State:               get("state"),
		Scope:               get("scope"),
		CodeChallenge:       get("code_challenge"),
		CodeChallengeMethod: get("code_challenge_method"),
	}

	if get("response_type") != "code" {
		return nil, ErrInvalidRequest("response_type must be code")
	}

	if params.ClientID == "" {
		return nil, ErrInvalidRequest("client_id is required")
	}
	if params.RedirectURI == "" {
		return nil, ErrInvalidRequest("redirect_uri is required")
	}

	client, err := h.clients.GetClient(params.ClientID)
	if err != nil {
		h.logger.Warn("Invalid client_id", "client_id", params.ClientID)
		return nil, ErrInvalidClient("invalid client_id")
	}

	if err := h.clients.ValidateRedirectURI(params.ClientID, params.RedirectURI); err != nil {
		h.logger.Warn("Invalid redirect_uri",
			"client_id", params.ClientID,
			"redirect_uri", params.RedirectURI,
		)
		return nil, ErrInvalidRequest("redirect_uri not registered for this client")
	}

	// OAuth 2.1 requires PKCE for public clients
	if params.CodeChallenge == "" && client.Public() {
		return nil, ErrInvalidRequest("PKCE is required for public clients")
	}

	if params.CodeChallenge != "" {
		if params.CodeChallengeMethod == "" {
			params.CodeChallengeMethod = ChallengeMethodPlain
		}
		if params.CodeChallengeMethod != ChallengeMethodS256 && params.CodeChallengeMethod != ChallengeMethodPlain {
			return nil, ErrInvalidRequest("invalid code_challenge_method")
		}
	}

	return params, nil
}

// serveAuthorizeForm renders the back-end credential form
func (h *Handler) serveAuthorizeForm(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params, oauthErr := h.parseAuthorizeParams(query.Get)
	if oauthErr != nil {
		h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
		return
	}

	h.renderLoginPage(w, params, "")
}

// serveAuthorizeSubmit binds the submitted credential and issues a code
func (h *Handler) serveAuthorizeSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, "invalid_request", "Failed to parse request", http.StatusBadRequest)
		return
	}

	params, oauthErr := h.parseAuthorizeParams(r.FormValue)
	if oauthErr != nil {
		h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		h.renderLoginPage(w, params, "Username and password are required")
		return
	}

	cred := Credential{Username: username, Password: password}

	code, err := h.codes.Issue(params.ClientID, params.RedirectURI, params.Scope,
		params.CodeChallenge, params.CodeChallengeMethod, cred)
	if err != nil {
		h.logger.Error("Failed to issue authorization code", "error", err)
		h.writeError(w, "server_error", "Failed to issue authorization code", http.StatusInternalServerError)
		return
	}

	redirectURL, err := url.Parse(params.RedirectURI)
	if err != nil {
		h.writeError(w, "invalid_request", "Invalid redirect URI", http.StatusBadRequest)
		return
	}

	redirectQuery := redirectURL.Query()
	redirectQuery.Set("code", code)
	if params.State != "" {
		redirectQuery.Set("state", params.State)
	}
	redirectURL.RawQuery = redirectQuery.Encode()

	h.logger.Info("Redirecting back to client with authorization code",
		"client_id", params.ClientID,
		"redirect_uri", params.RedirectURI,
	)

	h.setSecurityHeaders(w)
	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}
