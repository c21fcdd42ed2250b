package auth

import (
	"html/template"
	"net/http"
)

// loginPageTemplate is the credential form rendered by the authorization
// endpoint. The operator enters the 1C back-end username and password that
// the issued tokens will be bound to.
var loginPageTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Sign in</title>
  <style>
    body { font-family: system-ui, sans-serif; background: #f4f4f5; display: flex; justify-content: center; padding-top: 10vh; }
    form { background: #fff; border: 1px solid #e4e4e7; border-radius: 8px; padding: 2rem; width: 20rem; }
    h1 { font-size: 1.1rem; margin: 0 0 0.5rem; }
    p { color: #52525b; font-size: 0.85rem; margin: 0 0 1.25rem; }
    label { display: block; font-size: 0.85rem; margin-bottom: 0.25rem; }
    input[type=text], input[type=password] { width: 100%; box-sizing: border-box; padding: 0.5rem; margin-bottom: 1rem; border: 1px solid #d4d4d8; border-radius: 4px; }
    button { width: 100%; padding: 0.6rem; background: #18181b; color: #fff; border: none; border-radius: 4px; cursor: pointer; }
    .error { color: #b91c1c; font-size: 0.85rem; margin-bottom: 1rem; }
  </style>
</head>
<body>
  <form method="post">
    <h1>1C back-end sign in</h1>
    <p>{{if .ClientName}}{{.ClientName}}{{else}}An application{{end}} requests access on your behalf. Enter your 1C credentials to continue.</p>
    {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
    <label for="username">Username</label>
    <input type="text" id="username" name="username" autocomplete="username" autofocus>
    <label for="password">Password</label>
    <input type="password" id="password" name="password" autocomplete="current-password">
    <input type="hidden" name="response_type" value="code">
    <input type="hidden" name="client_id" value="{{.Params.ClientID}}">
    <input type="hidden" name="redirect_uri" value="{{.Params.RedirectURI}}">
    <input type="hidden" name="state" value="{{.Params.State}}">
    <input type="hidden" name="scope" value="{{.Params.Scope}}">
    <input type="hidden" name="code_challenge" value="{{.Params.CodeChallenge}}">
    <input type="hidden" name="code_challenge_method" value="{{.Params.CodeChallengeMethod}}">
    <button type="submit">Sign in</button>
  </form>
</body>
</html>
`))

// loginPageData is the template context for the credential form
type loginPageData struct {
	Params     *authorizeParams
	ClientName string
	Error      string
}

// renderLoginPage renders the credential form with the request parameters
// carried as hidden fields
func (h *Handler) renderLoginPage(w http.ResponseWriter, params *authorizeParams, errMsg string) {
	data := loginPageData{
		Params: params,
		Error:  errMsg,
	}
	if client, err := h.clients.GetClient(params.ClientID); err == nil {
		data.ClientName = client.ClientName
	}

	// The form needs its own CSP: inline styles are used, everything else
	// stays blocked
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; form-action 'self'; frame-ancestors 'none'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := loginPageTemplate.Execute(w, data); err != nil {
		h.logger.Error("Failed to render login page", "error", err)
	}
}
