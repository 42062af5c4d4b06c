package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/quollsoft/recordgate/internal/gate/service"
	"github.com/quollsoft/recordgate/pkg/httpx"
	"github.com/quollsoft/recordgate/pkg/oauth"
)

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
<form method="post" action="/login">
  <input type="hidden" name="client_id" value="{{.ClientID}}">
  <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
  <input type="hidden" name="code_challenge" value="{{.CodeChallenge}}">
  <input type="hidden" name="state" value="{{.State}}">
  <input type="hidden" name="scope" value="{{.Scope}}">
  <label>Email <input type="email" name="email" autocomplete="username"></label>
  <label>Password <input type="password" name="password" autocomplete="current-password"></label>
  <button type="submit">Sign in</button>
</form>
</body>
</html>
`))

// HandleLoginPage renders the login prompt. The authorization parameters
// arrive in the query string and ride through the form as hidden fields.
func (h *Handlers) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginPage.Execute(w, map[string]string{
		"ClientID":      q.Get("client_id"),
		"RedirectURI":   q.Get("redirect_uri"),
		"CodeChallenge": q.Get("code_challenge"),
		"State":         q.Get("state"),
		"Scope":         q.Get("scope"),
	})
}

// loginRequest is the JSON variant of the login submission body. The form
// variant uses the same field names.
type loginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	ClientID      string `json:"client_id"`
	State         string `json:"state"`
	CodeChallenge string `json:"code_challenge"`
	RedirectURI   string `json:"redirect_uri"`
	Scope         string `json:"scope"`
}

// HandleLogin is the login submission endpoint. It accepts a form post or a
// JSON body, verifies the credentials, and hands back the code-bearing
// redirect either as a 302 or as a JSON payload, depending on configuration.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var sub service.LoginSubmission

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			oauth.ErrInvalidRequest.WriteError(w)
			return
		}
		sub = service.LoginSubmission{
			Email:         req.Email,
			Password:      req.Password,
			ClientID:      req.ClientID,
			State:         req.State,
			CodeChallenge: req.CodeChallenge,
			RedirectURI:   req.RedirectURI,
			Scope:         req.Scope,
		}
	} else {
		if err := r.ParseForm(); err != nil {
			oauth.ErrInvalidFormBody.WriteError(w)
			return
		}
		sub = service.LoginSubmission{
			Email:         r.PostFormValue("email"),
			Password:      r.PostFormValue("password"),
			ClientID:      r.PostFormValue("client_id"),
			State:         r.PostFormValue("state"),
			CodeChallenge: r.PostFormValue("code_challenge"),
			RedirectURI:   r.PostFormValue("redirect_uri"),
			Scope:         r.PostFormValue("scope"),
		}
	}

	if sub.Email == "" || sub.Password == "" || sub.ClientID == "" {
		oauth.ErrInvalidRequest.WriteError(w)
		return
	}

	redirectURL, err := h.Authorize.CompleteLogin(r.Context(), sub)
	if err != nil {
		if h.LoginResponse == LoginResponseRedirect {
			if target, ok := h.loginErrorRedirect(r.Context(), sub, err); ok {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
		}
		writeServiceError(w, r, err)
		return
	}

	if h.LoginResponse == LoginResponseRedirect {
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, oauth.LoginResponse{RedirectURL: redirectURL})
}

// loginErrorRedirect maps a failed login onto an error redirect, carrying
// error and state back to the client per RFC 6749 §4.1.2.1. The redirect URI
// is only trusted once it matches the client's registration; anything else
// gets no redirect at all.
func (h *Handlers) loginErrorRedirect(ctx context.Context, sub service.LoginSubmission, err error) (string, bool) {
	client, cerr := h.Clients.Get(ctx, sub.ClientID)
	if cerr != nil || !client.AllowsRedirectURI(sub.RedirectURI) {
		return "", false
	}

	code := oauth.ErrorCodeServerError
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		code = oauth.ErrorCodeAccessDenied
	case errors.Is(err, service.ErrInvalidRequest):
		code = oauth.ErrorCodeInvalidRequest
	case errors.Is(err, service.ErrInvalidScope):
		code = oauth.ErrorCodeInvalidScope
	}

	return service.ErrorRedirect(sub.RedirectURI, code, "", sub.State)
}
