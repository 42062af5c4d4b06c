package http

import (
	"net/http"

	"github.com/quollsoft/recordgate/internal/gate/service"
)

// HandleAuthorize is the authorization endpoint. It validates the request
// and bounces the user agent to the login prompt with every parameter
// carried through opaquely; credentials are never collected here.
func (h *Handlers) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.AuthorizationRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	loginURL, err := h.Authorize.BeginAuthorization(r.Context(), req)
	if err != nil {
		// The redirect URI is not yet trusted on this path, so errors
		// answer directly rather than redirecting.
		writeServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, loginURL, http.StatusFound)
}
