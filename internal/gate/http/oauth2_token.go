package http

import (
	"net/http"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/internal/gate/service"
	"github.com/quollsoft/recordgate/pkg/httpx"
	"github.com/quollsoft/recordgate/pkg/oauth"
)

// HandleToken is the token endpoint. Both grant types answer with the same
// response shape; issuance is all-or-nothing, no partial pairs.
func (h *Handlers) HandleToken(w http.ResponseWriter, r *http.Request) {
	if oerr := parseForm(r); oerr != nil {
		oerr.WriteError(w)
		return
	}

	var (
		pair = service.ExchangeParams{
			ClientID:     r.PostFormValue("client_id"),
			ClientSecret: r.PostFormValue("client_secret"),
			Code:         r.PostFormValue("code"),
			CodeVerifier: r.PostFormValue("code_verifier"),
			RedirectURI:  r.PostFormValue("redirect_uri"),
		}
		refresh = service.RefreshParams{
			ClientID:     r.PostFormValue("client_id"),
			ClientSecret: r.PostFormValue("client_secret"),
			RefreshToken: r.PostFormValue("refresh_token"),
			Scope:        r.PostFormValue("scope"),
		}
	)

	switch r.PostFormValue("grant_type") {
	case "authorization_code":
		tokens, err := h.Authorize.Exchange(r.Context(), pair)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeTokenResponse(w, tokens)

	case "refresh_token":
		tokens, err := h.Authorize.ExchangeRefresh(r.Context(), refresh)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeTokenResponse(w, tokens)

	default:
		oauth.ErrUnsupportedGrantType.WriteError(w)
	}
}

func writeTokenResponse(w http.ResponseWriter, pair domain.TokenPair) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, oauth.TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		RefreshToken: pair.RefreshToken,
		Scope:        pair.Scope,
	})
}
