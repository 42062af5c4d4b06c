package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/quollsoft/recordgate/internal/gate/service"
	"github.com/quollsoft/recordgate/pkg/httpx"
	"github.com/quollsoft/recordgate/pkg/oauth"
)

// HandleRegister is the dynamic client registration endpoint (RFC 7591).
// The plaintext secret appears in this response and nowhere else.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req oauth.ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		oauth.ErrInvalidRequest.WriteError(w)
		return
	}

	client, secret, err := h.Clients.Register(r.Context(), service.RegisterClientParams{
		Name:          req.ClientName,
		RedirectURIs:  req.RedirectURIs,
		GrantTypes:    req.GrantTypes,
		ResponseTypes: req.ResponseTypes,
		Scopes:        httpx.ParseSpaceDelimitedFields(req.Scope),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, oauth.ClientRegistrationResponse{
		ClientID:              client.ID,
		ClientSecret:          secret,
		ClientName:            client.Name,
		RedirectURIs:          client.RedirectURIs,
		GrantTypes:            client.GrantTypes,
		ResponseTypes:         client.ResponseTypes,
		Scope:                 strings.Join(client.Scopes, " "),
		ClientIDIssuedAt:      client.CreatedAt.Unix(),
		ClientSecretExpiresAt: client.SecretExpiresAt.Unix(),
	})
}
