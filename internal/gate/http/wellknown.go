package http

import (
	"net/http"

	"github.com/quollsoft/recordgate/pkg/httpx"
	"github.com/quollsoft/recordgate/pkg/oauth"
)

// SupportedScopes is what the discovery documents advertise.
var SupportedScopes = []string{"records:read"}

// HandleAuthServerMetadata serves the RFC 8414 discovery document, a static
// derivation of configuration.
func (h *Handlers) HandleAuthServerMetadata(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, oauth.AuthServerMetadata{
		Issuer:                        h.Issuer,
		AuthorizationEndpoint:         h.Issuer + "/oauth2/authorize",
		TokenEndpoint:                 h.Issuer + "/oauth2/token",
		RegistrationEndpoint:          h.Issuer + "/oauth2/register",
		RevocationEndpoint:            h.Issuer + "/oauth2/revoke",
		ScopesSupported:               SupportedScopes,
		ResponseTypesSupported:        []string{"code"},
		GrantTypesSupported:           []string{"authorization_code", "refresh_token"},
		CodeChallengeMethodsSupported: []string{"S256"},
	})
}

// HandleProtectedResourceMetadata serves the RFC 9728 document referenced by
// the session endpoint's WWW-Authenticate challenge.
func (h *Handlers) HandleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, oauth.ProtectedResourceMetadata{
		Resource:               h.Issuer + "/mcp",
		AuthorizationServers:   []string{h.Issuer},
		ScopesSupported:        SupportedScopes,
		BearerMethodsSupported: []string{"header", "query"},
		ResourceName:           h.ServerName,
	})
}

// ProtectedResourceMetadataURL is what the bearer gate advertises on 401s.
func (h *Handlers) ProtectedResourceMetadataURL() string {
	return h.Issuer + "/.well-known/oauth-protected-resource"
}
