package http

import (
	"net/http"

	"github.com/quollsoft/recordgate/internal/gate/mcp"
	"github.com/quollsoft/recordgate/pkg/httpx"
)

// NewRouter assembles the full route table. Credential-bearing endpoints sit
// behind strict per-key rate limits; the session endpoint sits behind the
// bearer gate.
func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /oauth2/authorize", httpx.Chain(
		http.HandlerFunc(h.HandleAuthorize),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))

	mux.Handle("GET /login", httpx.Chain(
		http.HandlerFunc(h.HandleLoginPage),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))

	mux.Handle("POST /login", httpx.Chain(
		http.HandlerFunc(h.HandleLogin),
		httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "email"),
	))

	mux.Handle("POST /oauth2/token", httpx.Chain(
		http.HandlerFunc(h.HandleToken),
		httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "client_id"),
	))

	mux.Handle("POST /oauth2/revoke", httpx.Chain(
		http.HandlerFunc(h.HandleRevoke),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))

	mux.Handle("POST /oauth2/register", httpx.Chain(
		http.HandlerFunc(h.HandleRegister),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))

	mux.Handle("GET /.well-known/oauth-authorization-server", httpx.Chain(
		http.HandlerFunc(h.HandleAuthServerMetadata),
		httpx.RateLimitByIP(httpx.PublicLimit),
	))
	mux.Handle("GET /.well-known/oauth-protected-resource", httpx.Chain(
		http.HandlerFunc(h.HandleProtectedResourceMetadata),
		httpx.RateLimitByIP(httpx.PublicLimit),
	))

	sessionHandler := &mcp.Handler{
		Sessions:      h.Sessions,
		Records:       h.Store.Records(),
		ServerName:    h.ServerName,
		ServerVersion: h.ServerVersion,
	}
	mux.Handle("/mcp", httpx.Chain(
		sessionHandler,
		httpx.RateLimitByIP(httpx.LenientLimit),
		httpx.AuthnMiddleware(h.Ledger, h.ProtectedResourceMetadataURL()),
	))

	mux.Handle("GET /livez", httpx.Chain(
		http.HandlerFunc(h.HandleLivez),
		httpx.RateLimitByIP(httpx.LenientLimit),
	))
	mux.Handle("GET /readyz", httpx.Chain(
		http.HandlerFunc(h.HandleReadyz),
		httpx.RateLimitByIP(httpx.LenientLimit),
	))

	return mux
}
