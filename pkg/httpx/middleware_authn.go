package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/quollsoft/recordgate/pkg/slogx"
)

// TokenVerifier resolves an opaque bearer token to an identity. Implemented
// by the token ledger.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (Identity, error)
}

// BearerToken extracts the bearer value from a request: the Authorization
// header takes precedence, with an access_token query-parameter fallback for
// transports that cannot set headers (e.g. EventSource connections).
func BearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		if strings.HasPrefix(authz, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

// ErrNoToken reports a request that presented no bearer credential at all.
var ErrNoToken = errors.New("httpx: no bearer token presented")

// GateRequest is the bearer gate as a plain function, for callers outside a
// middleware chain. It extracts and verifies the token, returning the
// resolved identity. Side-effect-free on failure; no verifier call happens
// when no token is presented.
func GateRequest(ctx context.Context, v TokenVerifier, r *http.Request) (Identity, error) {
	raw := BearerToken(r)
	if raw == "" {
		return Identity{}, ErrNoToken
	}
	return v.VerifyAccessToken(ctx, raw)
}

// AuthnMiddleware is the bearer verification gate. Requests without a token
// are rejected with 401 before any ledger call; requests with a token are
// resolved through the verifier and, on success, carry the identity in the
// request context. The gate is side-effect-free on failure.
//
// resourceMetadataURL, when non-empty, is advertised in the WWW-Authenticate
// challenge so clients can discover the authorization server (RFC 9728).
func AuthnMiddleware(v TokenVerifier, resourceMetadataURL string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id, err := GateRequest(ctx, v, r)
			if err != nil {
				if errors.Is(err, ErrNoToken) {
					writeBearerError(w, resourceMetadataURL, "", "missing bearer token")
					return
				}
				slogx.FromContext(ctx).Warn("bearer verification failed", "err", err)
				writeBearerError(w, resourceMetadataURL, "invalid_token", "token verification failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(ctx, id)))
		})
	}
}

// writeBearerError emits an RFC 6750 challenge. The error attribute is
// omitted when no credential was presented at all, per §3.1.
func writeBearerError(w http.ResponseWriter, resourceMetadataURL, code, desc string) {
	parts := []string{}
	if resourceMetadataURL != "" {
		parts = append(parts, `resource_metadata="`+resourceMetadataURL+`"`)
	}
	if code != "" {
		parts = append(parts, `error="`+code+`", error_description="`+desc+`"`)
	}
	challenge := "Bearer"
	if len(parts) > 0 {
		challenge += " " + strings.Join(parts, ", ")
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "unauthorized",
		"error_description": desc,
	})
}
