// Package http contains the HTTP boundary of the authorization server: one
// file per endpoint, with all protocol translation (form parsing, error
// vocabulary, status codes) kept here and out of the services.
package http

import (
	"errors"
	"net/http"

	"github.com/quollsoft/recordgate/internal/gate/mcp"
	"github.com/quollsoft/recordgate/internal/gate/service"
	"github.com/quollsoft/recordgate/internal/gate/store"
	"github.com/quollsoft/recordgate/pkg/oauth"
	"github.com/quollsoft/recordgate/pkg/slogx"
)

// LoginResponseMode selects how a successful login submission answers:
// an HTTP redirect or a JSON payload carrying the redirect URL.
type LoginResponseMode string

const (
	LoginResponseRedirect LoginResponseMode = "redirect"
	LoginResponseJSON     LoginResponseMode = "json"
)

// Handlers bundles the services the endpoints need plus the public-facing
// configuration baked into discovery documents.
type Handlers struct {
	Authorize *service.AuthorizeService
	Clients   *service.ClientService
	Ledger    *service.LedgerService
	Sessions  *mcp.SessionRegistry
	Store     store.Store

	// Issuer is the externally reachable base URL, without trailing slash.
	Issuer string

	LoginResponse LoginResponseMode

	ServerName    string
	ServerVersion string
}

// writeServiceError translates service sentinels into the OAuth wire
// vocabulary. Anything unrecognized is a server_error; the detail stays in
// the logs.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		oauth.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrInvalidClient):
		oauth.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidGrant):
		oauth.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidToken):
		oauth.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		oauth.ErrInvalidScope.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		oauth.ErrInvalidCredentials.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("unexpected handler failure", "err", err)
		oauth.ErrServerError.WriteError(w)
	}
}

// parseForm enforces the form content type the token-family endpoints
// require and parses the body.
func parseForm(r *http.Request) *oauth.Error {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !hasContentType(ct, "application/x-www-form-urlencoded") {
		return oauth.ErrInvalidContentType
	}
	if err := r.ParseForm(); err != nil {
		return oauth.ErrInvalidFormBody
	}
	return nil
}

func hasContentType(header, want string) bool {
	for i := 0; i < len(header); i++ {
		if header[i] == ';' {
			header = header[:i]
			break
		}
	}
	return header == want
}
