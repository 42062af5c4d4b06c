package http

import (
	"net/http"

	"github.com/quollsoft/recordgate/pkg/httpx"
	"github.com/quollsoft/recordgate/pkg/slogx"
)

// HandleRevoke is the revocation endpoint (RFC 7009). Once the client has
// authenticated, the answer is 200 no matter what: whether the token
// existed, was already dead, or belonged to someone else must not be
// observable.
func (h *Handlers) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if oerr := parseForm(r); oerr != nil {
		oerr.WriteError(w)
		return
	}

	clientID := r.PostFormValue("client_id")
	secret := r.PostFormValue("client_secret")
	token := r.PostFormValue("token")

	client, err := h.Clients.VerifySecret(r.Context(), clientID, secret)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.Ledger.Revoke(r.Context(), client.ID, token); err != nil {
		// Storage failure is the one case that still answers 200; the
		// caller can retry and the response stays uninformative.
		slogx.FromContext(r.Context()).Error("revocation failed", "err", err)
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}
