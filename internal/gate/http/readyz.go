package http

import (
	"net/http"

	"github.com/quollsoft/recordgate/pkg/httpx"
)

// HandleReadyz reports readiness: liveness plus a round trip to the backing
// store.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:       "unavailable",
			OpenSessions: h.Sessions.Count(),
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		OpenSessions: h.Sessions.Count(),
	})
}
