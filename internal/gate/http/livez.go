package http

import (
	"net/http"

	"github.com/quollsoft/recordgate/pkg/httpx"
)

type healthResponse struct {
	Status       string `json:"status"`
	OpenSessions int    `json:"open_sessions"`
}

// HandleLivez reports process liveness and the current open-session count.
func (h *Handlers) HandleLivez(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		OpenSessions: h.Sessions.Count(),
	})
}
