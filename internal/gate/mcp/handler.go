package mcp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/quollsoft/recordgate/internal/gate/store"
	"github.com/quollsoft/recordgate/pkg/httpx"
	"github.com/quollsoft/recordgate/pkg/slogx"

	"github.com/google/uuid"
)

// SessionIDHeader carries the session id on every request after the
// initialize handshake.
const SessionIDHeader = "Mcp-Session-Id"

// sessionIDQueryParam is the fallback for transports that cannot set
// headers on an event-stream connection.
const sessionIDQueryParam = "session_id"

// Handler is the protocol session endpoint. It multiplexes every client
// over one URL: POST carries JSON-RPC messages, GET attaches an event
// stream, DELETE terminates the session. Authentication happens upstream;
// by the time a request lands here an identity is already on the context.
type Handler struct {
	Sessions *SessionRegistry
	Records  store.Records

	ServerName    string
	ServerVersion string
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleStream(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// sessionID extracts the session identifier, header first.
func sessionID(r *http.Request) string {
	if id := r.Header.Get(SessionIDHeader); id != "" {
		return id
	}
	return r.URL.Query().Get(sessionIDQueryParam)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	identity, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		// The authn middleware should have rejected this already.
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, http.StatusBadRequest, errorResponse(nil, codeParseError, "malformed JSON-RPC message"))
		return
	}
	if req.JSONRPC != jsonrpcVersion {
		writeRPC(w, http.StatusBadRequest, errorResponse(req.ID, codeInvalidRequest, "jsonrpc must be \"2.0\""))
		return
	}

	id := sessionID(r)
	if id == "" {
		if req.Method != "initialize" {
			writeRPC(w, http.StatusBadRequest, errorResponse(req.ID, codeInvalidRequest, "initialize is required before other methods"))
			return
		}
		h.initializeSession(w, r, req, identity)
		return
	}

	sess, found := h.Sessions.Get(id)
	if !found || sess.UserID != identity.UserID {
		// A foreign user's session id is indistinguishable from an
		// unknown one.
		writeRPC(w, http.StatusNotFound, errorResponse(req.ID, codeSessionUnknown, "unknown session"))
		return
	}

	resp, hasResp := sess.Handle(r.Context(), req)
	if !hasResp {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set(SessionIDHeader, sess.ID)
	writeRPC(w, http.StatusOK, resp)
}

func (h *Handler) initializeSession(w http.ResponseWriter, r *http.Request, req Request, identity httpx.Identity) {
	sess := NewSession(uuid.NewString(), identity.UserID, identity.ClientID, RecordTools(h.Records, identity.UserID))
	h.Sessions.Add(sess)

	slogx.FromContext(r.Context()).Info("session opened",
		slog.String("session_id", sess.ID),
		slog.String("user_id", identity.UserID))

	result := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    h.ServerName,
			"version": h.ServerVersion,
		},
	}

	w.Header().Set(SessionIDHeader, sess.ID)
	writeRPC(w, http.StatusOK, resultResponse(req.ID, result))
}

// handleStream attaches a server-sent-events stream to an existing session
// and holds the connection until the session closes or the client leaves.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	identity, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := sessionID(r)
	sess, found := h.Sessions.Get(id)
	if id == "" || !found || sess.UserID != identity.UserID {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The stream is the session's long-lived connection; when it ends, the
	// session ends with it.
	defer h.Sessions.Remove(sess.ID)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sess.Events():
			if !open {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := sessionID(r)
	sess, found := h.Sessions.Get(id)
	if id == "" || !found || sess.UserID != identity.UserID {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	h.Sessions.Remove(id)
	slogx.FromContext(r.Context()).Info("session closed",
		slog.String("session_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func writeRPC(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
