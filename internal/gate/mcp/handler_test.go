package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/internal/gate/store/drivers/memory"
	"github.com/quollsoft/recordgate/pkg/httpx"

	"github.com/stretchr/testify/require"
)

// asUser wires a fixed identity into the request context, standing in for
// the bearer middleware.
func asUser(h http.Handler, userID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := httpx.ContextWithIdentity(r.Context(), httpx.Identity{
			UserID:   userID,
			ClientID: "client-1",
			Scopes:   []string{"records:read"},
		})
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestHandler(t *testing.T) (*Handler, *memory.Store) {
	t.Helper()
	st := memory.NewStore()
	return &Handler{
		Sessions:      NewSessionRegistry(),
		Records:       st.Records(),
		ServerName:    "recordgate",
		ServerVersion: "test",
	}, st
}

func postRPC(t *testing.T, h http.Handler, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionIDHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionLifecycle(t *testing.T) {
	handler, _ := newTestHandler(t)
	h := asUser(handler, "user-1")

	// Initialize with no session id creates one.
	rec := postRPC(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID := rec.Header().Get(SessionIDHeader)
	require.NotEmpty(t, sessionID)
	require.Equal(t, 1, handler.Sessions.Count())

	var initResp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &initResp))
	require.Nil(t, initResp.Error)

	// A continuation message routes to the same session.
	rec = postRPC(t, h, sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, sessionID, rec.Header().Get(SessionIDHeader))

	var listResp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Nil(t, listResp.Error)

	// Close the session; the id must stop resolving.
	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(SessionIDHeader, sessionID)
	del := httptest.NewRecorder()
	h.ServeHTTP(del, req)
	require.Equal(t, http.StatusNoContent, del.Code)
	require.Equal(t, 0, handler.Sessions.Count())

	rec = postRPC(t, h, sessionID, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownSessionRejected(t *testing.T) {
	handler, _ := newTestHandler(t)
	h := asUser(handler, "user-1")

	rec := postRPC(t, h, "nonexistent", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeSessionUnknown, resp.Error.Code)
}

func TestContinuationWithoutInitializeRejected(t *testing.T) {
	handler, _ := newTestHandler(t)
	h := asUser(handler, "user-1")

	rec := postRPC(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForeignUserCannotUseSession(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := postRPC(t, asUser(handler, "user-1"), "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	sessionID := rec.Header().Get(SessionIDHeader)
	require.NotEmpty(t, sessionID)

	rec = postRPC(t, asUser(handler, "user-2"), sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToolCallScopedToUser(t *testing.T) {
	handler, st := newTestHandler(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.Records().CreateRecord(ctx, domain.Record{
		ID: "r1", UserID: "user-1", Kind: "note", Title: "Espresso", Body: "18g in, 36g out", CreatedAt: now,
	}))
	require.NoError(t, st.Records().CreateRecord(ctx, domain.Record{
		ID: "r2", UserID: "user-2", Kind: "note", Title: "Secret", Body: "not yours", CreatedAt: now,
	}))

	h := asUser(handler, "user-1")
	rec := postRPC(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	sessionID := rec.Header().Get(SessionIDHeader)

	rec = postRPC(t, h, sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"records_list"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Espresso")
	require.NotContains(t, body, "Secret")

	// Fetching the other user's record by id fails.
	rec = postRPC(t, h, sessionID, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"records_get","arguments":{"id":"r2"}}}`)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)

	rec = postRPC(t, h, sessionID, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"records_search","arguments":{"query":"36g"}}}`)
	require.Contains(t, rec.Body.String(), "Espresso")
}

func TestNotificationAccepted(t *testing.T) {
	handler, _ := newTestHandler(t)
	h := asUser(handler, "user-1")

	rec := postRPC(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	sessionID := rec.Header().Get(SessionIDHeader)

	rec = postRPC(t, h, sessionID, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestUnknownMethod(t *testing.T) {
	handler, _ := newTestHandler(t)
	h := asUser(handler, "user-1")

	rec := postRPC(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	sessionID := rec.Header().Get(SessionIDHeader)

	rec = postRPC(t, h, sessionID, `{"jsonrpc":"2.0","id":2,"method":"bogus/method"}`)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestSessionIDQueryFallback(t *testing.T) {
	handler, _ := newTestHandler(t)
	h := asUser(handler, "user-1")

	rec := postRPC(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	sessionID := rec.Header().Get(SessionIDHeader)

	req := httptest.NewRequest(http.MethodDelete, "/mcp?session_id="+sessionID, nil)
	del := httptest.NewRecorder()
	h.ServeHTTP(del, req)
	require.Equal(t, http.StatusNoContent, del.Code)
}

func TestStreamCloseDeregistersSession(t *testing.T) {
	handler, _ := newTestHandler(t)
	h := asUser(handler, "user-1")

	rec := postRPC(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	sessionID := rec.Header().Get(SessionIDHeader)
	require.Equal(t, 1, handler.Sessions.Count())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil).WithContext(ctx)
	req.Header.Set(SessionIDHeader, sessionID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate after context cancellation")
	}

	_, found := handler.Sessions.Get(sessionID)
	require.False(t, found, "session must be deregistered when its stream closes")
}

func TestCloseAllNotifiesAttachedStreams(t *testing.T) {
	reg := NewSessionRegistry()
	sess := NewSession("s1", "user-1", "client-1", nil)
	reg.Add(sess)

	require.NoError(t, reg.CloseAll(context.Background()))

	// The drain queues a cancellation frame before closing the channel.
	evt, open := <-sess.Events()
	require.True(t, open)
	require.Equal(t, "notifications/cancelled", evt.Method)
	require.True(t, evt.Notification())

	_, open = <-sess.Events()
	require.False(t, open)
}

func TestCloseAllDrainsSessions(t *testing.T) {
	handler, _ := newTestHandler(t)
	h := asUser(handler, "user-1")

	for i := 0; i < 3; i++ {
		rec := postRPC(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, 3, handler.Sessions.Count())

	require.NoError(t, handler.Sessions.CloseAll(context.Background()))
	require.Equal(t, 0, handler.Sessions.Count())
}
