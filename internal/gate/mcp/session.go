package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const protocolVersion = "2024-11-05"

// Session is one live protocol connection bound to an authenticated user.
// Message handling is strictly ordered per session; the handle mutex makes
// interleaved posts to the same session id sequential.
type Session struct {
	ID       string
	UserID   string
	ClientID string
	Tools    *ToolRegistry

	CreatedAt time.Time

	handleMu sync.Mutex

	mu     sync.Mutex
	events chan Request
	closed bool
}

func NewSession(id, userID, clientID string, tools *ToolRegistry) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		ClientID:  clientID,
		Tools:     tools,
		CreatedAt: time.Now().UTC(),
		events:    make(chan Request, 16),
	}
}

// Handle processes one inbound request and returns the response, or false
// for notifications which produce none.
func (s *Session) Handle(ctx context.Context, req Request) (Response, bool) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	if req.Notification() {
		// notifications/initialized and friends need no reply.
		return Response{}, false
	}

	switch req.Method {
	case "ping":
		return resultResponse(req.ID, struct{}{}), true

	case "tools/list":
		return resultResponse(req.ID, map[string]any{
			"tools": s.Tools.Descriptors(),
		}), true

	case "tools/call":
		return s.handleToolCall(ctx, req), true

	case "initialize":
		// Re-initializing an established session is a protocol error.
		return errorResponse(req.ID, codeInvalidRequest, "session already initialized"), true

	default:
		return errorResponse(req.ID, codeMethodNotFound, "unknown method: "+req.Method), true
	}
}

func (s *Session) handleToolCall(ctx context.Context, req Request) Response {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "tools/call requires a tool name")
	}

	tool, ok := s.Tools.Lookup(params.Name)
	if !ok {
		return errorResponse(req.ID, codeMethodNotFound, "unknown tool: "+params.Name)
	}

	result, err := tool.Call(ctx, params.Arguments)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: rpcErr}
		}
		return errorResponse(req.ID, codeInternalError, "tool execution failed")
	}

	return resultResponse(req.ID, result)
}

// Notify queues a server-initiated notification for delivery on the
// session's event stream. Frames are dropped once the session is closed or
// the buffer is full; the stream is best-effort.
func (s *Session) Notify(n Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- n:
	default:
	}
}

// Events is the channel the SSE attachment drains. It is closed when the
// session closes.
func (s *Session) Events() <-chan Request {
	return s.events
}

// shutdownNotice is the frame pushed to each live stream during a drain, so
// attached clients learn the session is ending before the stream closes.
func shutdownNotice() Request {
	return Request{
		JSONRPC: jsonrpcVersion,
		Method:  "notifications/cancelled",
		Params:  json.RawMessage(`{"reason":"server shutting down"}`),
	}
}

// Close transitions the session to its terminal state. Safe to call more
// than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
