package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/internal/gate/store"
)

// Tool is a named operation a session may invoke. InputSchema is the JSON
// Schema advertised to clients; Call receives the raw arguments object.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Call        func(ctx context.Context, args json.RawMessage) (any, error)
}

// ToolRegistry is the per-session catalogue of callable tools. Each session
// gets its own registry bound to the authenticated user, so a tool handler
// can never reach outside that user's data.
type ToolRegistry struct {
	tools []Tool
	index map[string]int
}

func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{index: make(map[string]int, len(tools))}
	for _, t := range tools {
		r.index[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r
}

func (r *ToolRegistry) Lookup(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// toolDescriptor is the wire shape of a tools/list entry.
type toolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func (r *ToolRegistry) Descriptors() []toolDescriptor {
	out := make([]toolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, toolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// RecordTools builds the standard tool set over the given user's records.
func RecordTools(records store.Records, userID string) *ToolRegistry {
	return NewToolRegistry(
		Tool{
			Name:        "records_list",
			Description: "List all of your records, newest first.",
			InputSchema: emptyObjectSchema,
			Call: func(ctx context.Context, _ json.RawMessage) (any, error) {
				recs, err := records.ListRecords(ctx, userID)
				if err != nil {
					return nil, err
				}
				return recordContent(recs), nil
			},
		},
		Tool{
			Name:        "records_get",
			Description: "Fetch a single record by id.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
			Call: func(ctx context.Context, args json.RawMessage) (any, error) {
				var p struct {
					ID string `json:"id"`
				}
				if err := json.Unmarshal(args, &p); err != nil || p.ID == "" {
					return nil, &RPCError{Code: codeInvalidParams, Message: "id is required"}
				}
				rec, err := records.GetRecord(ctx, userID, p.ID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return nil, &RPCError{Code: codeInvalidParams, Message: "no such record"}
					}
					return nil, err
				}
				return recordContent([]domain.Record{rec}), nil
			},
		},
		Tool{
			Name:        "records_search",
			Description: "Search your records by a substring of title or body.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
			Call: func(ctx context.Context, args json.RawMessage) (any, error) {
				var p struct {
					Query string `json:"query"`
				}
				if err := json.Unmarshal(args, &p); err != nil || p.Query == "" {
					return nil, &RPCError{Code: codeInvalidParams, Message: "query is required"}
				}
				recs, err := records.SearchRecords(ctx, userID, p.Query)
				if err != nil {
					return nil, err
				}
				return recordContent(recs), nil
			},
		},
	)
}

// callResult is the wire shape of a tools/call result: a list of text
// content blocks.
type callResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func recordContent(recs []domain.Record) callResult {
	if len(recs) == 0 {
		return callResult{Content: []contentBlock{{Type: "text", Text: "No records found."}}}
	}
	blocks := make([]contentBlock, 0, len(recs))
	for _, r := range recs {
		blocks = append(blocks, contentBlock{
			Type: "text",
			Text: fmt.Sprintf("[%s] %s (%s)\n%s", r.ID, r.Title, r.Kind, r.Body),
		})
	}
	return callResult{Content: blocks}
}
