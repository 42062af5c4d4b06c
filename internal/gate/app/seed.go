package app

import (
	"context"
	"time"

	"github.com/quollsoft/recordgate/internal/gate/domain"
	"github.com/quollsoft/recordgate/internal/gate/store"
	"github.com/quollsoft/recordgate/pkg/idx"
)

// seedWelcomeRecord gives a fresh bootstrap account one record so the tool
// surface is immediately explorable. Skipped when the user already has any.
func seedWelcomeRecord(ctx context.Context, st store.Store, userID string) error {
	existing, err := st.Records().ListRecords(ctx, userID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now().UTC()
	return st.Records().CreateRecord(ctx, domain.Record{
		ID:        idx.New().String(),
		UserID:    userID,
		Kind:      "note",
		Title:     "Welcome to recordgate",
		Body:      "Connect an MCP client and call records_list to see your records.",
		CreatedAt: now,
		UpdatedAt: now,
	})
}
