package memory

import (
	"sort"
	"strings"

	"github.com/quollsoft/recordgate/internal/gate/domain"
)

// sortRecords orders newest first, matching the sqlite driver.
func sortRecords(records []domain.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
