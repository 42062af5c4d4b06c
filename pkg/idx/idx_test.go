package idx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/quollsoft/recordgate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewProducesValidULIDs(t *testing.T) {
	id := idx.New()
	require.Len(t, id.String(), 26)

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := idx.Parse("not-a-ulid")
	require.ErrorIs(t, err, idx.ErrInvalid)
}

func TestNewAtIsSortable(t *testing.T) {
	early := idx.NewAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	late := idx.NewAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Less(t, early.String(), late.String())
}

func TestConcurrentGenerationIsUnique(t *testing.T) {
	const n = 200
	var (
		mu  sync.Mutex
		ids = make(map[idx.ID]struct{}, n)
		wg  sync.WaitGroup
	)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := idx.New()
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, ids, n)
}
