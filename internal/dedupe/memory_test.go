package dedupe

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"dexindexer/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== MemoryDedupe Tests ==========

func TestMemoryDedupe_FirstSeenThenDuplicate(t *testing.T) {
	m := NewInMemoryDedupe(testutil.Logger(), 16)
	ctx := context.Background()
	const id = "0000000100-abcde-000001"

	seen, err := m.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = m.Seen(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryDedupe_EvictsOldest(t *testing.T) {
	m := NewInMemoryDedupe(testutil.Logger(), 2)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		seen, err := m.Seen(ctx, id)
		require.NoError(t, err)
		assert.False(t, seen)
	}
	assert.Equal(t, 2, m.Len())

	// "a" fell out of the window
	seen, _ := m.Seen(ctx, "a")
	assert.False(t, seen)
	seen, _ = m.Seen(ctx, "c")
	assert.True(t, seen)
}

func TestMemoryDedupe_Concurrent(t *testing.T) {
	m := NewInMemoryDedupe(testutil.Logger(), 1024)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				seen, err := m.Seen(ctx, fmt.Sprintf("id-%d", i))
				if err == nil && !seen {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, fresh)
}

func TestNop(t *testing.T) {
	var d Deduper = Nop{}
	seen, err := d.Seen(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, seen)
}
