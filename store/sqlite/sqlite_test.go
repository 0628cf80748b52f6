package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/books"
	"github.com/warp/ledger-engine/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN an empty store
	_, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	// WHEN a document is saved twice
	require.NoError(t, store.Save(ctx, []byte(`{"seq":1}`)))
	require.NoError(t, store.Save(ctx, []byte(`{"seq":2}`)))

	// THEN only the latest document is kept
	data, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"seq":2}`, string(data))
}

func TestAuditLogNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"op-1", "op-2", "op-3"} {
		err := store.Append(ctx, books.AuditEntry{
			ID:         id,
			At:         base.Add(time.Duration(i) * time.Second),
			Op:         ledger.OpAdd,
			Collection: ledger.ColMovements,
			TargetIDs:  []string{"mov-000001"},
		})
		require.NoError(t, err)
	}

	entries, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "op-3", entries[0].ID)
	assert.Equal(t, "op-2", entries[1].ID)
	assert.Equal(t, ledger.OpAdd, entries[0].Op)
	assert.Equal(t, ledger.ColMovements, entries[0].Collection)
	assert.Equal(t, []string{"mov-000001"}, entries[0].TargetIDs)
}
