package books_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/books"
	"github.com/warp/ledger-engine/ledger"
)

func newTestService(t *testing.T) (*books.Service, *books.MemorySnapshotStore, *books.MemoryAuditLog) {
	t.Helper()
	snaps := books.NewMemorySnapshotStore()
	audit := books.NewMemoryAuditLog()
	svc, err := books.New(context.Background(), snaps, audit)
	require.NoError(t, err)
	return svc, snaps, audit
}

func testAccount() ledger.Account {
	return ledger.Account{
		ID:             "acc-1",
		Name:           "Checking",
		Kind:           ledger.AccountBank,
		OpeningBalance: decimal.NewFromInt(1000),
	}
}

func TestService_Apply_PersistsSnapshotAfterEachMutation(t *testing.T) {
	svc, snaps, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ledger.Add(ledger.ColAccounts, testAccount()))
	require.NoError(t, err)

	data, found, err := snaps.Load(ctx)
	require.NoError(t, err)
	require.True(t, found, "a snapshot must exist after the first mutation")

	doc, err := ledger.LoadDocument(data)
	require.NoError(t, err)
	require.Len(t, doc.Store().Accounts, 1)
	assert.Equal(t, "acc-1", doc.Store().Accounts[0].ID)
}

func TestService_Apply_SwapsSnapshotCopyOnWrite(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	before := svc.Snapshot()
	_, err := svc.Apply(ctx, ledger.Add(ledger.ColAccounts, testAccount()))
	require.NoError(t, err)

	assert.Empty(t, before.Accounts, "a previously handed-out snapshot never changes")
	assert.Len(t, svc.Snapshot().Accounts, 1)
}

func TestService_FailedOperation_LeavesStateAndSnapshotUntouched(t *testing.T) {
	svc, snaps, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ledger.Add(ledger.ColAccounts, testAccount()))
	require.NoError(t, err)
	persisted, _, _ := snaps.Load(ctx)

	_, err = svc.Apply(ctx, ledger.Delete(ledger.ColMovements, "mov-ghost"))
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))

	assert.Len(t, svc.Snapshot().Accounts, 1)
	after, _, _ := snaps.Load(ctx)
	assert.Equal(t, persisted, after, "failed mutations must not touch the persisted document")
}

func TestService_Apply_RecordsAuditTrail(t *testing.T) {
	svc, _, audit := newTestService(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ledger.Add(ledger.ColAccounts, testAccount()))
	require.NoError(t, err)
	_, err = svc.Apply(ctx, ledger.Delete(ledger.ColAccounts, "acc-1"))
	require.NoError(t, err)

	entries, err := audit.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, ledger.OpDelete, entries[0].Op)
	assert.Equal(t, []string{"acc-1"}, entries[0].TargetIDs)
	assert.Equal(t, ledger.OpAdd, entries[1].Op)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestService_New_ReloadsPersistedDocument(t *testing.T) {
	snaps := books.NewMemorySnapshotStore()
	ctx := context.Background()

	first, err := books.New(ctx, snaps, nil)
	require.NoError(t, err)
	_, err = first.Apply(ctx, ledger.Add(ledger.ColAccounts, testAccount()))
	require.NoError(t, err)

	dueDate := ledger.NewDate(2025, time.July, 1)
	_, err = first.Apply(ctx, ledger.Add(ledger.ColMovements, ledger.LedgerEntry{
		Kind:        ledger.EntryIncome,
		AccountID:   "acc-1",
		DueDate:     dueDate,
		AmountGross: decimal.NewFromInt(250),
	}))
	require.NoError(t, err)

	second, err := books.New(ctx, snaps, nil)
	require.NoError(t, err)

	s := second.Snapshot()
	require.Len(t, s.Accounts, 1)
	require.Len(t, s.Movements, 1)
	assert.True(t, s.Movements[0].AmountNet.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, s.Seq, first.Snapshot().Seq, "id sequence survives restarts")
}

func TestService_New_CorruptDocument_FallsBackToDefaults(t *testing.T) {
	snaps := books.NewMemorySnapshotStore()
	ctx := context.Background()
	require.NoError(t, snaps.Save(ctx, []byte("{not json")))

	svc, err := books.New(ctx, snaps, nil)
	require.NoError(t, err, "corrupt data must not block startup")
	assert.Empty(t, svc.Snapshot().Accounts)
}

// failingSnapshotStore rejects every save.
type failingSnapshotStore struct{}

func (failingSnapshotStore) Save(context.Context, []byte) error { return errors.New("disk full") }
func (failingSnapshotStore) Load(context.Context) ([]byte, bool, error) {
	return nil, false, nil
}

func TestService_Apply_PreservesUnrelatedCollections(t *testing.T) {
	// GIVEN a persisted document carrying a collection this engine
	// does not manage
	ctx := context.Background()
	snaps := books.NewMemorySnapshotStore()
	require.NoError(t, snaps.Save(ctx, []byte(`{
		"accounts": [],
		"contacts": [{"id": "cont-1", "name": "Supplier Ltda"}]
	}`)))

	svc, err := books.New(ctx, snaps, books.NewMemoryAuditLog())
	require.NoError(t, err)

	// WHEN a mutation is applied and persisted
	_, err = svc.Apply(ctx, ledger.Add(ledger.ColAccounts, testAccount()))
	require.NoError(t, err)

	// THEN the foreign collection survives in the saved document
	data, found, err := snaps.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	contacts, ok := raw["contacts"].([]any)
	require.True(t, ok, "contacts must still be present: %s", data)
	require.Len(t, contacts, 1)

	doc, err := ledger.LoadDocument(data)
	require.NoError(t, err)
	require.Len(t, doc.Store().Accounts, 1)
}

func TestService_FailedPersist_FailsTheMutation(t *testing.T) {
	svc, err := books.New(context.Background(), failingSnapshotStore{}, nil)
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), ledger.Add(ledger.ColAccounts, testAccount()))
	require.Error(t, err)
	assert.Empty(t, svc.Snapshot().Accounts, "state must not advance past a failed save")
}
