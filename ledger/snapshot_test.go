package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/ledger"
)

func TestSnapshot_RoundTrip_IsIdempotent(t *testing.T) {
	// GIVEN: A store populated through the reducer
	// WHEN: It is saved, loaded, and saved again
	// THEN: The two saved documents are identical byte-for-byte semantics

	today := day(2025, time.June, 15)
	s := kpiStore(t, today)
	r := testReducer(today)
	s = mustApply(t, r, s, ledger.Add(ledger.ColSales, ledger.SaleRecord{
		ID: "sale-1", ProductID: "prod-1", CustomerID: "cust-1",
		Quantity: dec(3), UnitPrice: dec(19.9),
	}))

	first, err := ledger.SaveDocument(ledger.SnapshotOf(s))
	require.NoError(t, err)

	doc, err := ledger.LoadDocument(first)
	require.NoError(t, err)

	second, err := ledger.SaveDocument(doc)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))

	reloaded := doc.Store()
	require.Len(t, reloaded.Movements, 2)
	assert.Equal(t, s.Seq, reloaded.Seq)
	orig, _ := s.MovementByID("mov-income")
	got, _ := reloaded.MovementByID("mov-income")
	assert.True(t, orig.AmountNet.Equal(got.AmountNet))
	assert.True(t, orig.DueDate.Equal(got.DueDate))
}

func TestSnapshot_OldDocument_GainsDefaultsOnLoad(t *testing.T) {
	// A document written before sales/investments existed must load with
	// those collections empty instead of crashing.

	old := []byte(`{"accounts":[{"id":"acc-1","name":"Checking","kind":"bank","openingBalance":"1000"}]}`)

	doc, err := ledger.LoadDocument(old)
	require.NoError(t, err)

	s := doc.Store()
	require.Len(t, s.Accounts, 1)
	assert.True(t, s.Accounts[0].OpeningBalance.Equal(dec(1000)))
	assert.Empty(t, s.Movements)
	assert.Empty(t, s.Sales)
	assert.Empty(t, s.Investments)
	assert.Equal(t, int64(0), s.Seq)
}

func TestSnapshot_LegacyValueField_MigratesToAmountGross(t *testing.T) {
	// Older documents carried "value" instead of "amountGross".

	old := []byte(`{"movements":[{
		"id":"mov-legacy","kind":"EXPENSE","status":"OPEN",
		"accountId":"acc-1","dueDate":"2024-03-01","value":"123.45"
	}]}`)

	doc, err := ledger.LoadDocument(old)
	require.NoError(t, err)

	s := doc.Store()
	require.Len(t, s.Movements, 1)
	assert.True(t, s.Movements[0].AmountGross.Equal(dec(123.45)))
}

func TestSnapshot_UnrelatedCollections_SurviveRoundTrip(t *testing.T) {
	// The document is shared with the rest of the application; collections
	// outside this core pass through untouched.

	raw := []byte(`{
		"accounts":[],
		"contacts":[{"id":"ct-1","name":"Alice"}],
		"settings":{"theme":"dark","locale":"pt-BR"}
	}`)

	doc, err := ledger.LoadDocument(raw)
	require.NoError(t, err)
	require.Contains(t, doc.Extra, "contacts")
	require.Contains(t, doc.Extra, "settings")

	out, err := ledger.SaveDocument(doc)
	require.NoError(t, err)

	reloaded, err := ledger.LoadDocument(out)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"ct-1","name":"Alice"}]`, string(reloaded.Extra["contacts"]))
	assert.JSONEq(t, `{"theme":"dark","locale":"pt-BR"}`, string(reloaded.Extra["settings"]))
}
