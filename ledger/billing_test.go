package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// FIXTURES
// =============================================================================

func cardAccount(closingDay, dueDay int) ledger.Account {
	return ledger.Account{
		ID:         "acc-card",
		Name:       "Company Card",
		Kind:       ledger.AccountCard,
		ClosingDay: closingDay,
		DueDay:     dueDay,
		Limit:      dec(5000),
	}
}

func cardPurchase(id string, txn ledger.Date, gross float64, settled bool) ledger.LedgerEntry {
	e := ledger.LedgerEntry{
		ID:              id,
		Kind:            ledger.EntryExpense,
		Status:          ledger.StatusOpen,
		AccountID:       "acc-card",
		TransactionDate: &txn,
		DueDate:         txn.AddMonths(1),
		AmountGross:     dec(gross),
	}
	if settled {
		e.Status = ledger.StatusSettled
		paid := txn
		e.PaidDate = &paid
	}
	return e
}

// =============================================================================
// WINDOW RESOLUTION
// =============================================================================

func TestInvoice_March_ClosingDay10_DueDay5(t *testing.T) {
	// GIVEN: closingDay=10, dueDay=5, reference month March
	// THEN: window = [Feb 11, Mar 10], due = Apr 5 (5 < 10 rolls forward)

	r := testReducer(day(2025, time.March, 1))
	s := ledger.Store{}
	card := cardAccount(10, 5)
	s = mustApply(t, r, s, ledger.Add(ledger.ColAccounts, card))
	s = mustApply(t, r, s, ledger.AddMany(ledger.ColMovements, []ledger.Record{
		cardPurchase("mov-in-1", day(2025, time.February, 11), 120, false), // first day of window
		cardPurchase("mov-in-2", day(2025, time.March, 10), 80, true),      // last day of window
		cardPurchase("mov-before", day(2025, time.February, 10), 55, false),
		cardPurchase("mov-after", day(2025, time.March, 11), 70, false),
	}))

	inv, ok := ledger.ResolveInvoice(&s, card, 2025, time.March)
	require.True(t, ok)

	assert.True(t, inv.WindowStart.Equal(day(2025, time.February, 11)))
	assert.True(t, inv.ClosingDate.Equal(day(2025, time.March, 10)))
	assert.True(t, inv.DueDate.Equal(day(2025, time.April, 5)))
	require.Len(t, inv.Entries, 2)
	assert.True(t, inv.Total.Equal(dec(200)))
	assert.True(t, inv.OpenTotal.Equal(dec(120)), "only the unsettled purchase stays open")
}

func TestInvoice_DueDayAfterClosingDay_StaysInReferenceMonth(t *testing.T) {
	s := ledger.Store{}
	card := cardAccount(5, 15)

	inv, ok := ledger.ResolveInvoice(&s, card, 2025, time.March)
	require.True(t, ok)
	assert.True(t, inv.DueDate.Equal(day(2025, time.March, 15)))
}

func TestInvoice_DecemberDueDate_RollsIntoNextYear(t *testing.T) {
	s := ledger.Store{}
	card := cardAccount(20, 5)

	inv, ok := ledger.ResolveInvoice(&s, card, 2025, time.December)
	require.True(t, ok)
	assert.True(t, inv.DueDate.Equal(day(2026, time.January, 5)))
}

func TestInvoice_ClosingDay31_February_RollsOver(t *testing.T) {
	// closingDay=31 in February normalizes through native date arithmetic:
	// Feb 31, 2025 is March 3. The window follows from that rolled date.
	// Explicitly pinned rather than clamped - see DESIGN.md.

	s := ledger.Store{}
	card := cardAccount(31, 10)

	inv, ok := ledger.ResolveInvoice(&s, card, 2025, time.February)
	require.True(t, ok)
	assert.True(t, inv.ClosingDate.Equal(day(2025, time.March, 3)))
	assert.True(t, inv.WindowStart.Equal(day(2025, time.February, 4)))
}

func TestInvoice_NoClosingDay_NoInvoice(t *testing.T) {
	// A card without a configured closing day yields "no invoice", never an
	// error.

	s := ledger.Store{}
	card := cardAccount(0, 5)

	_, ok := ledger.ResolveInvoice(&s, card, 2025, time.March)
	assert.False(t, ok)
}

func TestInvoice_FallsBackToDueDate_WhenNoTransactionDate(t *testing.T) {
	r := testReducer(day(2025, time.March, 1))
	s := ledger.Store{}
	card := cardAccount(10, 15)

	e := ledger.LedgerEntry{
		ID:          "mov-nodate",
		Kind:        ledger.EntryExpense,
		Status:      ledger.StatusOpen,
		AccountID:   "acc-card",
		DueDate:     day(2025, time.March, 5), // inside the window
		AmountGross: dec(42),
	}
	s = mustApply(t, r, s, ledger.Add(ledger.ColMovements, e))

	inv, ok := ledger.ResolveInvoice(&s, card, 2025, time.March)
	require.True(t, ok)
	require.Len(t, inv.Entries, 1)
	assert.True(t, inv.Total.Equal(dec(42)))
}

// =============================================================================
// CARD SUMMARY
// =============================================================================

func TestCardSummary_AvailableIsLimitMinusOpenExposure(t *testing.T) {
	// GIVEN: limit 5000, open purchases of 900 + 300 (one outside the
	//        window), one settled purchase of 100
	// THEN: open exposure 1200, available 3800; usedInPeriod counts only
	//       the window

	r := testReducer(day(2025, time.March, 1))
	s := ledger.Store{}
	card := cardAccount(10, 15)
	s = mustApply(t, r, s, ledger.Add(ledger.ColAccounts, card))
	s = mustApply(t, r, s, ledger.AddMany(ledger.ColMovements, []ledger.Record{
		cardPurchase("mov-open-in", day(2025, time.March, 1), 900, false),
		cardPurchase("mov-open-out", day(2025, time.January, 2), 300, false),
		cardPurchase("mov-settled", day(2025, time.March, 2), 100, true),
	}))

	sum := ledger.ComputeCardSummary(&s, card, 2025, time.March)

	assert.True(t, sum.OpenBalance.Equal(dec(1200)))
	assert.True(t, sum.Available.Equal(dec(3800)))
	assert.True(t, sum.UsedInPeriod.Equal(dec(1000)), "window total = 900 + 100, got %s", sum.UsedInPeriod)
}
