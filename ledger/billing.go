/*
billing.go - Card billing cycles

PURPOSE:
  Resolves a card account's billing window for a reference month and
  aggregates the matching expenses into an invoice. Pure functions over a
  store snapshot, like statement.go.

WINDOW:
  closingDate = closingDay of the reference month (UTC)
  windowStart = the day after the previous month's closing date
  matching    = EXPENSE entries on the account whose transactionDate
                (dueDate when absent) lies in [windowStart, closingDate]

CALENDAR EDGES:
  Days beyond the month's length roll into the next month via native
  time.Date normalization (Feb 31 -> early March). This is deliberate and
  pinned by tests rather than clamped.

SEE ALSO:
  - statement.go: OpenExposure, used for available credit
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is one card billing cycle: the window, the due date and the
// aggregate of the expenses that fall inside it.
type Invoice struct {
	AccountID   string
	WindowStart Date
	ClosingDate Date
	DueDate     Date
	Entries     []LedgerEntry
	Total       decimal.Decimal // gross over all matches
	OpenTotal   decimal.Decimal // gross over matches still OPEN
}

// ResolveInvoice computes the invoice of a card account for a reference
// month. Returns false when the account has no closing day configured;
// a window with no expenses is a valid empty invoice, not an error.
func ResolveInvoice(s *Store, card Account, year int, month time.Month) (Invoice, bool) {
	if card.ClosingDay == 0 {
		return Invoice{}, false
	}

	closing := NewDate(year, month, card.ClosingDay)
	windowStart := closing.AddMonths(-1).AddDays(1)

	inv := Invoice{
		AccountID:   card.ID,
		WindowStart: windowStart,
		ClosingDate: closing,
		DueDate:     dueDateFor(card, year, month),
	}

	for _, e := range s.Movements {
		if e.AccountID != card.ID || e.Kind != EntryExpense {
			continue
		}
		d := e.DueDate
		if e.TransactionDate != nil {
			d = *e.TransactionDate
		}
		if d.Before(windowStart) || d.After(closing) {
			continue
		}
		inv.Entries = append(inv.Entries, e)
		inv.Total = inv.Total.Add(e.AmountGross)
		if !e.Settled() {
			inv.OpenTotal = inv.OpenTotal.Add(e.AmountGross)
		}
	}
	return inv, true
}

// dueDateFor places the due day in the reference month, rolled into the
// next month when it is numerically before the closing day: a due day
// before the closing day can only mean the following month.
func dueDateFor(card Account, year int, month time.Month) Date {
	due := NewDate(year, month, card.DueDay)
	if card.DueDay < card.ClosingDay {
		due = NewDate(year, month+1, card.DueDay)
	}
	return due
}

// =============================================================================
// CARD SUMMARY
// =============================================================================

// CardSummary is the KPI-card view of a credit card account.
type CardSummary struct {
	AccountID    string
	Limit        decimal.Decimal
	OpenBalance  decimal.Decimal // open exposure across ALL entries, not just the window
	Available    decimal.Decimal // limit - open exposure
	UsedInPeriod decimal.Decimal // gross total of the reference month's window
}

// ComputeCardSummary combines the invoice window with the account-wide open
// exposure. The exposure comes from the statement side, not the resolver.
func ComputeCardSummary(s *Store, card Account, year int, month time.Month) CardSummary {
	open := OpenExposure(s, card.ID)
	summary := CardSummary{
		AccountID:   card.ID,
		Limit:       card.Limit,
		OpenBalance: open,
		Available:   card.Limit.Sub(open),
	}
	if inv, ok := ResolveInvoice(s, card, year, month); ok {
		summary.UsedInPeriod = inv.Total
	}
	return summary
}
