/*
statement.go - Balance and statement derivation

PURPOSE:
  Pure, read-only functions over a store snapshot. Everything here is
  recomputed from scratch on every call: there is no cached balance anywhere
  in the system, so these derivations ARE the account balance.

KEY RULES:
  - Effective date of an entry = paidDate when settled, else dueDate
  - Transfers credit the destination and debit the source
  - The running balance only advances past SETTLED rows; a pending row shows
    the balance as it stood BEFORE it, because unsettled money has not moved
  - currentBalance is the balance through today, independent of the range
  - projectedBalance assumes every pending item in range clears on schedule
  - Aging buckets cover OPEN entries only, by raw signed day distance from
    today to the due date; already-overdue entries land in the 0-7 bucket
    because the comparison chain has no negative branch (kept deliberately,
    see the tests)

SEE ALSO:
  - billing.go: the card-window sibling of these derivations
*/
package ledger

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD
// =============================================================================

// Period is an inclusive date range [From, To].
type Period struct {
	From Date
	To   Date
}

func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.From) && d.BeforeOrEqual(p.To)
}

// Days returns the period length in whole days, inclusive of both ends.
func (p Period) Days() int { return DaysBetween(p.From, p.To) + 1 }

// Previous returns the immediately preceding period of the same length,
// walking back from From - 1 day.
func (p Period) Previous() Period {
	n := p.Days()
	end := p.From.AddDays(-1)
	return Period{From: end.AddDays(-(n - 1)), To: end}
}

// MonthOf returns the calendar-month period containing the date.
func MonthOf(d Date) Period {
	start := NewDate(d.Year(), d.Month(), 1)
	return Period{From: start, To: start.AddMonths(1).AddDays(-1)}
}

// =============================================================================
// FILTERS
// =============================================================================

// Filter narrows statement rows. Zero value matches everything.
type Filter struct {
	Status     EntryStatus // "" = any
	Kind       EntryKind   // "" = any
	CategoryID string      // "" = any
	Query      string      // case-insensitive substring on description
}

func (f Filter) matches(e LedgerEntry) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.CategoryID != "" && e.CategoryID != f.CategoryID {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(e.Description), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

// =============================================================================
// STATEMENT
// =============================================================================

// Row is one statement line for a specific account.
type Row struct {
	EntryID     string
	Date        Date // effective date
	Description string
	CategoryID  string
	ContactID   string
	Kind        EntryKind
	Status      EntryStatus
	Overdue     bool // derived label, never stored

	// Value is signed for this account: income and incoming transfers
	// positive, expenses and outgoing transfers negative.
	Value decimal.Decimal

	// RunningBalance after this row if settled, before it if still open.
	RunningBalance decimal.Decimal
}

type Totals struct {
	Inflow  decimal.Decimal // settled rows only
	Outflow decimal.Decimal // settled rows only, positive magnitude
	Net     decimal.Decimal
}

// AgingBuckets sums open amounts by day distance from today to due date.
type AgingBuckets struct {
	Days0to7   decimal.Decimal
	Days8to15  decimal.Decimal
	Days16to30 decimal.Decimal
	Over30     decimal.Decimal
}

func (b AgingBuckets) Total() decimal.Decimal {
	return b.Days0to7.Add(b.Days8to15).Add(b.Days16to30).Add(b.Over30)
}

// Aging splits open entries by direction: receivables flow in, payables out.
type Aging struct {
	Receivables AgingBuckets
	Payables    AgingBuckets
}

// Statement is the full derived view of one account over a period.
type Statement struct {
	AccountID      string
	Period         Period
	OpeningBalance decimal.Decimal
	Rows           []Row
	Totals         Totals

	// CurrentBalance is through today, regardless of the requested period.
	CurrentBalance decimal.Decimal

	// ProjectedBalance is the balance through the period start plus every
	// row in range whether settled or not.
	ProjectedBalance decimal.Decimal

	Aging Aging
}

// ComputeStatement derives the statement for an account. Pure: no hidden
// caching, no store mutation. An empty ledger yields zeroed aggregates,
// never an error.
func ComputeStatement(s *Store, accountID string, p Period, f Filter, today Date) Statement {
	account, _ := s.AccountByID(accountID)

	opening := balanceAsOf(s, account, accountID, p.From.AddDays(-1))

	// Collect matching rows in range.
	var rows []Row
	for _, e := range s.Movements {
		if !touches(e, accountID) || !f.matches(e) {
			continue
		}
		eff := e.EffectiveDate()
		if !p.Contains(eff) {
			continue
		}
		rows = append(rows, Row{
			EntryID:     e.ID,
			Date:        eff,
			Description: e.Description,
			CategoryID:  e.CategoryID,
			ContactID:   e.ContactID,
			Kind:        e.Kind,
			Status:      e.Status,
			Overdue:     e.Overdue(today),
			Value:       signedValue(e, accountID),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].EntryID < rows[j].EntryID
	})

	// Running balance: advances past settled rows only.
	var totals Totals
	projected := opening
	balance := opening
	for i := range rows {
		projected = projected.Add(rows[i].Value)
		if rows[i].Status == StatusSettled {
			balance = balance.Add(rows[i].Value)
			rows[i].RunningBalance = balance
			if rows[i].Value.IsPositive() {
				totals.Inflow = totals.Inflow.Add(rows[i].Value)
			} else {
				totals.Outflow = totals.Outflow.Add(rows[i].Value.Neg())
			}
		} else {
			rows[i].RunningBalance = balance
		}
	}
	totals.Net = totals.Inflow.Sub(totals.Outflow)

	return Statement{
		AccountID:        accountID,
		Period:           p,
		OpeningBalance:   opening,
		Rows:             rows,
		Totals:           totals,
		CurrentBalance:   balanceAsOf(s, account, accountID, today),
		ProjectedBalance: projected,
		Aging:            computeAging(s, accountID, f, today),
	}
}

// balanceAsOf is the account's opening balance plus the net effect of every
// settled entry with an effective date at or before the cutoff.
func balanceAsOf(s *Store, account Account, accountID string, cutoff Date) decimal.Decimal {
	balance := account.OpeningBalance
	for _, e := range s.Movements {
		if !touches(e, accountID) || !e.Settled() {
			continue
		}
		if e.EffectiveDate().BeforeOrEqual(cutoff) {
			balance = balance.Add(signedValue(e, accountID))
		}
	}
	return balance
}

// touches reports whether the entry affects the account on either side.
func touches(e LedgerEntry, accountID string) bool {
	if e.AccountID == accountID {
		return true
	}
	return e.Kind == EntryTransfer && e.DestinationID == accountID
}

// signedValue is the entry's net amount signed for this account. Transfers
// credit the destination and debit the source.
func signedValue(e LedgerEntry, accountID string) decimal.Decimal {
	switch e.Kind {
	case EntryIncome:
		return e.AmountNet
	case EntryExpense:
		return e.AmountNet.Neg()
	case EntryTransfer:
		if e.DestinationID == accountID {
			return e.AmountNet
		}
		return e.AmountNet.Neg()
	}
	return decimal.Zero
}

// =============================================================================
// AGING
// =============================================================================

// computeAging buckets every OPEN entry touching the account by the signed
// day distance from today to its due date. The comparison chain is
// deliberately branch-free on negatives: an entry 40 days overdue has
// distance -40, and -40 <= 7, so it accumulates into the 0-7 bucket.
func computeAging(s *Store, accountID string, f Filter, today Date) Aging {
	var aging Aging
	for _, e := range s.Movements {
		if !touches(e, accountID) || e.Settled() || !f.matches(e) {
			continue
		}
		value := signedValue(e, accountID)
		bucket := &aging.Receivables
		if value.IsNegative() {
			bucket = &aging.Payables
		}
		amount := value.Abs()
		switch d := DaysBetween(today, e.DueDate); {
		case d <= 7:
			bucket.Days0to7 = bucket.Days0to7.Add(amount)
		case d <= 15:
			bucket.Days8to15 = bucket.Days8to15.Add(amount)
		case d <= 30:
			bucket.Days16to30 = bucket.Days16to30.Add(amount)
		default:
			bucket.Over30 = bucket.Over30.Add(amount)
		}
	}
	return aging
}

// =============================================================================
// PERIOD-OVER-PERIOD
// =============================================================================

// PeriodDelta compares settled activity between a period and the
// immediately preceding period of the same length.
type PeriodDelta struct {
	Period   Period
	Previous Period

	CurrentNet  decimal.Decimal
	PreviousNet decimal.Decimal

	// PctChange is (current - previous) / |previous| * 100. It is +/-Inf
	// when the previous period is zero and the current is not, and 0 when
	// both are zero.
	PctChange float64
}

// ComparePeriods derives the period-over-period delta of settled net flow.
func ComparePeriods(s *Store, accountID string, p Period, f Filter, today Date) PeriodDelta {
	prev := p.Previous()
	cur := settledNet(s, accountID, p, f)
	before := settledNet(s, accountID, prev, f)

	return PeriodDelta{
		Period:      p,
		Previous:    prev,
		CurrentNet:  cur,
		PreviousNet: before,
		PctChange:   pctChange(cur, before),
	}
}

func settledNet(s *Store, accountID string, p Period, f Filter) decimal.Decimal {
	net := decimal.Zero
	for _, e := range s.Movements {
		if !touches(e, accountID) || !e.Settled() || !f.matches(e) {
			continue
		}
		if p.Contains(e.EffectiveDate()) {
			net = net.Add(signedValue(e, accountID))
		}
	}
	return net
}

func pctChange(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsZero() {
			return 0
		}
		if current.IsNegative() {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	return current.Sub(previous).
		Div(previous.Abs()).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
}

// =============================================================================
// OPEN EXPOSURE & SALE COST
// =============================================================================

// OpenExposure is the net amount of every OPEN expense on the account. The
// card summary uses it for available credit.
func OpenExposure(s *Store, accountID string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.Movements {
		if e.AccountID == accountID && e.Kind == EntryExpense && !e.Settled() {
			total = total.Add(e.AmountNet)
		}
	}
	return total
}

// SaleUnitCost resolves a sale's authoritative unit cost: the linked
// purchase entry's gross divided by quantity when present, zero otherwise.
func SaleUnitCost(s *Store, sale SaleRecord) decimal.Decimal {
	if sale.PurchaseMovementID == "" || !sale.Quantity.IsPositive() {
		return decimal.Zero
	}
	mov, ok := s.MovementByID(sale.PurchaseMovementID)
	if !ok {
		return decimal.Zero
	}
	return Round2(mov.AmountGross.Div(sale.Quantity))
}
