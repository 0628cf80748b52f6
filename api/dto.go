/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. The domain records
  (Account, LedgerEntry, SaleRecord, InvestmentTransaction) already carry
  JSON tags and go over the wire as-is; the types here cover everything
  else: derived views, operation wrappers, and query parsing.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Structural validation (enums, required fields, signs) lives in the
  reducer, not here. DTOs are pure data carriers; handlers only validate
  what the reducer cannot see, such as date formats in query strings.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/statement.go: The derived views these DTOs mirror
*/
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// UpdateMovementRequest wraps a movement update. Aux carries the explicit
// freight and product value for the sale derived-field sync; when absent
// the sync infers a price change from the gross delta.
type UpdateMovementRequest struct {
	Movement ledger.LedgerEntry `json:"movement"`
	Aux      *SaleAuxRequest    `json:"aux,omitempty"`
}

// SaleAuxRequest mirrors ledger.SaleAux on the wire.
type SaleAuxRequest struct {
	Freight      decimal.Decimal `json:"freight"`
	ProductValue decimal.Decimal `json:"productValue"`
}

// DeleteManyRequest names the records a bulk delete targets.
type DeleteManyRequest struct {
	IDs []string `json:"ids"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// SaleDTO is a sale plus its derived per-unit cost.
type SaleDTO struct {
	ledger.SaleRecord
	UnitCost decimal.Decimal `json:"unitCost"`
}

// PeriodDTO is an inclusive date range in responses.
type PeriodDTO struct {
	From ledger.Date `json:"from"`
	To   ledger.Date `json:"to"`
}

// RowDTO is one statement line.
type RowDTO struct {
	EntryID        string             `json:"entryId"`
	Date           ledger.Date        `json:"date"`
	Description    string             `json:"description,omitempty"`
	CategoryID     string             `json:"categoryId,omitempty"`
	ContactID      string             `json:"contactId,omitempty"`
	Kind           ledger.EntryKind   `json:"kind"`
	Status         ledger.EntryStatus `json:"status"`
	Overdue        bool               `json:"overdue"`
	Value          decimal.Decimal    `json:"value"`
	RunningBalance decimal.Decimal    `json:"runningBalance"`
}

// TotalsDTO sums the settled rows of a statement.
type TotalsDTO struct {
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
}

// AgingBucketsDTO splits open amounts by days until due.
type AgingBucketsDTO struct {
	Days0to7   decimal.Decimal `json:"days0to7"`
	Days8to15  decimal.Decimal `json:"days8to15"`
	Days16to30 decimal.Decimal `json:"days16to30"`
	Over30     decimal.Decimal `json:"over30"`
	Total      decimal.Decimal `json:"total"`
}

// AgingDTO carries both directions of the aging report.
type AgingDTO struct {
	Receivables AgingBucketsDTO `json:"receivables"`
	Payables    AgingBucketsDTO `json:"payables"`
}

// StatementDTO is the full derived view of one account over a period.
type StatementDTO struct {
	AccountID        string          `json:"accountId"`
	Period           PeriodDTO       `json:"period"`
	OpeningBalance   decimal.Decimal `json:"openingBalance"`
	Rows             []RowDTO        `json:"rows"`
	Totals           TotalsDTO       `json:"totals"`
	CurrentBalance   decimal.Decimal `json:"currentBalance"`
	ProjectedBalance decimal.Decimal `json:"projectedBalance"`
	Aging            AgingDTO        `json:"aging"`
}

// CompareDTO is the period-over-period response.
type CompareDTO struct {
	Period      PeriodDTO       `json:"period"`
	Previous    PeriodDTO       `json:"previous"`
	CurrentNet  decimal.Decimal `json:"currentNet"`
	PreviousNet decimal.Decimal `json:"previousNet"`

	// PctChange is a string because the value can be +/-Inf, which JSON
	// numbers cannot represent.
	PctChange string `json:"pctChange"`
}

// InvoiceDTO is one card billing cycle.
type InvoiceDTO struct {
	AccountID   string               `json:"accountId"`
	WindowStart ledger.Date          `json:"windowStart"`
	ClosingDate ledger.Date          `json:"closingDate"`
	DueDate     ledger.Date          `json:"dueDate"`
	Entries     []ledger.LedgerEntry `json:"entries"`
	Total       decimal.Decimal      `json:"total"`
	OpenTotal   decimal.Decimal      `json:"openTotal"`
}

// CardSummaryDTO is the spending headline for one card and month.
type CardSummaryDTO struct {
	AccountID    string          `json:"accountId"`
	Limit        decimal.Decimal `json:"limit"`
	OpenBalance  decimal.Decimal `json:"openBalance"`
	Available    decimal.Decimal `json:"available"`
	UsedInPeriod decimal.Decimal `json:"usedInPeriod"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toStatementDTO(st ledger.Statement) StatementDTO {
	rows := make([]RowDTO, len(st.Rows))
	for i, row := range st.Rows {
		rows[i] = RowDTO{
			EntryID:        row.EntryID,
			Date:           row.Date,
			Description:    row.Description,
			CategoryID:     row.CategoryID,
			ContactID:      row.ContactID,
			Kind:           row.Kind,
			Status:         row.Status,
			Overdue:        row.Overdue,
			Value:          row.Value,
			RunningBalance: row.RunningBalance,
		}
	}
	return StatementDTO{
		AccountID:      st.AccountID,
		Period:         PeriodDTO{From: st.Period.From, To: st.Period.To},
		OpeningBalance: st.OpeningBalance,
		Rows:           rows,
		Totals: TotalsDTO{
			Inflow:  st.Totals.Inflow,
			Outflow: st.Totals.Outflow,
			Net:     st.Totals.Net,
		},
		CurrentBalance:   st.CurrentBalance,
		ProjectedBalance: st.ProjectedBalance,
		Aging: AgingDTO{
			Receivables: toAgingBucketsDTO(st.Aging.Receivables),
			Payables:    toAgingBucketsDTO(st.Aging.Payables),
		},
	}
}

func toAgingBucketsDTO(b ledger.AgingBuckets) AgingBucketsDTO {
	return AgingBucketsDTO{
		Days0to7:   b.Days0to7,
		Days8to15:  b.Days8to15,
		Days16to30: b.Days16to30,
		Over30:     b.Over30,
		Total:      b.Total(),
	}
}

func toCompareDTO(d ledger.PeriodDelta) CompareDTO {
	return CompareDTO{
		Period:      PeriodDTO{From: d.Period.From, To: d.Period.To},
		Previous:    PeriodDTO{From: d.Previous.From, To: d.Previous.To},
		CurrentNet:  d.CurrentNet,
		PreviousNet: d.PreviousNet,
		PctChange:   fmt.Sprintf("%g", d.PctChange),
	}
}

func toInvoiceDTO(inv ledger.Invoice) InvoiceDTO {
	entries := inv.Entries
	if entries == nil {
		entries = []ledger.LedgerEntry{}
	}
	return InvoiceDTO{
		AccountID:   inv.AccountID,
		WindowStart: inv.WindowStart,
		ClosingDate: inv.ClosingDate,
		DueDate:     inv.DueDate,
		Entries:     entries,
		Total:       inv.Total,
		OpenTotal:   inv.OpenTotal,
	}
}

func toCardSummaryDTO(cs ledger.CardSummary) CardSummaryDTO {
	return CardSummaryDTO{
		AccountID:    cs.AccountID,
		Limit:        cs.Limit,
		OpenBalance:  cs.OpenBalance,
		Available:    cs.Available,
		UsedInPeriod: cs.UsedInPeriod,
	}
}

// =============================================================================
// QUERY PARSING
// =============================================================================

// parsePeriod reads from/to (YYYY-MM-DD) or month (YYYY-MM) query
// parameters. Defaults to the current calendar month.
func parsePeriod(r *http.Request) (ledger.Period, error) {
	q := r.URL.Query()

	if month := q.Get("month"); month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return ledger.Period{}, fmt.Errorf("invalid month %q (use YYYY-MM)", month)
		}
		return ledger.MonthOf(ledger.DateOf(t)), nil
	}

	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		return ledger.MonthOf(ledger.Today()), nil
	}
	fromDate, err := ledger.ParseDate(from)
	if err != nil {
		return ledger.Period{}, fmt.Errorf("invalid from %q (use YYYY-MM-DD)", from)
	}
	toDate, err := ledger.ParseDate(to)
	if err != nil {
		return ledger.Period{}, fmt.Errorf("invalid to %q (use YYYY-MM-DD)", to)
	}
	return ledger.Period{From: fromDate, To: toDate}, nil
}

// parseMonth reads the month (YYYY-MM) query parameter, defaulting to the
// current month.
func parseMonth(r *http.Request) (int, time.Month, error) {
	month := r.URL.Query().Get("month")
	if month == "" {
		now := ledger.Today()
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q (use YYYY-MM)", month)
	}
	return t.Year(), t.Month(), nil
}

// parseFilter reads the optional row filter from the query string.
func parseFilter(r *http.Request) ledger.Filter {
	q := r.URL.Query()
	return ledger.Filter{
		Status:     ledger.EntryStatus(q.Get("status")),
		Kind:       ledger.EntryKind(q.Get("kind")),
		CategoryID: q.Get("category"),
		Query:      q.Get("q"),
	}
}
