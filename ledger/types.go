/*
Package ledger is the financial core of the business manager.

PURPOSE:
  Holds the authoritative in-memory collections (accounts, ledger entries,
  sales, partner investments), the consistency reducer that is the sole
  mutation gateway over them, and the pure calculators that derive balances,
  statements, aging and card invoices from a snapshot.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: bank/cash/card/investment account with an opening balance
  - LedgerEntry: a "movement" - income, expense or transfer with due/paid dates
  - SaleRecord: the order side of a commercial transaction
  - InvestmentTransaction: a partner contribution/yield/withdrawal/transfer
  - Record: the common interface the reducer operates on

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every amount, never floats
  2. Derived state: balances and "overdue" are computed, never stored
  3. Loose links made explicit: groupId / linkedMovementId / referenceId are
     resolved through indices (links.go), not ad-hoc scans

SEE ALSO:
  - store.go: the collections and id generator
  - reducer.go: the only legal way to mutate a Store
  - statement.go, billing.go: read-only derivations
*/
package ledger

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

type AccountKind string

const (
	AccountBank       AccountKind = "bank"
	AccountCash       AccountKind = "cash"
	AccountCard       AccountKind = "card"
	AccountInvestment AccountKind = "investment"
)

type EntryKind string

const (
	EntryIncome   EntryKind = "INCOME"
	EntryExpense  EntryKind = "EXPENSE"
	EntryTransfer EntryKind = "TRANSFER"
)

// EntryStatus is the stored settlement state. "Overdue" is a read-time label
// derived from the due date, never persisted.
type EntryStatus string

const (
	StatusOpen    EntryStatus = "OPEN"
	StatusSettled EntryStatus = "SETTLED"
)

type EntryOrigin string

const (
	OriginSale       EntryOrigin = "sale"
	OriginInvestment EntryOrigin = "investment"
	OriginManual     EntryOrigin = "manual"
)

type InvestmentType string

const (
	InvestmentContribution InvestmentType = "CONTRIBUTION"
	InvestmentYield        InvestmentType = "YIELD"
	InvestmentWithdrawal   InvestmentType = "WITHDRAWAL"
	InvestmentTransfer     InvestmentType = "TRANSFER"
)

// TrackingStatus is the fulfilment state of a sale. Statuses are ordered;
// the reducer only ever advances them, never regresses.
type TrackingStatus string

const (
	TrackingPending         TrackingStatus = "pending"
	TrackingPaymentReceived TrackingStatus = "payment_received"
	TrackingShipped         TrackingStatus = "shipped"
	TrackingDelivered       TrackingStatus = "delivered"
)

var trackingRank = map[TrackingStatus]int{
	TrackingPending:         0,
	TrackingPaymentReceived: 1,
	TrackingShipped:         2,
	TrackingDelivered:       3,
}

// AtOrPast reports whether s has already reached the given status.
func (s TrackingStatus) AtOrPast(target TrackingStatus) bool {
	return trackingRank[s] >= trackingRank[target]
}

// =============================================================================
// RECORDS
// =============================================================================

// Record is what the reducer's operations carry. Every collection's element
// type implements it.
type Record interface {
	RecordID() string
}

// Account holds money. Its balance is never stored: it is always derived
// from the opening balance plus settled movements.
type Account struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           AccountKind     `json:"kind"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`

	// Card configuration. ClosingDay/DueDay are calendar days 1-31;
	// zero means not configured.
	ClosingDay int             `json:"closingDay,omitempty"`
	DueDay     int             `json:"dueDay,omitempty"`
	Limit      decimal.Decimal `json:"limit"`
}

func (a Account) RecordID() string { return a.ID }

// LedgerEntry is a single financial movement.
//
// Linkage fields:
//   - ReferenceID points at a SaleRecord when Origin == sale
//   - GroupID marks membership in a symmetric group that must share
//     date and amount across both collections
//   - ParentMovementID is informational grouping only (installments);
//     the reducer never cascades through it
type LedgerEntry struct {
	ID            string      `json:"id"`
	Kind          EntryKind   `json:"kind"`
	Status        EntryStatus `json:"status"`
	Origin        EntryOrigin `json:"origin,omitempty"`
	AccountID     string      `json:"accountId"`
	DestinationID string      `json:"destinationId,omitempty"` // TRANSFER only
	CategoryID    string      `json:"categoryId,omitempty"`
	ContactID     string      `json:"contactId,omitempty"`
	Description   string      `json:"description,omitempty"`

	DueDate         Date  `json:"dueDate"`
	TransactionDate *Date `json:"transactionDate,omitempty"` // card purchase date
	PaidDate        *Date `json:"paidDate,omitempty"`        // required when SETTLED

	AmountGross decimal.Decimal `json:"amountGross"`
	Fees        decimal.Decimal `json:"fees"`
	Interest    decimal.Decimal `json:"interest"`
	AmountNet   decimal.Decimal `json:"amountNet"` // always gross - fees + interest

	ReferenceID      string `json:"referenceId,omitempty"`
	GroupID          string `json:"groupId,omitempty"`
	ParentMovementID string `json:"parentMovementId,omitempty"`
}

func (e LedgerEntry) RecordID() string { return e.ID }

// Settled reports the stored settlement state.
func (e LedgerEntry) Settled() bool { return e.Status == StatusSettled }

// EffectiveDate is when the entry moves (or is expected to move) money:
// the paid date once settled, the due date otherwise.
func (e LedgerEntry) EffectiveDate() Date {
	if e.Settled() && e.PaidDate != nil {
		return *e.PaidDate
	}
	return e.DueDate
}

// Overdue is the derived read-time label: open and past due.
func (e LedgerEntry) Overdue(today Date) bool {
	return !e.Settled() && e.DueDate.Before(today)
}

// UnmarshalJSON migrates the legacy "value" field name for the gross amount.
// Older persisted documents carry "value" instead of "amountGross".
func (e *LedgerEntry) UnmarshalJSON(data []byte) error {
	type alias LedgerEntry
	aux := struct {
		*alias
		LegacyValue *decimal.Decimal `json:"value,omitempty"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.LegacyValue != nil && e.AmountGross.IsZero() {
		e.AmountGross = *aux.LegacyValue
	}
	return nil
}

// SaleRecord is the order side of a commercial transaction. Its financial
// settlement is exactly one LedgerEntry with Origin == sale and
// ReferenceID == SaleRecord.ID. Deleting that entry never deletes the sale.
type SaleRecord struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"productId"`
	CustomerID string          `json:"customerId"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Discount   decimal.Decimal `json:"discount"`
	Freight    decimal.Decimal `json:"freight"`
	Tax        decimal.Decimal `json:"tax"`

	// PurchaseMovementID points at the entry whose gross amount, divided by
	// Quantity, is the authoritative unit cost when present.
	PurchaseMovementID string `json:"purchaseMovementId,omitempty"`

	Tracking         TrackingStatus          `json:"trackingStatus,omitempty"`
	StatusTimestamps map[TrackingStatus]Date `json:"statusTimestamps,omitempty"`
}

func (s SaleRecord) RecordID() string { return s.ID }

// ImpliedGross is the gross amount the sale's own figures imply:
// quantity * unitPrice + freight. The derived-field sync compares the
// settlement entry's gross against this.
func (s SaleRecord) ImpliedGross() decimal.Decimal {
	return s.Quantity.Mul(s.UnitPrice).Add(s.Freight)
}

// InvestmentTransaction is a partner-side financial event. Amount is always
// positive; Type carries the direction.
type InvestmentTransaction struct {
	ID               string          `json:"id"`
	PartnerAccountID string          `json:"partnerAccountId"`
	Date             Date            `json:"date"`
	Type             InvestmentType  `json:"type"`
	Amount           decimal.Decimal `json:"amount"`

	// ContraAccountID is the company account mirrored by the linked entry.
	ContraAccountID string `json:"contraAccountId,omitempty"`

	// LinkedMovementID is the 1:1 mirror back-reference to the company-side
	// LedgerEntry produced by this transaction.
	LinkedMovementID string `json:"linkedMovementId,omitempty"`

	GroupID string `json:"groupId,omitempty"`
}

func (t InvestmentTransaction) RecordID() string { return t.ID }

// =============================================================================
// MONEY HELPERS
// =============================================================================

// NetOf recomputes the net invariant: gross - fees + interest.
func NetOf(gross, fees, interest decimal.Decimal) decimal.Decimal {
	return gross.Sub(fees).Add(interest)
}

// Round2 rounds a monetary amount to 2 decimals (unit prices, display sums).
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
