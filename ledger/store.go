/*
store.go - The authoritative in-memory collections

PURPOSE:
  Store holds the four collections plus the monotonic id sequence. It has no
  behavior beyond holding data and cloning itself; every mutation goes
  through the reducer (reducer.go), every read-side derivation through the
  calculators (statement.go, billing.go).

SNAPSHOT CONTRACT:
  A Store value is treated as an immutable snapshot once handed out.
  The reducer works on a deep clone and returns it only on full success, so
  callers can swap snapshots copy-on-write and never observe a
  partially-applied mutation.

SEE ALSO:
  - reducer.go: the sole mutation gateway
  - snapshot.go: the persisted JSON form of a Store
*/
package ledger

import "fmt"

// Collection names match the persisted document's top-level arrays.
type Collection string

const (
	ColAccounts    Collection = "accounts"
	ColMovements   Collection = "movements"
	ColSales       Collection = "sales"
	ColInvestments Collection = "partnerInvestments"
)

// Store is the authoritative state. Fields are exported for the snapshot
// codec; direct edits outside the reducer are forbidden by contract.
type Store struct {
	Accounts    []Account
	Movements   []LedgerEntry
	Sales       []SaleRecord
	Investments []InvestmentTransaction

	// Seq backs the monotonic id generator.
	Seq int64
}

// NextID mints the next id for a collection. Ids are monotonic and never
// reused, even across deletes.
func (s *Store) NextID(prefix string) string {
	s.Seq++
	return fmt.Sprintf("%s-%06d", prefix, s.Seq)
}

var idPrefix = map[Collection]string{
	ColAccounts:    "acc",
	ColMovements:   "mov",
	ColSales:       "sale",
	ColInvestments: "inv",
}

// Clone deep-copies the store. Record structs are value types; only slices
// and the sale timestamp maps need explicit copying.
func (s Store) Clone() Store {
	out := Store{Seq: s.Seq}
	out.Accounts = append([]Account(nil), s.Accounts...)
	out.Movements = append([]LedgerEntry(nil), s.Movements...)
	out.Investments = append([]InvestmentTransaction(nil), s.Investments...)
	out.Sales = make([]SaleRecord, len(s.Sales))
	for i, sale := range s.Sales {
		if sale.StatusTimestamps != nil {
			ts := make(map[TrackingStatus]Date, len(sale.StatusTimestamps))
			for k, v := range sale.StatusTimestamps {
				ts[k] = v
			}
			sale.StatusTimestamps = ts
		}
		out.Sales[i] = sale
	}
	return out
}

// =============================================================================
// LOOKUPS
// =============================================================================

// AccountByID returns the account, or false when missing.
func (s *Store) AccountByID(id string) (Account, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// MovementByID returns the entry, or false when missing.
func (s *Store) MovementByID(id string) (LedgerEntry, bool) {
	for _, e := range s.Movements {
		if e.ID == id {
			return e, true
		}
	}
	return LedgerEntry{}, false
}

// SaleByID returns the sale, or false when missing.
func (s *Store) SaleByID(id string) (SaleRecord, bool) {
	for _, sale := range s.Sales {
		if sale.ID == id {
			return sale, true
		}
	}
	return SaleRecord{}, false
}

// InvestmentByID returns the transaction, or false when missing.
func (s *Store) InvestmentByID(id string) (InvestmentTransaction, bool) {
	for _, t := range s.Investments {
		if t.ID == id {
			return t, true
		}
	}
	return InvestmentTransaction{}, false
}
