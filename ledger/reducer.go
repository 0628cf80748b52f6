/*
reducer.go - The sole mutation gateway

PURPOSE:
  Apply takes a store snapshot and one operation and returns the next
  snapshot, or an error and no change at all. Every create/update/delete in
  the system funnels through here so the cross-record invariants
  (net = gross - fees + interest, group equality, mirror consistency,
  sale-derived fields) hold after every mutation.

ATOMICITY:
  Apply clones the store, mutates the clone, and returns it only when every
  step succeeded. Callers never observe a partially-applied mutation; on
  error the original snapshot is untouched.

NORMALIZATION (every movement write):
  - AmountNet recomputed from gross/fees/interest, never trusted
  - empty status defaults to OPEN
  - settling without a paid date stamps today (injectable clock)

UPDATE CASCADE ORDER:
  1. derived-field-sync  (sale-linked entries feed their SaleRecord)
  2. group-sync          (if the record carries a GroupID)
  3. mirror-sync         (only when it does not)

SEE ALSO:
  - links.go: the propagation rules and delete cascades
  - ops.go: the operation vocabulary
*/
package ledger

import "fmt"

// Reducer applies operations. Now is injectable so settlement stamping is
// deterministic under test; the zero value is not usable, call NewReducer.
type Reducer struct {
	Now func() Date
}

func NewReducer() *Reducer {
	return &Reducer{Now: Today}
}

// Apply is a pure (store, op) -> store transform. On error the returned
// store is the zero value and the input is unchanged.
func (r *Reducer) Apply(s Store, op Operation) (Store, error) {
	next := s.Clone()
	if err := r.applyTo(&next, op); err != nil {
		return Store{}, err
	}
	return next, nil
}

func (r *Reducer) applyTo(s *Store, op Operation) error {
	if _, ok := idPrefix[op.Collection]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, op.Collection)
	}

	switch op.Kind {
	case OpAdd:
		return r.add(s, op.Collection, op.Record)
	case OpAddMany:
		for _, rec := range op.Records {
			if err := r.add(s, op.Collection, rec); err != nil {
				return err
			}
		}
		return nil
	case OpUpdate:
		return r.update(s, op)
	case OpDelete:
		return r.remove(s, op.Collection, []string{op.ID})
	case OpDeleteMany:
		return r.remove(s, op.Collection, op.IDs)
	case OpReplace:
		return r.replace(s, op)
	default:
		return &ValidationError{Collection: op.Collection, Message: fmt.Sprintf("unknown operation %q", op.Kind)}
	}
}

// =============================================================================
// ADD
// =============================================================================

func (r *Reducer) add(s *Store, c Collection, rec Record) error {
	switch c {
	case ColAccounts:
		a, ok := rec.(Account)
		if !ok {
			return typeMismatch(c)
		}
		if err := validateAccount(a); err != nil {
			return err
		}
		if a.ID == "" {
			a.ID = s.NextID(idPrefix[c])
		} else if _, exists := s.AccountByID(a.ID); exists {
			return duplicateID(c, a.ID)
		}
		s.Accounts = append(s.Accounts, a)

	case ColMovements:
		e, ok := rec.(LedgerEntry)
		if !ok {
			return typeMismatch(c)
		}
		if err := validateMovement(e); err != nil {
			return err
		}
		r.normalizeMovement(&e)
		if e.ID == "" {
			e.ID = s.NextID(idPrefix[c])
		} else if _, exists := s.MovementByID(e.ID); exists {
			return duplicateID(c, e.ID)
		}
		s.Movements = append(s.Movements, e)

	case ColSales:
		sale, ok := rec.(SaleRecord)
		if !ok {
			return typeMismatch(c)
		}
		if err := validateSale(sale); err != nil {
			return err
		}
		if sale.ID == "" {
			sale.ID = s.NextID(idPrefix[c])
		} else if _, exists := s.SaleByID(sale.ID); exists {
			return duplicateID(c, sale.ID)
		}
		s.Sales = append(s.Sales, sale)

	case ColInvestments:
		t, ok := rec.(InvestmentTransaction)
		if !ok {
			return typeMismatch(c)
		}
		if err := validateInvestment(t); err != nil {
			return err
		}
		if t.ID == "" {
			t.ID = s.NextID(idPrefix[c])
		} else if _, exists := s.InvestmentByID(t.ID); exists {
			return duplicateID(c, t.ID)
		}
		s.Investments = append(s.Investments, t)
	}
	return nil
}

// =============================================================================
// UPDATE
// =============================================================================

func (r *Reducer) update(s *Store, op Operation) error {
	if op.Record == nil {
		return &ValidationError{Collection: op.Collection, Message: "update requires a record"}
	}

	switch op.Collection {
	case ColAccounts:
		a, ok := op.Record.(Account)
		if !ok {
			return typeMismatch(op.Collection)
		}
		if err := validateAccount(a); err != nil {
			return err
		}
		for i := range s.Accounts {
			if s.Accounts[i].ID == a.ID {
				s.Accounts[i] = a
				return nil
			}
		}
		return &NotFoundError{Collection: op.Collection, ID: a.ID}

	case ColSales:
		sale, ok := op.Record.(SaleRecord)
		if !ok {
			return typeMismatch(op.Collection)
		}
		if err := validateSale(sale); err != nil {
			return err
		}
		for i := range s.Sales {
			if s.Sales[i].ID == sale.ID {
				s.Sales[i] = sale
				return nil
			}
		}
		return &NotFoundError{Collection: op.Collection, ID: sale.ID}

	case ColMovements:
		e, ok := op.Record.(LedgerEntry)
		if !ok {
			return typeMismatch(op.Collection)
		}
		return r.updateMovement(s, e, op.SaleAux)

	case ColInvestments:
		t, ok := op.Record.(InvestmentTransaction)
		if !ok {
			return typeMismatch(op.Collection)
		}
		return r.updateInvestment(s, t)
	}
	return nil
}

func (r *Reducer) updateMovement(s *Store, e LedgerEntry, aux *SaleAux) error {
	if err := validateMovement(e); err != nil {
		return err
	}
	idx := -1
	for i := range s.Movements {
		if s.Movements[i].ID == e.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{Collection: ColMovements, ID: e.ID}
	}

	r.normalizeMovement(&e)
	s.Movements[idx] = e

	lk := buildLinks(s)
	r.syncSaleFromMovement(s, lk, e, aux)
	if e.GroupID != "" {
		syncGroupFromMovement(s, lk, e)
	} else {
		syncMirrorFromMovement(s, lk, e)
	}
	return nil
}

func (r *Reducer) updateInvestment(s *Store, t InvestmentTransaction) error {
	if err := validateInvestment(t); err != nil {
		return err
	}
	idx := -1
	for i := range s.Investments {
		if s.Investments[i].ID == t.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{Collection: ColInvestments, ID: t.ID}
	}

	s.Investments[idx] = t

	lk := buildLinks(s)
	if t.GroupID != "" {
		syncGroupFromInvestment(s, lk, t)
	} else {
		syncMirrorFromInvestment(s, lk, t)
	}
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

// remove handles single and batch deletes. The cascade sets of all requested
// ids are unioned first, then everything is removed in one sweep, so a batch
// holding both a group's leader and a follower cascades exactly once.
func (r *Reducer) remove(s *Store, c Collection, ids []string) error {
	lk := buildLinks(s)
	set := make(deleteSet)

	for _, id := range ids {
		if !exists(s, c, id) {
			return &NotFoundError{Collection: c, ID: id}
		}
		cascade(s, lk, c, id, set)
	}

	if len(set[ColAccounts]) > 0 {
		kept := s.Accounts[:0]
		for _, a := range s.Accounts {
			if !set.has(ColAccounts, a.ID) {
				kept = append(kept, a)
			}
		}
		s.Accounts = kept
	}
	if len(set[ColMovements]) > 0 {
		kept := s.Movements[:0]
		for _, e := range s.Movements {
			if !set.has(ColMovements, e.ID) {
				kept = append(kept, e)
			}
		}
		s.Movements = kept
	}
	if len(set[ColSales]) > 0 {
		kept := s.Sales[:0]
		for _, sale := range s.Sales {
			if !set.has(ColSales, sale.ID) {
				kept = append(kept, sale)
			}
		}
		s.Sales = kept
	}
	if len(set[ColInvestments]) > 0 {
		kept := s.Investments[:0]
		for _, t := range s.Investments {
			if !set.has(ColInvestments, t.ID) {
				kept = append(kept, t)
			}
		}
		s.Investments = kept
	}
	return nil
}

func exists(s *Store, c Collection, id string) bool {
	switch c {
	case ColAccounts:
		_, ok := s.AccountByID(id)
		return ok
	case ColMovements:
		_, ok := s.MovementByID(id)
		return ok
	case ColSales:
		_, ok := s.SaleByID(id)
		return ok
	case ColInvestments:
		_, ok := s.InvestmentByID(id)
		return ok
	}
	return false
}

// =============================================================================
// REPLACE
// =============================================================================

// replace swaps a collection wholesale (imports, restores). Movements are
// still validated and normalized; no propagation runs, the caller is
// providing the full consistent state.
func (r *Reducer) replace(s *Store, op Operation) error {
	switch op.Collection {
	case ColAccounts:
		out := make([]Account, 0, len(op.Records))
		for _, rec := range op.Records {
			a, ok := rec.(Account)
			if !ok {
				return typeMismatch(op.Collection)
			}
			if err := validateAccount(a); err != nil {
				return err
			}
			out = append(out, a)
		}
		s.Accounts = out
	case ColMovements:
		out := make([]LedgerEntry, 0, len(op.Records))
		for _, rec := range op.Records {
			e, ok := rec.(LedgerEntry)
			if !ok {
				return typeMismatch(op.Collection)
			}
			if err := validateMovement(e); err != nil {
				return err
			}
			r.normalizeMovement(&e)
			out = append(out, e)
		}
		s.Movements = out
	case ColSales:
		out := make([]SaleRecord, 0, len(op.Records))
		for _, rec := range op.Records {
			sale, ok := rec.(SaleRecord)
			if !ok {
				return typeMismatch(op.Collection)
			}
			if err := validateSale(sale); err != nil {
				return err
			}
			out = append(out, sale)
		}
		s.Sales = out
	case ColInvestments:
		out := make([]InvestmentTransaction, 0, len(op.Records))
		for _, rec := range op.Records {
			t, ok := rec.(InvestmentTransaction)
			if !ok {
				return typeMismatch(op.Collection)
			}
			if err := validateInvestment(t); err != nil {
				return err
			}
			out = append(out, t)
		}
		s.Investments = out
	}
	return nil
}

// =============================================================================
// NORMALIZATION & VALIDATION
// =============================================================================

func (r *Reducer) normalizeMovement(e *LedgerEntry) {
	e.AmountNet = NetOf(e.AmountGross, e.Fees, e.Interest)
	if e.Status == "" {
		e.Status = StatusOpen
	}
	if e.Settled() && e.PaidDate == nil {
		d := r.Now()
		e.PaidDate = &d
	}
}

func validateAccount(a Account) error {
	if a.Name == "" {
		return &ValidationError{Collection: ColAccounts, Field: "name", Message: "required"}
	}
	if a.ClosingDay < 0 || a.ClosingDay > 31 {
		return &ValidationError{Collection: ColAccounts, Field: "closingDay", Message: "must be 1-31"}
	}
	if a.DueDay < 0 || a.DueDay > 31 {
		return &ValidationError{Collection: ColAccounts, Field: "dueDay", Message: "must be 1-31"}
	}
	return nil
}

func validateMovement(e LedgerEntry) error {
	switch e.Kind {
	case EntryIncome, EntryExpense, EntryTransfer:
	default:
		return &ValidationError{Collection: ColMovements, Field: "kind", Message: "must be INCOME, EXPENSE or TRANSFER"}
	}
	if e.AccountID == "" {
		return &ValidationError{Collection: ColMovements, Field: "accountId", Message: "required"}
	}
	if e.Kind == EntryTransfer && e.DestinationID == "" {
		return &ValidationError{Collection: ColMovements, Field: "destinationId", Message: "required for transfers"}
	}
	if e.AmountGross.IsNegative() {
		return &ValidationError{Collection: ColMovements, Field: "amountGross", Message: "must not be negative"}
	}
	if e.DueDate.IsZero() {
		return &ValidationError{Collection: ColMovements, Field: "dueDate", Message: "required"}
	}
	return nil
}

func validateSale(s SaleRecord) error {
	if s.Quantity.IsNegative() {
		return &ValidationError{Collection: ColSales, Field: "quantity", Message: "must not be negative"}
	}
	return nil
}

func validateInvestment(t InvestmentTransaction) error {
	switch t.Type {
	case InvestmentContribution, InvestmentYield, InvestmentWithdrawal, InvestmentTransfer:
	default:
		return &ValidationError{Collection: ColInvestments, Field: "type", Message: "unknown investment type"}
	}
	if t.PartnerAccountID == "" {
		return &ValidationError{Collection: ColInvestments, Field: "partnerAccountId", Message: "required"}
	}
	if !t.Amount.IsPositive() {
		return &ValidationError{Collection: ColInvestments, Field: "amount", Message: "must be positive"}
	}
	if t.Date.IsZero() {
		return &ValidationError{Collection: ColInvestments, Field: "date", Message: "required"}
	}
	return nil
}

func typeMismatch(c Collection) error {
	return &ValidationError{Collection: c, Message: "payload type does not match collection"}
}

func duplicateID(c Collection, id string) error {
	return &ValidationError{Collection: c, Field: "id", Message: fmt.Sprintf("%q already exists", id)}
}
