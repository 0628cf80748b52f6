/*
links.go - Link indices and propagation rules

PURPOSE:
  The collections reference each other through three loose link kinds:

    group     (GroupID)           symmetric equivalence class across BOTH
                                  collections: members always share date+amount
    mirror    (LinkedMovementID)  directed 1:1 between an investment and the
                                  company-side entry it produced
    sale ref  (ReferenceID)       a settlement entry feeding derived fields
                                  on its SaleRecord

  Rather than scanning the slices per cascade, the reducer rebuilds these
  indices once per mutation and applies a fixed set of named propagation
  rules: derived-field-sync, then group-sync, then mirror-sync.

PROPAGATION ORDER INVARIANT:
  group-sync and mirror-sync are mutually exclusive for a given source:
  a record with a GroupID syncs its group and nothing else; only a
  group-less record syncs through its mirror link.

SEE ALSO:
  - reducer.go: calls these rules on every update/delete
*/
package ledger

// ref addresses a record inside the cloned store the reducer is working on.
type ref struct {
	col Collection
	idx int
}

type links struct {
	groups        map[string][]ref // GroupID -> members, both collections
	mirrorOf      map[string]int   // movement id -> investment index
	saleIdx       map[string]int   // sale id -> index
	movementIdx   map[string]int   // movement id -> index
	investmentIdx map[string]int   // investment id -> index
}

// buildLinks indexes the store's cross-record links in one pass per
// collection. Rebuilt on each mutation; the store is small enough that
// incremental maintenance is not worth the invariant risk.
func buildLinks(s *Store) links {
	lk := links{
		groups:        make(map[string][]ref),
		mirrorOf:      make(map[string]int),
		saleIdx:       make(map[string]int, len(s.Sales)),
		movementIdx:   make(map[string]int, len(s.Movements)),
		investmentIdx: make(map[string]int, len(s.Investments)),
	}
	for i, e := range s.Movements {
		lk.movementIdx[e.ID] = i
		if e.GroupID != "" {
			lk.groups[e.GroupID] = append(lk.groups[e.GroupID], ref{ColMovements, i})
		}
	}
	for i, t := range s.Investments {
		lk.investmentIdx[t.ID] = i
		if t.GroupID != "" {
			lk.groups[t.GroupID] = append(lk.groups[t.GroupID], ref{ColInvestments, i})
		}
		if t.LinkedMovementID != "" {
			lk.mirrorOf[t.LinkedMovementID] = i
		}
	}
	for i, sale := range s.Sales {
		lk.saleIdx[sale.ID] = i
	}
	return lk
}

// =============================================================================
// RULE: derived-field-sync (settlement entry -> SaleRecord)
// =============================================================================

// syncSaleFromMovement feeds a sale's derived fields from its settlement
// entry after that entry changed.
//
// Fees always become the sale's tax. With explicit auxiliary values the
// freight is set directly and the unit price derived from the product value.
// Without them, the entire gross delta is attributed to the unit price -
// freight untouched - even when the change was actually freight-driven.
// That fallback mirrors long-standing behavior; see the reducer tests.
func (r *Reducer) syncSaleFromMovement(s *Store, lk links, mov LedgerEntry, aux *SaleAux) {
	if mov.Origin != OriginSale || mov.ReferenceID == "" {
		return
	}
	si, ok := lk.saleIdx[mov.ReferenceID]
	if !ok {
		return
	}
	sale := &s.Sales[si]

	sale.Tax = mov.Fees

	if aux != nil {
		sale.Freight = aux.Freight
		if sale.Quantity.IsPositive() {
			sale.UnitPrice = Round2(aux.ProductValue.Div(sale.Quantity))
		}
	} else if sale.Quantity.IsPositive() {
		delta := mov.AmountGross.Sub(sale.ImpliedGross())
		if !delta.IsZero() {
			sale.UnitPrice = Round2(sale.UnitPrice.Add(delta.Div(sale.Quantity)))
		}
	}

	if mov.Settled() && !sale.Tracking.AtOrPast(TrackingPaymentReceived) {
		sale.Tracking = TrackingPaymentReceived
		if sale.StatusTimestamps == nil {
			sale.StatusTimestamps = make(map[TrackingStatus]Date)
		}
		sale.StatusTimestamps[TrackingPaymentReceived] = r.Now()
	}
}

// =============================================================================
// RULE: group-sync (any member -> every other member, both collections)
// =============================================================================

// syncGroupFromMovement pushes the source entry's date and amount to every
// other group member. Entry members take the gross and are re-normalized
// against their own fees/interest so the net invariant holds per member;
// investment members take the net, the same mapping the mirror uses.
func syncGroupFromMovement(s *Store, lk links, src LedgerEntry) {
	for _, m := range lk.groups[src.GroupID] {
		switch m.col {
		case ColMovements:
			e := &s.Movements[m.idx]
			if e.ID == src.ID {
				continue
			}
			e.DueDate = src.DueDate
			e.AmountGross = src.AmountGross
			if src.Settled() {
				e.Status = StatusSettled
				e.PaidDate = src.PaidDate
			}
			e.AmountNet = NetOf(e.AmountGross, e.Fees, e.Interest)
		case ColInvestments:
			t := &s.Investments[m.idx]
			t.Date = src.DueDate
			t.Amount = src.AmountNet
		}
	}
}

// syncGroupFromInvestment is the opposite direction: the investment's date
// and amount flow into sibling records, mapped through their own field names.
func syncGroupFromInvestment(s *Store, lk links, src InvestmentTransaction) {
	for _, m := range lk.groups[src.GroupID] {
		switch m.col {
		case ColMovements:
			e := &s.Movements[m.idx]
			e.DueDate = src.Date
			e.AmountGross = src.Amount
			e.AmountNet = NetOf(e.AmountGross, e.Fees, e.Interest)
		case ColInvestments:
			t := &s.Investments[m.idx]
			if t.ID == src.ID {
				continue
			}
			t.Date = src.Date
			t.Amount = src.Amount
		}
	}
}

// =============================================================================
// RULE: mirror-sync (1:1 entry <-> investment)
// =============================================================================

func syncMirrorFromMovement(s *Store, lk links, src LedgerEntry) {
	ii, ok := lk.mirrorOf[src.ID]
	if !ok {
		return
	}
	t := &s.Investments[ii]
	t.Date = src.DueDate
	t.Amount = src.AmountNet
}

func syncMirrorFromInvestment(s *Store, lk links, src InvestmentTransaction) {
	if src.LinkedMovementID == "" {
		return
	}
	mi, ok := lk.movementIdx[src.LinkedMovementID]
	if !ok {
		return
	}
	e := &s.Movements[mi]
	e.DueDate = src.Date
	e.AmountGross = src.Amount
	e.AmountNet = NetOf(e.AmountGross, e.Fees, e.Interest)
}

// =============================================================================
// DELETE CASCADES
// =============================================================================

// deleteSet collects ids to remove, keyed by collection, so that batch
// deletes containing both a group's leader and a follower cascade exactly
// once.
type deleteSet map[Collection]map[string]bool

func (d deleteSet) add(c Collection, id string) {
	if d[c] == nil {
		d[c] = make(map[string]bool)
	}
	d[c][id] = true
}

func (d deleteSet) has(c Collection, id string) bool { return d[c][id] }

// cascade expands one requested deletion into the full set of records that
// must go with it:
//
//  1. a group member takes the whole group, across both collections
//  2. an investment with a mirror takes the mirrored entry
//  3. an entry takes any investment mirroring it
//  4. otherwise just the target
//
// A sale settlement entry never takes its SaleRecord.
func cascade(s *Store, lk links, c Collection, id string, out deleteSet) {
	out.add(c, id)

	switch c {
	case ColMovements:
		e, ok := s.MovementByID(id)
		if !ok {
			return
		}
		if e.GroupID != "" {
			cascadeGroup(lk, e.GroupID, s, out)
			return
		}
		if ii, ok := lk.mirrorOf[e.ID]; ok {
			out.add(ColInvestments, s.Investments[ii].ID)
		}

	case ColInvestments:
		t, ok := s.InvestmentByID(id)
		if !ok {
			return
		}
		if t.GroupID != "" {
			cascadeGroup(lk, t.GroupID, s, out)
			return
		}
		if t.LinkedMovementID != "" {
			out.add(ColMovements, t.LinkedMovementID)
		}
	}
}

func cascadeGroup(lk links, groupID string, s *Store, out deleteSet) {
	for _, m := range lk.groups[groupID] {
		switch m.col {
		case ColMovements:
			out.add(ColMovements, s.Movements[m.idx].ID)
		case ColInvestments:
			out.add(ColInvestments, s.Investments[m.idx].ID)
		}
	}
}
