/*
ops.go - The reducer's operation vocabulary

PURPOSE:
  Describes the six mutations the reducer accepts, each addressing one
  collection. Operations are plain values; constructors below are the
  intended way to build them.

OPERATIONS:
  Add         one record (id minted when empty)
  AddMany     several records, atomically
  Update      one record by id
  Delete      one record by id (with link cascades)
  DeleteMany  several ids (cascades unioned first, deleted once)
  Replace     the whole collection

SEE ALSO:
  - reducer.go: applies these to a Store
*/
package ledger

import "github.com/shopspring/decimal"

type OpKind string

const (
	OpAdd        OpKind = "add"
	OpAddMany    OpKind = "addMany"
	OpUpdate     OpKind = "update"
	OpDelete     OpKind = "delete"
	OpDeleteMany OpKind = "deleteMany"
	OpReplace    OpKind = "replace"
)

// SaleAux carries the explicit auxiliary values a caller may supply when
// updating a sale-linked movement: the freight actually charged and the
// product value before tax. When present, the derived-field sync uses them
// instead of inferring a price change from the gross delta.
type SaleAux struct {
	Freight      decimal.Decimal
	ProductValue decimal.Decimal
}

// Operation is one mutation request. Which fields are read depends on Kind.
type Operation struct {
	Kind       OpKind
	Collection Collection

	Record  Record   // Add, Update
	Records []Record // AddMany, Replace
	ID      string   // Delete
	IDs     []string // DeleteMany

	// Optional explicit values for the sale derived-field sync (Update on
	// movements only).
	SaleAux *SaleAux
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func Add(c Collection, r Record) Operation {
	return Operation{Kind: OpAdd, Collection: c, Record: r}
}

func AddMany(c Collection, rs []Record) Operation {
	return Operation{Kind: OpAddMany, Collection: c, Records: rs}
}

func Update(c Collection, r Record) Operation {
	return Operation{Kind: OpUpdate, Collection: c, Record: r}
}

func Delete(c Collection, id string) Operation {
	return Operation{Kind: OpDelete, Collection: c, ID: id}
}

func DeleteMany(c Collection, ids []string) Operation {
	return Operation{Kind: OpDeleteMany, Collection: c, IDs: ids}
}

func Replace(c Collection, rs []Record) Operation {
	return Operation{Kind: OpReplace, Collection: c, Records: rs}
}

// WithSaleAux attaches explicit auxiliary sale values to an update.
func (op Operation) WithSaleAux(aux SaleAux) Operation {
	op.SaleAux = &aux
	return op
}

// TargetIDs lists the ids an operation addresses, for audit logging.
func (op Operation) TargetIDs() []string {
	switch op.Kind {
	case OpAdd, OpUpdate:
		if op.Record != nil {
			return []string{op.Record.RecordID()}
		}
	case OpAddMany, OpReplace:
		ids := make([]string, 0, len(op.Records))
		for _, r := range op.Records {
			ids = append(ids, r.RecordID())
		}
		return ids
	case OpDelete:
		return []string{op.ID}
	case OpDeleteMany:
		return op.IDs
	}
	return nil
}
