/*
snapshot.go - The persisted document

PURPOSE:
  The whole store persists as a single JSON document with one top-level
  array per collection. On load the raw document is deep-merged against the
  default document, so snapshots written by older versions gain newly
  introduced fields sanely instead of crashing the application.

MERGE SEMANTICS (structural):
  - objects merge key by key, recursively
  - arrays and primitives are replaced wholesale by the stored value

UNRELATED COLLECTIONS:
  Documents may carry collections outside this core (contacts, products,
  settings). They are preserved verbatim across load/save so this engine
  can share a document with the rest of the application.

SEE ALSO:
  - store/sqlite: where the document bytes actually live
*/
package ledger

import "encoding/json"

// Document is the JSON-serializable form of a Store.
type Document struct {
	Accounts    []Account               `json:"accounts"`
	Movements   []LedgerEntry           `json:"movements"`
	Sales       []SaleRecord            `json:"sales"`
	Investments []InvestmentTransaction `json:"partnerInvestments"`
	Seq         int64                   `json:"seq"`

	// Extra holds top-level collections outside this core's scope,
	// preserved verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownKeys = map[string]bool{
	"accounts":           true,
	"movements":          true,
	"sales":              true,
	"partnerInvestments": true,
	"seq":                true,
}

// DefaultDocument is the empty document every load merges against.
func DefaultDocument() Document {
	return Document{
		Accounts:    []Account{},
		Movements:   []LedgerEntry{},
		Sales:       []SaleRecord{},
		Investments: []InvestmentTransaction{},
	}
}

// SnapshotOf captures a store as a document.
func SnapshotOf(s Store) Document {
	return Document{
		Accounts:    s.Accounts,
		Movements:   s.Movements,
		Sales:       s.Sales,
		Investments: s.Investments,
		Seq:         s.Seq,
	}
}

// Store materializes the document's collections.
func (d Document) Store() Store {
	return Store{
		Accounts:    d.Accounts,
		Movements:   d.Movements,
		Sales:       d.Sales,
		Investments: d.Investments,
		Seq:         d.Seq,
	}
}

// LoadDocument parses and deep-merges a stored document against the
// default document.
func LoadDocument(data []byte) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, err
	}

	var defaults map[string]any
	defBytes, err := json.Marshal(DefaultDocument())
	if err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(defBytes, &defaults); err != nil {
		return Document{}, err
	}

	merged := deepMerge(defaults, raw)

	mergedBytes, err := json.Marshal(merged)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(mergedBytes, &doc); err != nil {
		return Document{}, err
	}

	// Preserve collections outside this core.
	for k, v := range merged {
		if knownKeys[k] {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return Document{}, err
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]json.RawMessage)
		}
		doc.Extra[k] = b
	}
	return doc, nil
}

// SaveDocument serializes a document, re-emitting preserved extra
// collections alongside the core ones.
func SaveDocument(d Document) ([]byte, error) {
	coreBytes, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return coreBytes, nil
	}

	var out map[string]any
	if err := json.Unmarshal(coreBytes, &out); err != nil {
		return nil, err
	}
	for k, raw := range d.Extra {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// deepMerge merges stored over defaults: objects recursively, arrays and
// primitives replaced wholesale by the stored value.
func deepMerge(defaults, stored map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(stored))
	for k, v := range defaults {
		out[k] = v
	}
	for k, sv := range stored {
		if dv, ok := out[k]; ok {
			dm, dIsMap := dv.(map[string]any)
			sm, sIsMap := sv.(map[string]any)
			if dIsMap && sIsMap {
				out[k] = deepMerge(dm, sm)
				continue
			}
		}
		out[k] = sv
	}
	return out
}
