/*
Package books orchestrates the ledger core for a running application.

PURPOSE:
  The ledger package is pure: (store, op) -> store. This package owns the
  "current" snapshot, serializes mutations, persists the whole document
  after each successful one, and keeps an audit trail of applied operations.

WRITER CONTRACT:
  The system assumes a single logical writer. Apply takes the write lock,
  runs the reducer on the current snapshot, persists the result, and only
  then swaps it in - copy-on-write, so readers holding the previous
  snapshot are never disturbed and no caller ever observes a
  partially-applied mutation.

PERSISTENCE:
  A failed save fails the mutation and keeps the old snapshot. A failed
  audit append is logged and ignored: the audit trail is an operational
  record, not part of the state machine.

SEE ALSO:
  - store/sqlite: the production SnapshotStore/AuditLog
  - memory.go: in-memory implementations for tests
*/
package books

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// PERSISTENCE INTERFACES
// =============================================================================

// SnapshotStore persists the whole document. Implementations replace the
// previous snapshot; history lives in the audit log, not here.
type SnapshotStore interface {
	// Save replaces the persisted document.
	Save(ctx context.Context, data []byte) error

	// Load returns the persisted document, or found=false when none exists.
	Load(ctx context.Context) (data []byte, found bool, err error)
}

// AuditEntry records one applied operation.
type AuditEntry struct {
	ID         string            `json:"id"`
	At         time.Time         `json:"at"`
	Op         ledger.OpKind     `json:"op"`
	Collection ledger.Collection `json:"collection"`
	TargetIDs  []string          `json:"targetIds"`
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the single logical writer over the ledger.
type Service struct {
	mu      sync.RWMutex
	current ledger.Store
	extra   map[string][]byte // unrelated document collections, preserved

	reducer   *ledger.Reducer
	snapshots SnapshotStore
	audit     AuditLog
}

// New loads the persisted document (or starts from the default one) and
// returns a ready service.
func New(ctx context.Context, snapshots SnapshotStore, audit AuditLog) (*Service, error) {
	svc := &Service{
		reducer:   ledger.NewReducer(),
		snapshots: snapshots,
		audit:     audit,
		extra:     make(map[string][]byte),
	}

	data, found, err := snapshots.Load(ctx)
	if err != nil {
		return nil, err
	}
	doc := ledger.DefaultDocument()
	if found {
		loaded, err := ledger.LoadDocument(data)
		if err != nil {
			// Corrupt persisted data falls back to the default document
			// rather than blocking startup.
			log.Printf("books: persisted document unreadable, starting from defaults: %v", err)
		} else {
			doc = loaded
		}
	}
	svc.current = doc.Store()
	for k, v := range doc.Extra {
		svc.extra[k] = v
	}
	return svc, nil
}

// Snapshot returns the current store. The returned value is an immutable
// snapshot by contract: callers must only feed it to the read-only
// calculators, never edit its slices.
func (s *Service) Snapshot() ledger.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Apply runs one operation through the reducer, persists the new document,
// and swaps it in. On any error the current snapshot is unchanged.
func (s *Service) Apply(ctx context.Context, op ledger.Operation) (ledger.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.reducer.Apply(s.current, op)
	if err != nil {
		return ledger.Store{}, err
	}

	doc := ledger.SnapshotOf(next)
	if len(s.extra) > 0 {
		doc.Extra = make(map[string]json.RawMessage, len(s.extra))
		for k, v := range s.extra {
			doc.Extra[k] = v
		}
	}
	data, err := ledger.SaveDocument(doc)
	if err != nil {
		return ledger.Store{}, err
	}
	if err := s.snapshots.Save(ctx, data); err != nil {
		return ledger.Store{}, err
	}

	s.current = next

	if s.audit != nil {
		entry := AuditEntry{
			ID:         uuid.NewString(),
			At:         time.Now().UTC(),
			Op:         op.Kind,
			Collection: op.Collection,
			TargetIDs:  op.TargetIDs(),
		}
		if err := s.audit.Append(ctx, entry); err != nil {
			log.Printf("books: audit append failed: %v", err)
		}
	}
	return next, nil
}

// RecentAudit returns the newest audit entries, newest first.
func (s *Service) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.Recent(ctx, limit)
}
