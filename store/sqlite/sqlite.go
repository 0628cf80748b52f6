/*
Package sqlite persists the ledger document and the audit trail.

PURPOSE:
  Implements books.SnapshotStore and books.AuditLog using SQLite. The
  engine itself is in-memory; this store only holds the latest
  whole-document snapshot (written after every mutation) and the
  append-only audit log.

KEY TABLES:
  snapshot:   single row holding the latest JSON document
  audit_log:  immutable record of applied operations

APPEND-ONLY ENFORCEMENT:
  The audit_log is append-only:
  - No UPDATE statements on audit_log
  - No DELETE statements on audit_log

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

CONCURRENCY:
  Uses sync.Mutex to serialize writes. The books service already
  guarantees a single logical writer; the mutex keeps this store safe
  on its own as well.

USAGE:
  store, err := sqlite.New("./data/books.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc, err := books.New(ctx, store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - books/service.go: Interface definitions
  - books/memory.go: In-memory counterpart used in tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/ledger-engine/books"
	"github.com/warp/ledger-engine/ledger"
)

// Store implements books.SnapshotStore and books.AuditLog on SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		doc TEXT NOT NULL,
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		op TEXT NOT NULL,
		collection TEXT NOT NULL,
		target_ids TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_at ON audit_log(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

// Save replaces the persisted document.
func (s *Store) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshot (id, doc, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, saved_at = excluded.saved_at
	`, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load returns the persisted document, or found=false when none exists.
func (s *Store) Load(ctx context.Context) ([]byte, bool, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM snapshot WHERE id = 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return []byte(doc), true, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// Append writes one audit entry.
func (s *Store) Append(ctx context.Context, entry books.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets, err := json.Marshal(entry.TargetIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal target ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, op, collection, target_ids)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID,
		entry.At.UTC().Format(time.RFC3339Nano),
		string(entry.Op),
		string(entry.Collection),
		string(targets))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]books.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, op, collection, target_ids
		FROM audit_log ORDER BY at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []books.AuditEntry
	for rows.Next() {
		var entry books.AuditEntry
		var at, op, collection, targets string
		if err := rows.Scan(&entry.ID, &at, &op, &collection, &targets); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audit timestamp: %w", err)
		}
		entry.Op = ledger.OpKind(op)
		entry.Collection = ledger.Collection(collection)
		if err := json.Unmarshal([]byte(targets), &entry.TargetIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal target ids: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
