/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (books service, api) classify with the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - bad payloads, unknown collections, negative amounts
  2. Not-found errors - update/delete referencing a missing id
  3. Consistency violations - contradictory linked records. These cannot
     happen by construction; if one surfaces it is a reducer defect, not a
     recoverable runtime condition.

SEE ALSO:
  - reducer.go: the only producer of these errors
  - api/handlers.go: maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownCollection is returned when an operation addresses a
	// collection name the store does not hold.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrNotFound is returned when an update/delete references an id that
	// does not exist. The reducer never silently no-ops a mutation.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidRecord is returned when a payload fails validation
	// (wrong type for the collection, missing required field, negative
	// amount where disallowed).
	ErrInvalidRecord = errors.New("invalid record")

	// ErrConsistency marks a detected contradiction between linked records.
	// By contract this is a defect in the reducer itself.
	ErrConsistency = errors.New("consistency violation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Collection Collection
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no record with id %q", e.Collection, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError describes why a payload was rejected.
type ValidationError struct {
	Collection Collection
	Field      string
	Message    string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Collection, e.Message)
	}
	return fmt.Sprintf("%s: field %s: %s", e.Collection, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRecord }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrUnknownCollection)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
