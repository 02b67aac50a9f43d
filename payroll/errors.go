/*
errors.go - Centralized error taxonomy for the payroll core

PURPOSE:
  All error types in one place for consistency and discoverability.

ERROR CATEGORIES:
  1. Configuration errors - unknown frequency/jurisdiction codes
  2. Validation errors    - malformed or missing caller input
  3. Invalid state errors - transition guards that did not hold
  4. Not-found errors     - unknown batch id or wrong tenant scope

PROPAGATION POLICY:
  Configuration and validation errors surface immediately with the
  failing input named. State-machine errors never partially mutate the
  record: the read-guard-write sequence is all-or-nothing, and every
  rejected transition names the precondition that was required.

USAGE:
  if errors.Is(err, payroll.ErrInvalidState) {
      // 409 Conflict: caller may retry, resubmit, or escalate
  }
*/
package payroll

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBatchNotFound is returned when a batch id is unknown or outside
	// the caller's tenant scope.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrSnapshotNotFound is returned when no snapshot exists for the
	// requested (company, month, year).
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrInvalidState is returned when a transition's guard does not hold.
	ErrInvalidState = errors.New("invalid state for transition")

	// ErrStaleState is returned by stores when a compare-and-set update
	// finds the stored status no longer matches the expected one.
	ErrStaleState = errors.New("stored state changed concurrently")

	// ErrDuplicateBatch is returned when a batch already exists for the
	// company and period.
	ErrDuplicateBatch = errors.New("batch already exists for period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidStateError names the precondition a rejected transition required,
// so the caller can decide whether to retry, resubmit, or escalate.
type InvalidStateError struct {
	Action   string
	Required string
	Found    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s requires %s, found %s", e.Action, e.Required, e.Found)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ValidationError names the failing input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict returns true if the error reflects a guard or concurrency
// failure that left the record unchanged.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStaleState) ||
		errors.Is(err, ErrDuplicateBatch)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBatchNotFound) || errors.Is(err, ErrSnapshotNotFound)
}
