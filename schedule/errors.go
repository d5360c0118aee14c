/*
errors.go - Centralized error types for the scheduling engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The planner, reconcile and flyer packages wrap these with context.

ERROR CATEGORIES:
  1. Staging errors - Local validation, no network involved
  2. Submission errors - Bulk-write and reconciliation failures
  3. Flyer errors - Upload state machine violations

USAGE:
  if errors.Is(err, schedule.ErrSubmitInFlight) {
      // a bulk insert is already running; do not start another
  }
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNothingSelected is returned when submit is attempted with zero
	// selected rows. No network call is made.
	ErrNothingSelected = errors.New("no rows selected")

	// ErrSubmitInFlight is returned when a second submit is attempted
	// while a bulk insert is still running.
	ErrSubmitInFlight = errors.New("a submission is already in flight")

	// ErrRowNotFound is returned when a LocalID does not resolve to a
	// staged row.
	ErrRowNotFound = errors.New("staged row not found")

	// ErrNotReconciled is returned when an operation requires a server
	// identity the row does not have yet.
	ErrNotReconciled = errors.New("row has no server id yet")

	// ErrAlreadyReconciled guards the at-most-one-ServerID invariant.
	ErrAlreadyReconciled = errors.New("row already has a server id")

	// ErrInvalidTransition is returned for flyer-state moves that are not
	// in the transition table.
	ErrInvalidTransition = errors.New("invalid flyer state transition")

	// ErrBatchNotFound is returned when a staging batch id is unknown.
	ErrBatchNotFound = errors.New("staging batch not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RowValidationError reports a local, per-row validation failure.
type RowValidationError struct {
	LocalID LocalID
	Field   string
	Message string
}

func (e *RowValidationError) Error() string {
	return fmt.Sprintf("row %s: %s: %s", e.LocalID, e.Field, e.Message)
}

// ShortfallError reports that a composite-key bucket emptied before a
// staged row's turn during reconciliation. Only the named row is affected;
// mappings already made stay valid.
type ShortfallError struct {
	LocalID LocalID
	Key     CompositeKey
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("row %s: no persisted row left for key %s/%s-%s @ %s",
		e.LocalID, e.Key.Date, e.Key.StartTime, e.Key.EndTime, e.Key.Place)
}

// TransitionError reports a rejected flyer-state transition.
type TransitionError struct {
	LocalID LocalID
	From    FlyerState
	Event   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("row %s: cannot apply %q in state %s", e.LocalID, e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// rather than a backend failure.
func IsClientError(err error) bool {
	var rv *RowValidationError
	return errors.Is(err, ErrNothingSelected) ||
		errors.Is(err, ErrRowNotFound) ||
		errors.Is(err, ErrNotReconciled) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.As(err, &rv)
}
