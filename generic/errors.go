/*
errors.go - Centralized error types for the booking engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input validation - malformed postal codes, clock times, task fields
  2. Resolution - syntactically valid input that no lookup table covers
  3. Data source - catalog or settings store unreachable

WHAT IS NOT AN ERROR:
  Business outcomes are typed results, not errors. An address outside the
  service radius, a GPS reading over the check-in threshold, a booking
  clamped to the minimum fee: all of these come back as values with a
  human-readable message so the UI can offer a manual override.

USAGE:
  if errors.Is(err, generic.ErrInvalidPostalCode) {
      // 400 to the caller
  }

SEE ALSO:
  - geo/geocode.go: Postal code errors
  - catalog/catalog.go: Task errors
  - api/handlers.go: HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPostalCode is returned when a code does not match A1A 1A1.
	ErrInvalidPostalCode = fmt.Errorf("%w: invalid postal code", ErrValidation)

	// ErrPostalCodeUnresolved is returned when a well-formed code is outside
	// every lookup table.
	ErrPostalCodeUnresolved = errors.New("unable to resolve postal code")

	// ErrInvalidClockTime is returned for time strings that are not HH:MM.
	ErrInvalidClockTime = fmt.Errorf("%w: invalid time, expected HH:MM", ErrValidation)

	// ErrInvalidDate is returned for date strings that are not YYYY-MM-DD.
	ErrInvalidDate = fmt.Errorf("%w: invalid date, expected YYYY-MM-DD", ErrValidation)

	// ErrInvalidTask is returned when a task definition breaks an invariant.
	ErrInvalidTask = fmt.Errorf("%w: invalid task", ErrValidation)

	// ErrTaskNotFound is returned when a referenced task id doesn't exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrRuleNotFound is returned when a referenced surge rule doesn't exist.
	ErrRuleNotFound = errors.New("surge rule not found")

	// ErrLocationUnavailable is returned when no GPS reading could be obtained.
	// Check-in is blocked, never silently approved.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrSourceUnavailable is returned when a backing store cannot be reached.
	ErrSourceUnavailable = errors.New("data source unavailable")

	// ErrReadOnlySource is returned when a write hits a source that only reads.
	ErrReadOnlySource = errors.New("data source is read-only")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError is a shorthand for &ValidationError{...}.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrPostalCodeUnresolved)
}
