/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Boundary layers (api, store) wrap these with additional context.

ERROR CATEGORIES:
  1. Validation errors - malformed or out-of-range input
  2. Not-found errors - missing customer, record, or item
  3. Normalization errors - uninterpretable date or amount
  4. Conflict errors - optimistic-lock version mismatch, rejected overpay

PROPAGATION POLICY:
  Validation errors are raised before any state is mutated, so a failed
  operation never leaves a half-updated record list. Nothing here is fatal
  to the process; every failure is scoped to a single operation.

USAGE:
  if errors.Is(err, ledger.ErrValidation) { ... }

  var ve *ledger.ValidationError
  if errors.As(err, &ve) { log.Println(ve.Field) }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input-validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the root of all missing-reference failures.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDate is returned when no interpretation of a date input
	// yields a valid date. Callers with an optional date fall back to now.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidAmount is returned when an amount input is not a finite,
	// non-negative number.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrExcessPayment is returned under OverflowReject when a payment
	// exceeds everything it could settle.
	ErrExcessPayment = errors.New("payment exceeds outstanding dues")

	// ErrVersionConflict is returned by stores when a save carries a stale
	// document version (concurrent modification).
	ErrVersionConflict = errors.New("version conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing reference.
type NotFoundError struct {
	Kind string // "customer", "record", "item", "user"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidDateError carries the uninterpretable input.
type InvalidDateError struct {
	Input any
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date: %v (%T)", e.Input, e.Input)
}

func (e *InvalidDateError) Unwrap() error { return ErrInvalidDate }

// InvalidAmountError carries the uninterpretable input.
type InvalidAmountError struct {
	Input  any
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %v: %s", e.Input, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// ExcessPaymentError reports how much of a payment had nowhere to go.
type ExcessPaymentError struct {
	Excess      decimal.Decimal // amount that could not be applied
	Outstanding decimal.Decimal // total dues that were available to settle
}

func (e *ExcessPaymentError) Error() string {
	return fmt.Sprintf("payment exceeds outstanding dues by %s (outstanding: %s)",
		e.Excess, e.Outstanding)
}

func (e *ExcessPaymentError) Unwrap() error { return ErrExcessPayment }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrExcessPayment)
}

// IsNotFound returns true if the error indicates a missing reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error might succeed after a re-read.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
