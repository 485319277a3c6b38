/*
errors.go - Centralized error types for the accounting engine

PURPOSE:
  All domain error kinds in one place. Callers at the transport boundary
  map these to caller-facing failure responses; storage failures are NOT
  domain errors and propagate wrapped with %w instead.

ERROR CATEGORIES:
  1. Validation errors  - malformed or missing input
  2. Invalid operations - a domain rule was violated
  3. Insufficient funds - withdrawal exceeds total banked (a specialization
     of invalid operation; carries the available amount)
  4. Not found          - lookup by id/key failed

USAGE:
  if errors.Is(err, fueleu.ErrInvalidOperation) { ... }

  var ife *fueleu.InsufficientFundsError
  if errors.As(err, &ife) {
      // ife.Available holds the banked total
  }
*/
package fueleu

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or missing required input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidOperation is returned when a domain rule is violated given
	// otherwise well-formed input (bank from non-positive CB, apply to
	// positive CB, negative pool sum, fairness violation).
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInsufficientFunds is returned when a withdrawal amount exceeds the
	// ship's total banked balance.
	ErrInsufficientFunds = errors.New("insufficient banked surplus")

	// ErrRouteNotFound is returned when a route lookup by id fails.
	ErrRouteNotFound = errors.New("route not found")

	// ErrPoolNotFound is returned when a pool lookup by id fails.
	ErrPoolNotFound = errors.New("pool not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError identifies which input field violated which constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidOperationError identifies which rule was violated and, where
// applicable, which ship triggered it.
type InvalidOperationError struct {
	Rule   string
	ShipID ShipID
}

func (e *InvalidOperationError) Error() string {
	if e.ShipID != "" {
		return fmt.Sprintf("%s (ship %s)", e.Rule, e.ShipID)
	}
	return e.Rule
}

func (e *InvalidOperationError) Unwrap() error { return ErrInvalidOperation }

// InsufficientFundsError reports a withdrawal exceeding the banked total.
// The message always includes the available amount.
type InsufficientFundsError struct {
	ShipID    ShipID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient banked surplus for ship %s: available %s, requested %s",
		e.ShipID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// Is makes the specialization explicit: an insufficient-funds failure is
// also an invalid operation.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds || target == ErrInvalidOperation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input or
// a violated domain rule, i.e. the caller can fix the request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidOperation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRouteNotFound) ||
		errors.Is(err, ErrPoolNotFound)
}
