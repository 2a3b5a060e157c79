/*
errors.go - Error and warning types for the derivation engine

PURPOSE:
  Two channels:
  1. Errors - a record has a shape outside the data contract
     (MalformedRelationError). Callers catch these per record.
  2. Warnings - a value is dirty but the derivation can still degrade to a
     usable number (negative payment, unparseable date). Reported in a
     Warnings slice on the result, never returned as error.

USAGE:
  res, err := engine.Resolve(raw)
  if errors.Is(err, engine.ErrMalformedRelation) {
      // show "unavailable" for this row, keep rendering the rest
  }

SEE ALSO:
  - relation.go: Returns MalformedRelationError
  - ledger.go: Emits warnings
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedRelation is returned when a relation field is not an id
	// string, an object with an id, or an array of those.
	ErrMalformedRelation = errors.New("malformed relation")

	// ErrUnresolvedRelation is returned by Join when the relation carries an
	// id that the side-loaded index does not contain.
	ErrUnresolvedRelation = errors.New("unresolved relation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MalformedRelationError describes the offending value's shape.
type MalformedRelationError struct {
	Shape string
	Value any
}

func (e *MalformedRelationError) Error() string {
	return fmt.Sprintf("malformed relation: unexpected %s (%v)", e.Shape, e.Value)
}

func (e *MalformedRelationError) Unwrap() error {
	return ErrMalformedRelation
}

// UnresolvedRelationError names the id that could not be joined.
type UnresolvedRelationError struct {
	ID string
}

func (e *UnresolvedRelationError) Error() string {
	return fmt.Sprintf("unresolved relation: no record with id %q", e.ID)
}

func (e *UnresolvedRelationError) Unwrap() error {
	return ErrUnresolvedRelation
}

// =============================================================================
// WARNINGS - Non-fatal data-quality reports
// =============================================================================

type WarningCode string

const (
	WarnNegativeAmount    WarningCode = "negative_amount"
	WarnNonNumericAmount  WarningCode = "non_numeric_amount"
	WarnInvalidPrice      WarningCode = "invalid_price"
	WarnNegativePrice     WarningCode = "negative_price"
	WarnMalformedRelation WarningCode = "malformed_relation"
	WarnUnparseableDate   WarningCode = "unparseable_date"
)

// Warning is attached to a derived result when an input record contributed a
// degraded value (usually zero) instead of its own.
type Warning struct {
	Code     WarningCode `json:"code"`
	RecordID string      `json:"record_id"`
	Detail   string      `json:"detail"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s [%s]: %s", w.Code, w.RecordID, w.Detail)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDataContractError returns true if the error comes from a record whose
// shape violates the data contract. These are per-record, not fatal.
func IsDataContractError(err error) bool {
	return errors.Is(err, ErrMalformedRelation) || errors.Is(err, ErrUnresolvedRelation)
}
