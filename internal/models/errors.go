package models

import "fmt"

// ValidationError is a structural or coherence violation detected before any write.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// UniqueMonthlyDeliveryError means the beneficiary already received the
// product within the delivery window.
type UniqueMonthlyDeliveryError struct {
	Msg string
}

func (e *UniqueMonthlyDeliveryError) Error() string { return e.Msg }

// StockError means there is not enough stock to deliver one unit.
type StockError struct {
	Msg string
}

func (e *StockError) Error() string { return e.Msg }

// ConstraintError wraps a persistent unique constraint violation.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s violated", e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return e.Err }
