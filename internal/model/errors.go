package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrValidation               = errors.New("validation failed")
	ErrStaleState               = errors.New("entity changed since last viewed")
	ErrInsufficientTransactions = errors.New("insufficient transactions to settle payout")
	ErrConflictRetryExhausted   = errors.New("update failed, retry")
	ErrPartialSettlement        = errors.New("partial settlement")
	ErrSettlementConflict       = errors.New("transactions held by another payout")
)

// ValidationError is returned when caller input violates a precondition.
// It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StaleStateError means the status the admin saw is no longer current.
type StaleStateError struct {
	Entity   string
	ID       string
	Expected string
	Actual   string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("%s %s changed since last viewed (expected status %q, found %q), refresh and retry",
		e.Entity, e.ID, e.Expected, e.Actual)
}

func (e *StaleStateError) Unwrap() error { return ErrStaleState }

type InsufficientTransactionsError struct {
	PayoutID  string
	Requested string
	Available string
	Reason    string
}

func (e *InsufficientTransactionsError) Error() string {
	msg := fmt.Sprintf("payout %s: cannot cover %s with confirmed transactions (selected %s)",
		e.PayoutID, e.Requested, e.Available)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InsufficientTransactionsError) Unwrap() error { return ErrInsufficientTransactions }

type ConflictRetryExhaustedError struct {
	Operation string
	Err       error
}

func (e *ConflictRetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: update failed after concurrent modifications, retry: %v", e.Operation, e.Err)
}

func (e *ConflictRetryExhaustedError) Unwrap() []error { return []error{ErrConflictRetryExhausted, e.Err} }

// PartialSettlementError reports that the payout and wallet write committed
// but the follow-up transaction batch did not.
type PartialSettlementError struct {
	PayoutID       string
	Action         SettlementAction
	TransactionIDs []string
	Enqueued       bool
	Err            error
}

func (e *PartialSettlementError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "payout %s updated but %d transactions failed to sync", e.PayoutID, len(e.TransactionIDs))
	if e.Enqueued {
		b.WriteString(" (reconciliation scheduled)")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *PartialSettlementError) Unwrap() []error { return []error{ErrPartialSettlement, e.Err} }
