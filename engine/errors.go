/*
errors.go - Centralized error types for the loan engine

ERROR CATEGORIES:
  1. Arithmetic invariant violations - currency mismatch, unreconciled
     rounding residue. These are defects: fail fast, never truncate money.
  2. Precondition errors - missing loan or installment data supplied by
     collaborators. Propagated unchanged, never reinterpreted here.

Configuration validation errors live in the allocation package, which owns
rule parsing.
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	// ErrCurrencyMismatch is returned when two Money values of different
	// currencies meet in an arithmetic or comparison operation.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrNoInstallments is returned when a schedule or payoff computation
	// is asked to run over an empty ledger.
	ErrNoInstallments = errors.New("no installments")

	// ErrInvalidTerms is returned when LoanTerms fail basic sanity checks
	// (non-positive principal, zero repayments, negative rate).
	ErrInvalidTerms = errors.New("invalid loan terms")

	// ErrResidualNotReconciled signals that a generated schedule's principal
	// components do not sum back to the disbursed principal. This is an
	// internal invariant violation, not a user input problem.
	ErrResidualNotReconciled = errors.New("rounding residual not reconciled")
)

// =============================================================================
// STRUCTURED ERRORS - carry context
// =============================================================================

// CurrencyMismatchError reports which two currencies collided.
type CurrencyMismatchError struct {
	Left  Currency
	Right Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: %s vs %s", e.Left.Code, e.Right.Code)
}

func (e *CurrencyMismatchError) Unwrap() error { return ErrCurrencyMismatch }

// TermsError reports which field of LoanTerms failed validation.
type TermsError struct {
	Field  string
	Reason string
}

func (e *TermsError) Error() string {
	return fmt.Sprintf("invalid loan terms: %s %s", e.Field, e.Reason)
}

func (e *TermsError) Unwrap() error { return ErrInvalidTerms }
