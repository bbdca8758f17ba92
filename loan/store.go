package loan

import (
	"context"
	"errors"

	"github.com/warp/loan-engine/engine"
)

// ErrLoanNotFound is returned for an unknown loan ID. It propagates
// unchanged through the service; nothing reinterprets it.
var ErrLoanNotFound = errors.New("loan not found")

// ErrTransactionNotFound is returned when a referenced posting does not
// exist on the loan.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrAlreadyReversed rejects a second reversal of the same posting.
var ErrAlreadyReversed = errors.New("transaction already reversed")

// ErrNotReversible rejects reversal of a posting kind that has no
// compensating form, i.e. a reversal row itself.
var ErrNotReversible = errors.New("transaction kind is not reversible")

// Store is the persistence contract. Installment updates replace the
// ledger's current state; transactions are append-only.
type Store interface {
	// CreateLoan persists a new loan with its generated schedule.
	CreateLoan(ctx context.Context, l *Loan) error

	// Loan loads a loan with its full installment ledger and history.
	Loan(ctx context.Context, id ID) (*Loan, error)

	// ListLoans returns all loans, newest first.
	ListLoans(ctx context.Context) ([]*Loan, error)

	// UpdateInstallments replaces the loan's installment state after a
	// posting has been applied.
	UpdateInstallments(ctx context.Context, id ID, installments []engine.Installment) error

	// AppendTransaction records a posting. Append-only: reversals are new
	// rows referencing the original.
	AppendTransaction(ctx context.Context, id ID, tx Transaction) error

	// MarkReversed flags an original transaction as reversed.
	MarkReversed(ctx context.Context, id ID, txID string) error
}
