// Package loan ties the pure engine to storage and transaction posting: it
// owns the Loan aggregate, the per-loan posting lifecycle, and the store
// contract the persistence layer implements. The engine computes; this
// package sequences.
package loan

import (
	"time"

	"github.com/warp/loan-engine/allocation"
	"github.com/warp/loan-engine/engine"
)

// ID uniquely identifies a loan. UUIDs are assigned by the service at
// creation.
type ID string

// TransactionKind distinguishes payment-side, credit-side and reversal
// postings in the loan's history.
type TransactionKind string

const (
	KindPayment    TransactionKind = "payment"
	KindChargeback TransactionKind = "chargeback"
	KindReversal   TransactionKind = "reversal"
)

// Transaction is one posted event against a loan: immutable once recorded.
// Reversals reference the original via ReversesID and append compensating
// deltas; nothing is ever edited or deleted.
type Transaction struct {
	ID         string
	Kind       TransactionKind
	Type       allocation.TransactionType
	Date       time.Time
	Amount     engine.Money
	Deltas     []allocation.ComponentDelta
	Reversed   bool
	ReversesID string
	CreatedAt  time.Time
}

// Loan is the aggregate the service operates on: immutable terms and rules,
// plus the mutable installment ledger and posting history.
type Loan struct {
	ID       ID
	Terms    engine.LoanTerms
	Strategy string

	PaymentRules []allocation.PaymentAllocationRule
	CreditRules  []allocation.CreditAllocationRule

	Schedule     engine.ScheduleModel
	Transactions []Transaction

	CreatedAt time.Time
}

// Installments returns the live ledger view.
func (l *Loan) Installments() []engine.Installment {
	return l.Schedule.Installments
}

// TransactionByID finds a posted transaction.
func (l *Loan) TransactionByID(txID string) (Transaction, bool) {
	for _, tx := range l.Transactions {
		if tx.ID == txID {
			return tx, true
		}
	}
	return Transaction{}, false
}
