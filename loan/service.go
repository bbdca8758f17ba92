/*
service.go - Loan lifecycle orchestration

PURPOSE:
  Sequences the pure engine over persisted state: create (generate and
  store a schedule), post (apply a transaction to the ledger), reverse
  (append compensating deltas), quote (compute a payoff figure).

CONCURRENCY:
  The engine's installment ledger is not safe for concurrent mutation, so
  postings against the same loan are serialized here with a per-loan lock.
  Operations on different loans run fully in parallel.
*/
package loan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/loan-engine/allocation"
	"github.com/warp/loan-engine/engine"
)

// Service orchestrates loans. All fields are required.
type Service struct {
	Store     Store
	Generator engine.ScheduleGenerator
	Processor allocation.Processor
	Prepay    engine.PrepaymentCalculator
	Log       *zap.Logger

	locks sync.Map // ID -> *sync.Mutex
}

// NewService wires a service around a store with the given math context.
func NewService(store Store, mc engine.MathContext, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		Store:     store,
		Generator: engine.NewScheduleGenerator(mc),
		Processor: allocation.Processor{MC: mc},
		Prepay:    engine.PrepaymentCalculator{Calc: engine.EMICalculator{MC: mc}},
		Log:       log,
	}
}

func (s *Service) lock(id ID) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateLoan validates the rule configuration, generates the schedule and
// persists the new loan.
func (s *Service) CreateLoan(
	ctx context.Context,
	terms engine.LoanTerms,
	strategy string,
	rawPayment []allocation.RawPaymentAllocationRule,
	rawCredit []allocation.RawCreditAllocationRule,
	holidays []engine.Holiday,
) (*Loan, error) {
	paymentRules, err := allocation.ParsePaymentAllocationRules(rawPayment, strategy)
	if err != nil {
		return nil, err
	}
	creditRules, err := allocation.ParseCreditAllocationRules(rawCredit, strategy)
	if err != nil {
		return nil, err
	}

	schedule, err := s.Generator.Generate(terms, holidays)
	if err != nil {
		return nil, err
	}

	l := &Loan{
		ID:           ID(uuid.NewString()),
		Terms:        terms,
		Strategy:     strategy,
		PaymentRules: paymentRules,
		CreditRules:  creditRules,
		Schedule:     schedule,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Store.CreateLoan(ctx, l); err != nil {
		return nil, err
	}
	s.Log.Info("loan created",
		zap.String("loan_id", string(l.ID)),
		zap.String("principal", terms.Principal.String()),
		zap.Int("installments", len(schedule.Installments)),
	)
	return l, nil
}

// PostPayment applies a payment transaction to the loan's ledger under the
// configured allocation order and records the posting.
func (s *Service) PostPayment(ctx context.Context, id ID, txType allocation.TransactionType, date time.Time, amount engine.Money) (*Loan, Transaction, error) {
	defer s.lock(id)()

	l, err := s.Store.Loan(ctx, id)
	if err != nil {
		return nil, Transaction{}, err
	}

	result, err := s.Processor.ApplyPayment(l.PaymentRules, txType, date, amount, l.Installments())
	if err != nil {
		return nil, Transaction{}, err
	}

	tx := Transaction{
		ID:        uuid.NewString(),
		Kind:      KindPayment,
		Type:      txType,
		Date:      date,
		Amount:    amount,
		Deltas:    result.Deltas,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.persistPosting(ctx, l, result.Installments, tx); err != nil {
		return nil, Transaction{}, err
	}

	s.Log.Info("payment posted",
		zap.String("loan_id", string(id)),
		zap.String("tx_id", tx.ID),
		zap.String("amount", amount.String()),
		zap.String("unallocated", result.Unallocated.String()),
	)
	l.Schedule.Installments = result.Installments
	l.Transactions = append(l.Transactions, tx)
	return l, tx, nil
}

// PostChargeback re-opens paid obligations on the last installment per the
// credit allocation order.
func (s *Service) PostChargeback(ctx context.Context, id ID, date time.Time, amount engine.Money) (*Loan, Transaction, error) {
	defer s.lock(id)()

	l, err := s.Store.Loan(ctx, id)
	if err != nil {
		return nil, Transaction{}, err
	}

	result, err := s.Processor.ApplyChargeback(l.CreditRules, amount, l.Installments())
	if err != nil {
		return nil, Transaction{}, err
	}

	tx := Transaction{
		ID:        uuid.NewString(),
		Kind:      KindChargeback,
		Date:      date,
		Amount:    amount,
		Deltas:    result.Deltas,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.persistPosting(ctx, l, result.Installments, tx); err != nil {
		return nil, Transaction{}, err
	}

	s.Log.Info("chargeback posted",
		zap.String("loan_id", string(id)),
		zap.String("tx_id", tx.ID),
		zap.String("amount", amount.String()),
	)
	l.Schedule.Installments = result.Installments
	l.Transactions = append(l.Transactions, tx)
	return l, tx, nil
}

// ReverseTransaction appends the compensating mutations for a previously
// posted payment or chargeback. The original posting stays in the history,
// flagged as reversed. Reversal rows themselves cannot be reversed; undoing
// one means re-posting the original transaction.
func (s *Service) ReverseTransaction(ctx context.Context, id ID, txID string) (*Loan, error) {
	defer s.lock(id)()

	l, err := s.Store.Loan(ctx, id)
	if err != nil {
		return nil, err
	}
	orig, ok := l.TransactionByID(txID)
	if !ok {
		return nil, ErrTransactionNotFound
	}
	if orig.Reversed {
		return nil, ErrAlreadyReversed
	}

	// Payment deltas sit on the paid side, chargeback deltas on the due
	// side; each kind gets its matching compensation.
	var reversed []engine.Installment
	switch orig.Kind {
	case KindPayment:
		reversed = s.Processor.ReversePayment(orig.Deltas, l.Installments())
	case KindChargeback:
		reversed = s.Processor.ReverseChargeback(orig.Deltas, l.Installments())
	default:
		return nil, ErrNotReversible
	}

	tx := Transaction{
		ID:         uuid.NewString(),
		Kind:       KindReversal,
		Date:       orig.Date,
		Amount:     orig.Amount,
		ReversesID: orig.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.persistPosting(ctx, l, reversed, tx); err != nil {
		return nil, err
	}
	if err := s.Store.MarkReversed(ctx, id, orig.ID); err != nil {
		return nil, err
	}

	s.Log.Info("transaction reversed",
		zap.String("loan_id", string(id)),
		zap.String("tx_id", orig.ID),
	)
	l.Schedule.Installments = reversed
	l.Transactions = append(l.Transactions, tx)
	return l, nil
}

// PayoffQuote computes the amount due to close the loan on the given date.
func (s *Service) PayoffQuote(ctx context.Context, id ID, asOf time.Time, holidays []engine.Holiday) (engine.OutstandingAmounts, error) {
	l, err := s.Store.Loan(ctx, id)
	if err != nil {
		return engine.OutstandingAmounts{}, err
	}
	return s.Prepay.CalculatePrepaymentAmount(asOf, l.Terms, l.Installments(), holidays)
}

// Loan loads a loan by ID.
func (s *Service) Loan(ctx context.Context, id ID) (*Loan, error) {
	return s.Store.Loan(ctx, id)
}

// ListLoans lists all loans.
func (s *Service) ListLoans(ctx context.Context) ([]*Loan, error) {
	return s.Store.ListLoans(ctx)
}

func (s *Service) persistPosting(ctx context.Context, l *Loan, installments []engine.Installment, tx Transaction) error {
	if err := s.Store.UpdateInstallments(ctx, l.ID, installments); err != nil {
		return err
	}
	return s.Store.AppendTransaction(ctx, l.ID, tx)
}
