package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/allocation"
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func usd(s string) engine.Money {
	return engine.MustMoney(engine.USD, s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleLoan(t *testing.T) *loan.Loan {
	t.Helper()
	terms := engine.LoanTerms{
		Currency:           engine.USD,
		Principal:          usd("192.22"),
		AnnualRatePercent:  decimal.RequireFromString("9.99"),
		DisbursementDate:   date(2024, time.January, 15),
		FirstPeriodStart:   date(2024, time.January, 1),
		NumberOfRepayments: 6,
		RepaymentUnit:      engine.RepayMonthly,
		RepayEvery:         1,
		DaysInMonth:        engine.DaysInMonthActual,
		DaysInYear:         engine.DaysInYearActual,
		PreClosureStrategy: engine.TillPreClosureDate,
	}
	gen := engine.NewScheduleGenerator(engine.DefaultMathContext)
	schedule, err := gen.Generate(terms, nil)
	require.NoError(t, err)

	return &loan.Loan{
		ID:       "loan-1",
		Terms:    terms,
		Strategy: allocation.StrategyAdvanced,
		PaymentRules: []allocation.PaymentAllocationRule{{
			TransactionType:       allocation.TxDefault,
			FutureInstallmentRule: allocation.NextInstallment,
			Order:                 allocation.PaymentAllocationTypes,
		}},
		CreditRules: []allocation.CreditAllocationRule{{
			TransactionType: allocation.TxChargeback,
			Order:           allocation.CreditAllocationTypes,
		}},
		Schedule:  schedule,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// =============================================================================
// LOAN ROUND-TRIP
// =============================================================================

func TestStore_CreateAndLoadLoan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := sampleLoan(t)
	require.NoError(t, store.CreateLoan(ctx, created))

	loaded, err := store.Loan(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, created.Strategy, loaded.Strategy)
	assert.Equal(t, "192.22", loaded.Terms.Principal.Amount().StringFixed(2))
	assert.Equal(t, "32.85", loaded.Schedule.EMI.Amount().StringFixed(2))
	require.Len(t, loaded.Schedule.Installments, 6)
	require.Len(t, loaded.PaymentRules, 1)
	assert.Len(t, loaded.PaymentRules[0].Order, 12)
	require.Len(t, loaded.CreditRules, 1)

	// Installments come back with exact amounts and dates.
	first := loaded.Schedule.Installments[0]
	assert.Equal(t, 1, first.Number)
	assert.True(t, first.From.Equal(date(2024, time.January, 1)))
	assert.Equal(t, "31.97", first.DueAmount(engine.ComponentPrincipal).Amount().StringFixed(2))
	assert.Equal(t, "0.88", first.DueAmount(engine.ComponentInterest).Amount().StringFixed(2))
}

func TestStore_LoanNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Loan(context.Background(), "missing")
	assert.ErrorIs(t, err, loan.ErrLoanNotFound)
}

func TestStore_ListLoans(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := sampleLoan(t)
	b := sampleLoan(t)
	b.ID = "loan-2"
	require.NoError(t, store.CreateLoan(ctx, a))
	require.NoError(t, store.CreateLoan(ctx, b))

	loans, err := store.ListLoans(ctx)
	require.NoError(t, err)
	assert.Len(t, loans, 2)
}

// =============================================================================
// LEDGER UPDATES
// =============================================================================

func TestStore_UpdateInstallments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	l := sampleLoan(t)
	require.NoError(t, store.CreateLoan(ctx, l))

	ledger := l.Installments()
	ledger[0], _ = ledger[0].Pay(engine.ComponentInterest, usd("0.88"))
	ledger[0], _ = ledger[0].Pay(engine.ComponentPrincipal, usd("31.97"))
	require.NoError(t, store.UpdateInstallments(ctx, l.ID, ledger))

	loaded, err := store.Loan(ctx, l.ID)
	require.NoError(t, err)
	first := loaded.Schedule.Installments[0]
	assert.True(t, first.ObligationsMet)
	assert.Equal(t, "31.97", first.PaidAmount(engine.ComponentPrincipal).Amount().StringFixed(2))
}

// =============================================================================
// TRANSACTION HISTORY
// =============================================================================

func TestStore_AppendAndMarkReversed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	l := sampleLoan(t)
	require.NoError(t, store.CreateLoan(ctx, l))

	tx := loan.Transaction{
		ID:     "tx-1",
		Kind:   loan.KindPayment,
		Type:   allocation.TxRepayment,
		Date:   date(2024, time.February, 1),
		Amount: usd("32.85"),
		Deltas: []allocation.ComponentDelta{
			{InstallmentNumber: 1, Component: engine.ComponentPrincipal, Amount: usd("31.97")},
			{InstallmentNumber: 1, Component: engine.ComponentInterest, Amount: usd("0.88")},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.AppendTransaction(ctx, l.ID, tx))

	loaded, err := store.Loan(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Transactions, 1)
	got := loaded.Transactions[0]
	assert.Equal(t, "32.85", got.Amount.Amount().StringFixed(2))
	require.Len(t, got.Deltas, 2)
	assert.Equal(t, engine.ComponentPrincipal, got.Deltas[0].Component)
	assert.False(t, got.Reversed)

	require.NoError(t, store.MarkReversed(ctx, l.ID, tx.ID))
	loaded, err = store.Loan(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Transactions[0].Reversed)
}

func TestStore_MarkReversed_UnknownTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	l := sampleLoan(t)
	require.NoError(t, store.CreateLoan(ctx, l))

	err := store.MarkReversed(ctx, l.ID, "missing")
	assert.ErrorIs(t, err, loan.ErrTransactionNotFound)
}

func TestStore_CorruptDateRejectedOnLoad(t *testing.T) {
	// An unparseable date column must surface as a load error, not as a
	// silent zero time in the rehydrated schedule.
	path := filepath.Join(t.TempDir(), "loans.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	l := sampleLoan(t)
	require.NoError(t, store.CreateLoan(ctx, l))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`UPDATE loans SET disbursement_date = 'not-a-date' WHERE id = ?`, string(l.ID))
	require.NoError(t, err)

	_, err = store.Loan(ctx, l.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disbursement date")

	_, err = db.Exec(`UPDATE loans SET disbursement_date = '2024-01-15' WHERE id = ?`, string(l.ID))
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE installments SET due_date = 'garbage' WHERE loan_id = ? AND number = 1`, string(l.ID))
	require.NoError(t, err)

	_, err = store.Loan(ctx, l.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "due date")
}

// =============================================================================
// SERVICE OVER SQLITE
// =============================================================================

func TestService_FullLifecycleOverSQLite(t *testing.T) {
	store := newTestStore(t)
	svc := loan.NewService(store, engine.DefaultMathContext, nil)
	ctx := context.Background()

	order := make([]allocation.RawAllocationOrder, len(allocation.PaymentAllocationTypes))
	for i, at := range allocation.PaymentAllocationTypes {
		order[i] = allocation.RawAllocationOrder{Order: i + 1, AllocationType: string(at)}
	}
	l, err := svc.CreateLoan(ctx, sampleLoan(t).Terms, allocation.StrategyAdvanced,
		[]allocation.RawPaymentAllocationRule{{
			TransactionType:       "DEFAULT",
			FutureInstallmentRule: "NEXT_INSTALLMENT",
			AllocationOrder:       order,
		}}, nil, nil)
	require.NoError(t, err)

	_, tx, err := svc.PostPayment(ctx, l.ID, allocation.TxRepayment,
		date(2024, time.February, 1), usd("32.85"))
	require.NoError(t, err)

	updated, err := svc.ReverseTransaction(ctx, l.ID, tx.ID)
	require.NoError(t, err)
	assert.False(t, updated.Schedule.Installments[0].ObligationsMet)

	quote, err := svc.PayoffQuote(ctx, l.ID, date(2024, time.January, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, "192.22", quote.Total().Amount().StringFixed(2))
}
