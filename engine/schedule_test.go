package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/engine"
)

// =============================================================================
// REFERENCE SCHEDULE
// =============================================================================

func TestGenerate_ReferenceCase(t *testing.T) {
	// GIVEN: 192.22 at 9.99%/year, 6 monthly periods, disbursed 2024-01-15
	// WHEN: generating the schedule
	// THEN: the first and last periods match the reference amortization

	gen := engine.NewScheduleGenerator(engine.DefaultMathContext)
	model, err := gen.Generate(progressiveTerms(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(model.Installments) != 6 {
		t.Fatalf("expected 6 installments, got %d", len(model.Installments))
	}
	if model.EMI.Amount().StringFixed(2) != "32.85" {
		t.Errorf("expected EMI 32.85, got %s", model.EMI)
	}

	first := model.Installments[0]
	if got := first.DueAmount(engine.ComponentPrincipal).Amount().StringFixed(2); got != "31.97" {
		t.Errorf("period 1 principal: expected 31.97, got %s", got)
	}
	if got := first.DueAmount(engine.ComponentInterest).Amount().StringFixed(2); got != "0.88" {
		t.Errorf("period 1 interest: expected 0.88, got %s", got)
	}
	if got := first.TotalDue().Amount().StringFixed(2); got != "32.85" {
		t.Errorf("period 1 total: expected 32.85, got %s", got)
	}
	if got := model.ClosingBalance(0).Amount().StringFixed(2); got != "160.25" {
		t.Errorf("period 1 closing: expected 160.25, got %s", got)
	}

	last := model.Installments[5]
	if got := last.DueAmount(engine.ComponentPrincipal).Amount().StringFixed(2); got != "32.60" {
		t.Errorf("period 6 principal: expected 32.60, got %s", got)
	}
	if got := last.DueAmount(engine.ComponentInterest).Amount().StringFixed(2); got != "0.27" {
		t.Errorf("period 6 interest: expected 0.27, got %s", got)
	}
	if got := last.TotalDue().Amount().StringFixed(2); got != "32.87" {
		t.Errorf("period 6 total: expected 32.87, got %s", got)
	}
	if !model.ClosingBalance(5).IsZero() {
		t.Errorf("period 6 closing: expected 0.00, got %s", model.ClosingBalance(5))
	}
}

// =============================================================================
// CONSERVATION AND CONTINUITY
// =============================================================================

func TestGenerate_PrincipalConservation(t *testing.T) {
	gen := engine.NewScheduleGenerator(engine.DefaultMathContext)

	cases := []struct {
		name      string
		principal string
		rate      string
		n         int
	}{
		{"reference", "192.22", "9.99", 6},
		{"awkward cents", "1033.57", "12.75", 11},
		{"zero rate", "500.00", "0", 5},
		{"long term", "25000.00", "6.49", 48},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			terms := progressiveTerms()
			terms.Principal = usd(tc.principal)
			terms.AnnualRatePercent = decimal.RequireFromString(tc.rate)
			terms.NumberOfRepayments = tc.n

			model, err := gen.Generate(terms, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !model.TotalPrincipal().Amount().Equal(terms.Principal.Amount()) {
				t.Errorf("principal drift: sum %s != %s", model.TotalPrincipal(), terms.Principal)
			}
		})
	}
}

func TestGenerate_BalanceContinuity(t *testing.T) {
	gen := engine.NewScheduleGenerator(engine.DefaultMathContext)
	model, err := gen.Generate(progressiveTerms(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i < len(model.Installments); i++ {
		closing := model.ClosingBalance(i - 1)
		opening := model.OpeningBalance(i)
		if !closing.Amount().Equal(opening.Amount()) {
			t.Errorf("period %d: closing %s != next opening %s", i, closing, opening)
		}
	}
}

// =============================================================================
// DOWN PAYMENT
// =============================================================================

func TestGenerate_DownPaymentReducesBalanceBeforeInterest(t *testing.T) {
	terms := progressiveTerms()
	terms.Principal = usd("1000.00")
	terms.DownPaymentEnabled = true
	terms.DownPaymentPercent = decimal.NewFromInt(25)

	gen := engine.NewScheduleGenerator(engine.DefaultMathContext)
	model, err := gen.Generate(terms, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if model.DownPayment == nil {
		t.Fatal("expected a down payment period")
	}
	if model.DownPayment.Amount.Amount().StringFixed(2) != "250.00" {
		t.Errorf("expected down payment 250.00, got %s", model.DownPayment.Amount)
	}
	// Interest accrues on 750, not 1000.
	if got := model.OpeningBalance(0).Amount().StringFixed(2); got != "750.00" {
		t.Errorf("expected opening balance 750.00, got %s", got)
	}
	// Conservation still counts the down payment.
	if !model.TotalPrincipal().Amount().Equal(terms.Principal.Amount()) {
		t.Errorf("principal drift with down payment: %s", model.TotalPrincipal())
	}
}

// =============================================================================
// RATE CHANGES
// =============================================================================

func TestGenerate_RateChangeRecomputesRemainingInstallments(t *testing.T) {
	terms := progressiveTerms()
	terms.Principal = usd("1200.00")
	terms.DisbursementDate = terms.FirstPeriodStart
	terms.NumberOfRepayments = 12
	terms.RateChanges = []engine.RateChange{
		{EffectiveFrom: date(2024, time.July, 1), AnnualRatePercent: decimal.RequireFromString("14.50")},
	}

	gen := engine.NewScheduleGenerator(engine.DefaultMathContext)
	model, err := gen.Generate(terms, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// All periods before July share one installment amount, all periods
	// from July on share a higher one.
	before := model.Installments[0].TotalDue()
	after := model.Installments[6].TotalDue()
	if !after.GreaterThan(before) {
		t.Errorf("expected higher installment after rate increase: before %s, after %s", before, after)
	}
	for i := 1; i < 6; i++ {
		if !model.Installments[i].TotalDue().Amount().Equal(before.Amount()) {
			t.Errorf("period %d: expected pre-change installment %s, got %s",
				i+1, before, model.Installments[i].TotalDue())
		}
	}
	for i := 7; i < 11; i++ {
		if !model.Installments[i].TotalDue().Amount().Equal(after.Amount()) {
			t.Errorf("period %d: expected post-change installment %s, got %s",
				i+1, after, model.Installments[i].TotalDue())
		}
	}
	// Conservation survives the recomputation.
	if !model.TotalPrincipal().Amount().Equal(terms.Principal.Amount()) {
		t.Errorf("principal drift across rate change: %s", model.TotalPrincipal())
	}
}

// =============================================================================
// HOLIDAYS AND VALIDATION
// =============================================================================

func TestGenerate_HolidayShiftsDueDate(t *testing.T) {
	terms := progressiveTerms()
	holidays := []engine.Holiday{{Date: date(2024, time.February, 1), Name: "bank holiday"}}

	gen := engine.NewScheduleGenerator(engine.DefaultMathContext)
	model, err := gen.Generate(terms, holidays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !model.Installments[0].DueOn.Equal(date(2024, time.February, 2)) {
		t.Errorf("expected due date shifted to 2024-02-02, got %s", model.Installments[0].DueOn)
	}
	// The next period still starts at the unadjusted boundary.
	if !model.Installments[1].From.Equal(date(2024, time.February, 1)) {
		t.Errorf("expected next period to start 2024-02-01, got %s", model.Installments[1].From)
	}
}

func TestGenerate_RejectsInvalidTerms(t *testing.T) {
	gen := engine.NewScheduleGenerator(engine.DefaultMathContext)

	terms := progressiveTerms()
	terms.NumberOfRepayments = 0
	if _, err := gen.Generate(terms, nil); !errors.Is(err, engine.ErrInvalidTerms) {
		t.Errorf("expected ErrInvalidTerms for zero repayments, got %v", err)
	}

	terms = progressiveTerms()
	terms.Principal = usd("0.00")
	if _, err := gen.Generate(terms, nil); !errors.Is(err, engine.ErrInvalidTerms) {
		t.Errorf("expected ErrInvalidTerms for zero principal, got %v", err)
	}

	terms = progressiveTerms()
	terms.AnnualRatePercent = decimal.RequireFromString("-1")
	if _, err := gen.Generate(terms, nil); !errors.Is(err, engine.ErrInvalidTerms) {
		t.Errorf("expected ErrInvalidTerms for negative rate, got %v", err)
	}
}
