/*
types.go - Loan terms, installments and the schedule model

KEY CONCEPTS:
  - LoanTerms: immutable input to schedule generation. A re-generated
    schedule is a new value; terms are never edited in place.
  - Installment: one repayment period's ledger row with a due side and a
    paid side per component. Mutation happens only through value-returning
    apply operations, so conservation invariants stay checkable.
  - DueType: where an installment stands relative to a transaction date
    (past due, due today, or in advance).
  - ScheduleModel / OutstandingAmounts: the engine's two output shapes,
    plain data consumed by the API and persistence layers.
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LOAN TERMS
// =============================================================================

// PreClosureStrategy selects how much interest accrues when a loan is paid
// off inside a period.
type PreClosureStrategy string

const (
	// TillPreClosureDate accrues interest on the open installment only up to
	// the payoff date.
	TillPreClosureDate PreClosureStrategy = "TILL_PRE_CLOSURE_DATE"

	// TillRestFrequencyDate accrues interest for the open installment's
	// entire period, up to its due date.
	TillRestFrequencyDate PreClosureStrategy = "TILL_REST_FREQUENCY_DATE"
)

// RateChange is a mid-schedule nominal rate revision. Periods whose start
// falls on or after EffectiveFrom use the new rate; the equal installment
// amount is recomputed for the remaining term at that point.
type RateChange struct {
	EffectiveFrom     time.Time
	AnnualRatePercent decimal.Decimal
}

// LoanTerms is the complete, immutable input to schedule generation.
type LoanTerms struct {
	Currency          Currency
	Principal         Money
	AnnualRatePercent decimal.Decimal // nominal, e.g. 9.99 for 9.99%/year

	DisbursementDate   time.Time
	FirstPeriodStart   time.Time
	NumberOfRepayments int
	RepaymentUnit      RepaymentUnit
	RepayEvery         int

	DaysInMonth DaysInMonthType
	DaysInYear  DaysInYearType

	// Optional down payment collected at disbursement, reducing the balance
	// before any interest accrues. Percent of principal, e.g. 25.
	DownPaymentEnabled bool
	DownPaymentPercent decimal.Decimal

	RateChanges []RateChange

	PreClosureStrategy PreClosureStrategy
}

// Validate rejects terms that cannot produce a schedule.
func (t LoanTerms) Validate() error {
	if !t.Principal.IsPositive() {
		return &TermsError{Field: "principal", Reason: "must be positive"}
	}
	if t.NumberOfRepayments <= 0 {
		return &TermsError{Field: "numberOfRepayments", Reason: "must be positive"}
	}
	if t.AnnualRatePercent.IsNegative() {
		return &TermsError{Field: "annualRatePercent", Reason: "must not be negative"}
	}
	if t.DisbursementDate.Before(t.FirstPeriodStart) {
		return &TermsError{Field: "disbursementDate", Reason: "before first period start"}
	}
	if t.DownPaymentEnabled {
		if t.DownPaymentPercent.Sign() <= 0 || t.DownPaymentPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			return &TermsError{Field: "downPaymentPercent", Reason: "must be in (0, 100)"}
		}
	}
	return nil
}

// rateAsOf returns the annual nominal rate applicable to a period starting
// at the given date, taking rate changes into account.
func (t LoanTerms) rateAsOf(periodStart time.Time) decimal.Decimal {
	rate := t.AnnualRatePercent
	for _, rc := range t.RateChanges {
		if !periodStart.Before(atMidnight(rc.EffectiveFrom)) {
			rate = rc.AnnualRatePercent
		}
	}
	return rate
}

// =============================================================================
// COMPONENTS AND DUE TYPES
// =============================================================================

// Component is one of the four balances an installment carries.
type Component string

const (
	ComponentPrincipal Component = "PRINCIPAL"
	ComponentInterest  Component = "INTEREST"
	ComponentFee       Component = "FEE"
	ComponentPenalty   Component = "PENALTY"
)

// ComponentsPerDueType is the number of allocation components inside one
// due-type bucket. Grouping validation and the slot count of a payment
// allocation order both derive from it.
const ComponentsPerDueType = 4

// DueType classifies an installment relative to a transaction date.
type DueType string

const (
	PastDue   DueType = "PAST_DUE"
	Due       DueType = "DUE"
	InAdvance DueType = "IN_ADVANCE"
)

// =============================================================================
// INSTALLMENT - one period's ledger row
// =============================================================================

// Installment is a repayment period with a due side (set at generation) and
// a paid side (advanced by transaction application). Outstanding amounts are
// derived, never stored.
type Installment struct {
	Number int
	From   time.Time
	DueOn  time.Time

	PrincipalDue Money
	InterestDue  Money
	FeeDue       Money
	PenaltyDue   Money

	PrincipalPaid Money
	InterestPaid  Money
	FeePaid       Money
	PenaltyPaid   Money

	ObligationsMet bool
}

// NewInstallment builds an installment with zeroed paid components.
func NewInstallment(number int, from, due time.Time, principal, interest Money) Installment {
	cur := principal.Currency()
	return Installment{
		Number:        number,
		From:          from,
		DueOn:         due,
		PrincipalDue:  principal,
		InterestDue:   interest,
		FeeDue:        Zero(cur),
		PenaltyDue:    Zero(cur),
		PrincipalPaid: Zero(cur),
		InterestPaid:  Zero(cur),
		FeePaid:       Zero(cur),
		PenaltyPaid:   Zero(cur),
	}
}

func (i Installment) DueAmount(c Component) Money {
	switch c {
	case ComponentInterest:
		return i.InterestDue
	case ComponentFee:
		return i.FeeDue
	case ComponentPenalty:
		return i.PenaltyDue
	default:
		return i.PrincipalDue
	}
}

func (i Installment) PaidAmount(c Component) Money {
	switch c {
	case ComponentInterest:
		return i.InterestPaid
	case ComponentFee:
		return i.FeePaid
	case ComponentPenalty:
		return i.PenaltyPaid
	default:
		return i.PrincipalPaid
	}
}

// Outstanding returns due minus paid for one component.
func (i Installment) Outstanding(c Component) Money {
	return i.DueAmount(c).MustSub(i.PaidAmount(c))
}

// TotalDue is the sum of all due components.
func (i Installment) TotalDue() Money {
	return i.PrincipalDue.MustAdd(i.InterestDue).MustAdd(i.FeeDue).MustAdd(i.PenaltyDue)
}

// TotalOutstanding is the sum of all outstanding components.
func (i Installment) TotalOutstanding() Money {
	return i.Outstanding(ComponentPrincipal).
		MustAdd(i.Outstanding(ComponentInterest)).
		MustAdd(i.Outstanding(ComponentFee)).
		MustAdd(i.Outstanding(ComponentPenalty))
}

// DueTypeAt classifies the installment against a transaction date.
func (i Installment) DueTypeAt(txDate time.Time) DueType {
	d := atMidnight(txDate)
	switch {
	case i.DueOn.Before(d):
		return PastDue
	case i.DueOn.Equal(d):
		return Due
	default:
		return InAdvance
	}
}

// Pay applies an amount to one component, capped at its outstanding value.
// It returns the updated installment and the amount actually consumed.
// The installment value is never mutated in place.
func (i Installment) Pay(c Component, amount Money) (Installment, Money) {
	applied := amount.Min(i.Outstanding(c))
	if applied.IsNegative() {
		applied = Zero(amount.Currency())
	}
	switch c {
	case ComponentInterest:
		i.InterestPaid = i.InterestPaid.MustAdd(applied)
	case ComponentFee:
		i.FeePaid = i.FeePaid.MustAdd(applied)
	case ComponentPenalty:
		i.PenaltyPaid = i.PenaltyPaid.MustAdd(applied)
	default:
		i.PrincipalPaid = i.PrincipalPaid.MustAdd(applied)
	}
	i.ObligationsMet = i.TotalOutstanding().IsZero()
	return i, applied
}

// Unpay backs a previously applied amount out of one component's paid side,
// capped at what was actually paid. This is the compensating mutation behind
// transaction reversal; the original application is never edited.
func (i Installment) Unpay(c Component, amount Money) (Installment, Money) {
	reversed := amount.Min(i.PaidAmount(c))
	if reversed.IsNegative() {
		reversed = Zero(amount.Currency())
	}
	switch c {
	case ComponentInterest:
		i.InterestPaid = i.InterestPaid.MustSub(reversed)
	case ComponentFee:
		i.FeePaid = i.FeePaid.MustSub(reversed)
	case ComponentPenalty:
		i.PenaltyPaid = i.PenaltyPaid.MustSub(reversed)
	default:
		i.PrincipalPaid = i.PrincipalPaid.MustSub(reversed)
	}
	i.ObligationsMet = i.TotalOutstanding().IsZero()
	return i, reversed
}

// AddDue raises one component's due side. Used for chargebacks and fees
// posted after generation; reversal is a compensating AddDue with a negative
// amount, never an edit of the paid side.
func (i Installment) AddDue(c Component, amount Money) Installment {
	switch c {
	case ComponentInterest:
		i.InterestDue = i.InterestDue.MustAdd(amount)
	case ComponentFee:
		i.FeeDue = i.FeeDue.MustAdd(amount)
	case ComponentPenalty:
		i.PenaltyDue = i.PenaltyDue.MustAdd(amount)
	default:
		i.PrincipalDue = i.PrincipalDue.MustAdd(amount)
	}
	i.ObligationsMet = i.TotalOutstanding().IsZero()
	return i
}

// =============================================================================
// SCHEDULE MODEL - generator output
// =============================================================================

// DisbursementPeriod records the principal release.
type DisbursementPeriod struct {
	Date   time.Time
	Amount Money
}

// DownPaymentPeriod records the optional up-front principal reduction.
type DownPaymentPeriod struct {
	Date   time.Time
	Amount Money
}

// ScheduleModel is the full generated schedule. It is produced wholesale by
// the generator; only transaction application may advance the installments'
// paid side afterwards.
type ScheduleModel struct {
	Currency     Currency
	Disbursement DisbursementPeriod
	DownPayment  *DownPaymentPeriod
	Installments []Installment

	// EMI is the equal installment amount of the final segment (after the
	// last rate change, if any).
	EMI Money
}

// TotalPrincipal sums principal-due over all repayment installments plus the
// down payment. Conservation requires it to equal the disbursed amount.
func (s ScheduleModel) TotalPrincipal() Money {
	total := Zero(s.Currency)
	if s.DownPayment != nil {
		total = total.MustAdd(s.DownPayment.Amount)
	}
	for _, inst := range s.Installments {
		total = total.MustAdd(inst.PrincipalDue)
	}
	return total
}

// TotalInterest sums interest-due over all installments.
func (s ScheduleModel) TotalInterest() Money {
	total := Zero(s.Currency)
	for _, inst := range s.Installments {
		total = total.MustAdd(inst.InterestDue)
	}
	return total
}

// OpeningBalance returns the outstanding principal entering installment idx.
func (s ScheduleModel) OpeningBalance(idx int) Money {
	balance := s.Disbursement.Amount
	if s.DownPayment != nil {
		balance = balance.MustSub(s.DownPayment.Amount)
	}
	for j := 0; j < idx && j < len(s.Installments); j++ {
		balance = balance.MustSub(s.Installments[j].PrincipalDue)
	}
	return balance
}

// ClosingBalance returns the outstanding principal after installment idx.
func (s ScheduleModel) ClosingBalance(idx int) Money {
	return s.OpeningBalance(idx + 1)
}

// =============================================================================
// OUTSTANDING AMOUNTS - payoff output
// =============================================================================

// OutstandingAmounts is the payoff quote as of a date: what must be paid to
// close the loan.
type OutstandingAmounts struct {
	AsOf      time.Time
	Principal Money
	Interest  Money
	Fee       Money
	Penalty   Money
}

// Total is the payoff figure.
func (o OutstandingAmounts) Total() Money {
	return o.Principal.MustAdd(o.Interest).MustAdd(o.Fee).MustAdd(o.Penalty)
}
