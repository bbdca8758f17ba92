/*
prepayment.go - Early payoff quoting

PURPOSE:
  Computes the amount required to close a loan on an arbitrary date from the
  live installment ledger. Principal, fees and penalties are always owed in
  full; how much interest the borrower owes for the period the payoff date
  falls into is governed by the pre-closure strategy on the terms.

STRATEGIES:
  TILL_PRE_CLOSURE_DATE    interest accrues on the open period's balance
                           only up to the payoff date
  TILL_REST_FREQUENCY_DATE interest accrues for the open period in full,
                           up to its due date

  An installment is "open" when fromDate < asOf <= dueDate. A payoff dated
  exactly at the schedule's first from-date has no open installment, so the
  two strategies agree: nothing has accrued yet.
*/
package engine

import "time"

// PrepaymentCalculator derives payoff quotes from an installment ledger.
type PrepaymentCalculator struct {
	Calc EMICalculator
}

// CalculatePrepaymentAmount returns the payoff quote as of the given date.
// The installment slice is the loan's transaction-history view (due and paid
// components); holidays are accepted for signature parity with the schedule
// path but a quote needs no business-day adjustment.
func (c PrepaymentCalculator) CalculatePrepaymentAmount(
	asOf time.Time,
	terms LoanTerms,
	installments []Installment,
	_ []Holiday,
) (OutstandingAmounts, error) {
	if len(installments) == 0 {
		return OutstandingAmounts{}, ErrNoInstallments
	}
	asOf = atMidnight(asOf)
	cur := terms.Currency

	out := OutstandingAmounts{
		AsOf:      asOf,
		Principal: Zero(cur),
		Interest:  Zero(cur),
		Fee:       Zero(cur),
		Penalty:   Zero(cur),
	}

	for idx, inst := range installments {
		out.Principal = out.Principal.MustAdd(inst.Outstanding(ComponentPrincipal))
		out.Fee = out.Fee.MustAdd(inst.Outstanding(ComponentFee))
		out.Penalty = out.Penalty.MustAdd(inst.Outstanding(ComponentPenalty))

		switch {
		case inst.DueOn.Before(asOf) || inst.DueOn.Equal(asOf):
			// Matured period: its interest is owed in full.
			out.Interest = out.Interest.MustAdd(inst.Outstanding(ComponentInterest))
		case inst.From.Before(asOf):
			// The period the payoff date falls into.
			out.Interest = out.Interest.MustAdd(c.openPeriodInterest(asOf, terms, installments, idx))
		}
		// Periods entirely in the future contribute no interest: prepayment
		// waives interest that never had time to accrue.
	}
	return out, nil
}

// openPeriodInterest computes the interest owed for the installment the
// payoff date falls into, under the terms' pre-closure strategy.
func (c PrepaymentCalculator) openPeriodInterest(asOf time.Time, terms LoanTerms, installments []Installment, idx int) Money {
	inst := installments[idx]

	if terms.PreClosureStrategy == TillRestFrequencyDate {
		return inst.Outstanding(ComponentInterest)
	}

	// TILL_PRE_CLOSURE_DATE: balance * periodic rate, scaled to the days
	// actually elapsed. Accrual starts at the later of the period start and
	// the disbursement date; the denominator is the full period either way,
	// matching how the generator scaled the first period's rate.
	balance := Zero(terms.Currency)
	for _, later := range installments[idx:] {
		balance = balance.MustAdd(later.Outstanding(ComponentPrincipal))
	}

	perYear := PeriodsPerYear(terms.RepaymentUnit, terms.RepayEvery)
	fullRate := terms.rateAsOf(inst.From).Div(hundred).DivRound(intToDecimal(perYear), c.Calc.MC.Precision)

	start := inst.From
	disb := atMidnight(terms.DisbursementDate)
	if disb.After(start) && disb.Before(inst.DueOn) {
		start = disb
	}
	elapsed := periodDays(start, asOf, terms.DaysInMonth)
	total := periodDays(inst.From, inst.DueOn, terms.DaysInMonth)
	if elapsed <= 0 || total <= 0 {
		return Zero(terms.Currency)
	}

	rate := fullRate.Mul(intToDecimal(elapsed)).DivRound(intToDecimal(total), c.Calc.MC.Precision)
	accrued := balance.MulRate(rate, c.Calc.MC)

	// Interest already paid toward this period reduces what is owed.
	accrued = accrued.MustSub(inst.PaidAmount(ComponentInterest))
	if accrued.IsNegative() {
		return Zero(terms.Currency)
	}
	return accrued
}
