/*
schedule.go - Progressive schedule generation

PURPOSE:
  Orchestrates DISBURSEMENT -> [DOWN_PAYMENT] -> REPAYMENT* over the period
  boundaries supplied by the injected PeriodGenerator, invoking the EMI
  calculator period by period from the live outstanding balance.

GUARANTEES:
  - Principal conservation: down payment plus all principal-due components
    sum to the disbursed amount exactly. Verified after generation; a
    violation is an engine defect, not tolerated input.
  - Balance continuity: each period's closing balance is the next period's
    opening balance, by construction (the balance variable is threaded).
*/
package engine

// ScheduleGenerator assembles a full ScheduleModel from loan terms.
type ScheduleGenerator struct {
	Calc    EMICalculator
	Periods PeriodGenerator
}

// NewScheduleGenerator wires the default calendar generator.
func NewScheduleGenerator(mc MathContext) ScheduleGenerator {
	return ScheduleGenerator{
		Calc:    EMICalculator{MC: mc},
		Periods: CalendarPeriodGenerator{},
	}
}

// Generate produces the schedule for the given terms. The result is a fresh
// value; the generator holds no state between calls and is safe to use for
// different loans concurrently.
func (g ScheduleGenerator) Generate(terms LoanTerms, holidays []Holiday) (ScheduleModel, error) {
	if err := terms.Validate(); err != nil {
		return ScheduleModel{}, err
	}
	periods, err := g.Periods.GenerateRepaymentPeriods(g.Calc.MC, terms, holidays)
	if err != nil {
		return ScheduleModel{}, err
	}
	if len(periods) == 0 {
		return ScheduleModel{}, ErrNoInstallments
	}

	model := ScheduleModel{
		Currency: terms.Currency,
		Disbursement: DisbursementPeriod{
			Date:   atMidnight(terms.DisbursementDate),
			Amount: terms.Principal,
		},
	}

	balance := terms.Principal
	if terms.DownPaymentEnabled {
		down := terms.Principal.MulRate(terms.DownPaymentPercent.Div(hundred), g.Calc.MC)
		model.DownPayment = &DownPaymentPeriod{Date: model.Disbursement.Date, Amount: down}
		balance = balance.MustSub(down)
	}

	rates := g.Calc.PeriodRates(terms, periods)

	// The EMI holds across the schedule and is recomputed only at a nominal
	// rate revision, from the balance entering the revised segment.
	emi := g.Calc.EqualInstallment(balance, rates)
	prevAnnual := terms.rateAsOf(periods[0].From)

	model.Installments = make([]Installment, 0, len(periods))
	for i, p := range periods {
		annual := terms.rateAsOf(p.From)
		if i > 0 && !annual.Equal(prevAnnual) {
			emi = g.Calc.EqualInstallment(balance, rates[i:])
			prevAnnual = annual
		}
		split := g.Calc.SplitPeriod(balance, rates[i], emi, i == len(periods)-1)
		model.Installments = append(model.Installments,
			NewInstallment(i+1, p.From, p.Due, split.Principal, split.Interest))
		balance = split.Closing
	}
	model.EMI = emi

	if !model.TotalPrincipal().Amount().Equal(terms.Principal.Amount()) {
		return ScheduleModel{}, ErrResidualNotReconciled
	}
	return model, nil
}
