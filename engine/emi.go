/*
emi.go - Equal installment (EMI) calculation

PURPOSE:
  Computes the equal periodic installment for a declining-balance loan and
  splits each period into interest and principal. The calculation is
  iterative by design: whenever the rate or the outstanding balance changes
  mid-schedule, the EMI is recomputed for the remaining term from the
  balance at the change point, so there is no single closed-form pass.

THE FORMULA:
  For remaining periods with per-period rate factors r1..rn and opening
  balance B, the installment E that amortizes B to exactly zero satisfies

      B * prod(1+ri)  =  E * sum over i of prod(1+rj) for j > i

  With equal rates this collapses to the textbook annuity formula; keeping
  the factor form lets a partial first period (disbursement mid-period) and
  mid-stream rate revisions fall out naturally.

ROUNDING:
  Interest per period is balance * rate rounded under the MathContext;
  principal is installment minus interest. Residual cents are pushed into
  the final period's principal so sum(principal due) equals the original
  principal exactly.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)
var hundred = decimal.NewFromInt(100)

func intToDecimal(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

// EMICalculator owns the numeric policy for installment math.
type EMICalculator struct {
	MC MathContext
}

// PeriodRates derives one rate factor per repayment period from the terms:
// the full-period nominal rate, scaled for the first period when the
// disbursement date falls inside it, and revised at rate-change boundaries.
func (c EMICalculator) PeriodRates(terms LoanTerms, periods []RepaymentPeriod) []decimal.Decimal {
	perYear := decimal.NewFromInt(int64(PeriodsPerYear(terms.RepaymentUnit, terms.RepayEvery)))
	rates := make([]decimal.Decimal, len(periods))
	for i, p := range periods {
		annual := terms.rateAsOf(p.From)
		full := annual.Div(hundred).DivRound(perYear, c.MC.Precision)
		rates[i] = full
		if i == 0 {
			disb := atMidnight(terms.DisbursementDate)
			if disb.After(p.From) && disb.Before(p.Due) {
				// Interest accrues only from disbursement to the period end.
				elapsed := decimal.NewFromInt(int64(periodDays(disb, p.Due, terms.DaysInMonth)))
				total := decimal.NewFromInt(int64(periodDays(p.From, p.Due, terms.DaysInMonth)))
				rates[i] = full.Mul(elapsed).DivRound(total, c.MC.Precision)
			}
		}
	}
	return rates
}

// EqualInstallment computes the EMI that amortizes balance to zero over the
// given per-period rate factors, rounded to the currency's digits.
func (c EMICalculator) EqualInstallment(balance Money, rates []decimal.Decimal) Money {
	if len(rates) == 0 {
		return Zero(balance.Currency())
	}
	allZero := true
	for _, r := range rates {
		if !r.IsZero() {
			allZero = false
			break
		}
	}
	if allZero {
		return balance.Div(decimal.NewFromInt(int64(len(rates))), c.MC)
	}

	// product = prod(1+ri); weights[i] = prod(1+rj) for j > i
	product := one
	weightSum := decimal.Zero
	for i := len(rates) - 1; i >= 0; i-- {
		weightSum = weightSum.Add(product)
		product = product.Mul(one.Add(rates[i]))
	}
	raw := balance.Amount().Mul(product).DivRound(weightSum, c.MC.Precision)
	return NewMoney(balance.Currency(), c.MC.round(raw, balance.Currency().Digits))
}

// PeriodSplit is the interest/principal breakdown of one repayment period.
type PeriodSplit struct {
	Interest  Money
	Principal Money
	Closing   Money
}

// SplitPeriod computes one period's interest on the opening balance and the
// principal component of the installment. When last is set, the principal
// absorbs the full remaining balance so the loan closes at exactly zero.
func (c EMICalculator) SplitPeriod(opening Money, rate decimal.Decimal, installment Money, last bool) PeriodSplit {
	interest := opening.MulRate(rate, c.MC)
	var principal Money
	if last {
		principal = opening
	} else {
		principal = installment.MustSub(interest)
		if principal.GreaterThan(opening) {
			principal = opening
		}
	}
	return PeriodSplit{
		Interest:  interest,
		Principal: principal,
		Closing:   opening.MustSub(principal),
	}
}
