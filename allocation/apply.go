/*
apply.go - Driving money through a validated allocation order

PURPOSE:
  Given a validated rule set and an incoming transaction, distributes the
  amount across the loan's installments: bucket by due type in the
  configured slot order, oldest installment first inside a bucket, with
  in-advance slots steered by the rule's future-installment policy.

MUTATION MODEL:
  The input ledger is never modified. Application returns a new installment
  slice plus the per-component deltas that were applied; reversal replays
  those deltas as compensating mutations. This keeps the conservation
  invariants checkable after every step.
*/
package allocation

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/engine"
)

// ErrNoMatchingRule is returned when neither a transaction-type-specific
// rule nor a DEFAULT rule exists. A validated rule set cannot trigger it.
var ErrNoMatchingRule = errors.New("no allocation rule matches transaction type")

// Processor applies transactions to an installment ledger under a rule set.
type Processor struct {
	MC engine.MathContext
}

// ComponentDelta records one paid-side movement produced by application.
type ComponentDelta struct {
	InstallmentNumber int
	Component         engine.Component
	Amount            engine.Money
}

// PaymentResult is the outcome of applying one transaction: the new ledger
// state, the movements that produced it, and any amount the rule set could
// not place (overpayment beyond all outstanding obligations).
type PaymentResult struct {
	Installments []engine.Installment
	Deltas       []ComponentDelta
	Unallocated  engine.Money
}

// ApplyPayment distributes a payment amount over the installments under the
// rule configured for the transaction type (falling back to DEFAULT).
func (p Processor) ApplyPayment(
	rules []PaymentAllocationRule,
	txType TransactionType,
	txDate time.Time,
	amount engine.Money,
	installments []engine.Installment,
) (PaymentResult, error) {
	rule, ok := RuleFor(rules, txType)
	if !ok {
		return PaymentResult{}, ErrNoMatchingRule
	}

	ledger := make([]engine.Installment, len(installments))
	copy(ledger, installments)

	res := PaymentResult{Installments: ledger}
	remaining := amount

	for _, slot := range rule.Order {
		if remaining.IsZero() {
			break
		}
		dueType := slot.DueType()
		component := slot.Component()

		candidates := bucketIndices(ledger, txDate, dueType)
		if dueType == engine.InAdvance {
			switch rule.FutureInstallmentRule {
			case LastInstallment:
				reverse(candidates)
			case Reamortization:
				remaining = p.reamortize(ledger, candidates, component, remaining, &res)
				continue
			}
		}

		for _, idx := range candidates {
			if remaining.IsZero() {
				break
			}
			remaining = p.payInto(ledger, idx, component, remaining, &res)
		}
	}

	res.Unallocated = remaining
	return res, nil
}

// payInto applies up to `remaining` against one installment component and
// returns what is left.
func (p Processor) payInto(ledger []engine.Installment, idx int, c engine.Component, remaining engine.Money, res *PaymentResult) engine.Money {
	updated, applied := ledger[idx].Pay(c, remaining)
	if !applied.IsPositive() {
		return remaining
	}
	ledger[idx] = updated
	res.Deltas = append(res.Deltas, ComponentDelta{
		InstallmentNumber: updated.Number,
		Component:         c,
		Amount:            applied,
	})
	return remaining.MustSub(applied)
}

// reamortize spreads the remaining amount evenly over the future
// installments that still owe the component; cents that do not divide
// evenly roll forward through an oldest-first sweep.
func (p Processor) reamortize(ledger []engine.Installment, candidates []int, c engine.Component, remaining engine.Money, res *PaymentResult) engine.Money {
	open := candidates[:0:0]
	for _, idx := range candidates {
		if ledger[idx].Outstanding(c).IsPositive() {
			open = append(open, idx)
		}
	}
	if len(open) == 0 || remaining.IsZero() {
		return remaining
	}

	portion := remaining.Div(decimal.NewFromInt(int64(len(open))), p.MC)
	for _, idx := range open {
		share := portion.Min(remaining)
		if !share.IsPositive() {
			break
		}
		left := p.payInto(ledger, idx, c, share, res)
		consumed := share.MustSub(left)
		remaining = remaining.MustSub(consumed)
	}

	// Sweep whatever even division left behind.
	for _, idx := range open {
		if remaining.IsZero() {
			break
		}
		remaining = p.payInto(ledger, idx, c, remaining, res)
	}
	return remaining
}

// ApplyChargeback re-opens obligations on the last installment, walking the
// credit allocation order and capping each component at what has actually
// been paid toward it. Any excess lands on principal.
func (p Processor) ApplyChargeback(
	rules []CreditAllocationRule,
	amount engine.Money,
	installments []engine.Installment,
) (PaymentResult, error) {
	var rule *CreditAllocationRule
	for i := range rules {
		if rules[i].TransactionType == TxChargeback {
			rule = &rules[i]
			break
		}
	}
	if rule == nil {
		return PaymentResult{}, ErrNoMatchingRule
	}
	if len(installments) == 0 {
		return PaymentResult{}, engine.ErrNoInstallments
	}

	ledger := make([]engine.Installment, len(installments))
	copy(ledger, installments)
	last := len(ledger) - 1

	res := PaymentResult{Installments: ledger}
	remaining := amount

	for _, slot := range rule.Order {
		if remaining.IsZero() {
			break
		}
		c := slot.Component()
		paidTotal := engine.Zero(amount.Currency())
		for _, inst := range ledger {
			paidTotal = paidTotal.MustAdd(inst.PaidAmount(c))
		}
		addBack := remaining.Min(paidTotal)
		if !addBack.IsPositive() {
			continue
		}
		ledger[last] = ledger[last].AddDue(c, addBack)
		res.Deltas = append(res.Deltas, ComponentDelta{
			InstallmentNumber: ledger[last].Number,
			Component:         c,
			Amount:            addBack,
		})
		remaining = remaining.MustSub(addBack)
	}

	if remaining.IsPositive() {
		ledger[last] = ledger[last].AddDue(engine.ComponentPrincipal, remaining)
		res.Deltas = append(res.Deltas, ComponentDelta{
			InstallmentNumber: ledger[last].Number,
			Component:         engine.ComponentPrincipal,
			Amount:            remaining,
		})
		remaining = engine.Zero(amount.Currency())
	}

	res.Unallocated = remaining
	return res, nil
}

// ReversePayment appends the compensating mutations for a previously
// applied payment. Deltas are replayed newest-first.
func (p Processor) ReversePayment(deltas []ComponentDelta, installments []engine.Installment) []engine.Installment {
	ledger := make([]engine.Installment, len(installments))
	copy(ledger, installments)

	byNumber := map[int]int{}
	for i, inst := range ledger {
		byNumber[inst.Number] = i
	}

	for i := len(deltas) - 1; i >= 0; i-- {
		d := deltas[i]
		idx, ok := byNumber[d.InstallmentNumber]
		if !ok {
			continue
		}
		ledger[idx], _ = ledger[idx].Unpay(d.Component, d.Amount)
	}
	return ledger
}

// ReverseChargeback appends the compensating mutations for a previously
// applied chargeback. Chargeback deltas are due-side movements, so the
// compensation is a negative AddDue per delta, newest-first - the paid side
// is never touched.
func (p Processor) ReverseChargeback(deltas []ComponentDelta, installments []engine.Installment) []engine.Installment {
	ledger := make([]engine.Installment, len(installments))
	copy(ledger, installments)

	byNumber := map[int]int{}
	for i, inst := range ledger {
		byNumber[inst.Number] = i
	}

	for i := len(deltas) - 1; i >= 0; i-- {
		d := deltas[i]
		idx, ok := byNumber[d.InstallmentNumber]
		if !ok {
			continue
		}
		ledger[idx] = ledger[idx].AddDue(d.Component, d.Amount.Neg())
	}
	return ledger
}

// bucketIndices returns the (order-preserving) indices of installments in
// the given due-type bucket as of the transaction date.
func bucketIndices(ledger []engine.Installment, txDate time.Time, dt engine.DueType) []int {
	var out []int
	for i, inst := range ledger {
		if inst.DueTypeAt(txDate) == dt {
			out = append(out, i)
		}
	}
	return out
}

func reverse(idx []int) {
	for i, j := 0, len(idx)-1; i < j; i, j = i+1, j-1 {
		idx[i], idx[j] = idx[j], idx[i]
	}
}
