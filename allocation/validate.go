/*
validate.go - Rule set constraint checks

THE CONTRACT:
  Strategy gate   rules exist iff the advanced strategy is selected
  Default rule    at least one DEFAULT transaction type rule
  Uniqueness      no transaction type twice across rules
  Completeness    every order lists the full slot registry, each exactly
                  once, with orders forming the contiguous run 1..N
  Grouping        slots of one due type form a contiguous, uninterrupted
                  run - no interleaving of buckets

Independent checks are collected, not short-circuited, so one submission
reports all its defects. The order and grouping checks on a single rule's
list stop at that rule's first defect.
*/
package allocation

import (
	"fmt"
	"sort"

	"github.com/warp/loan-engine/engine"
)

// Validate checks an already-parsed rule set against the strategy gate,
// default-rule, uniqueness and grouping constraints. Used when rules are
// rehydrated from storage rather than freshly parsed.
func Validate(rules []PaymentAllocationRule, strategyCode string) error {
	var errs ValidationErrors
	for i, rule := range rules {
		for _, typ := range rule.Order {
			if typ == "" {
				errs = append(errs, ValidationError{
					Code:    CodeInvalidAllocationType,
					Message: fmt.Sprintf("rule %d: order contains an unregistered allocation type", i+1),
				})
			}
		}
	}
	errs = append(errs, checkGroupingOfAllocationRules(rules)...)
	errs = append(errs, validateRules(rules, strategyCode)...)
	return errs.orNil()
}

// validateRules covers the rule-set level checks after per-rule order
// validation has run.
func validateRules(rules []PaymentAllocationRule, strategyCode string) ValidationErrors {
	var errs ValidationErrors

	if strategyCode != StrategyAdvanced {
		if len(rules) > 0 {
			errs = append(errs, ValidationError{
				Code:    CodeRulesNotAllowed,
				Message: fmt.Sprintf("strategy %q does not accept allocation rules", strategyCode),
			})
		}
		return errs
	}

	if len(rules) == 0 {
		errs = append(errs, ValidationError{
			Code:    CodeRulesRequired,
			Message: "the advanced allocation strategy requires at least one rule",
		})
		return errs
	}

	hasDefault := false
	seen := map[TransactionType]bool{}
	for i, r := range rules {
		if r.TransactionType == "" {
			errs = append(errs, ValidationError{
				Code:    CodeInvalidTransactionType,
				Message: fmt.Sprintf("rule %d: unknown or missing transaction type", i+1),
			})
		} else {
			if seen[r.TransactionType] {
				errs = append(errs, ValidationError{
					Code:    CodeDuplicateTransactionType,
					Message: fmt.Sprintf("transaction type %s appears in more than one rule", r.TransactionType),
				})
			}
			seen[r.TransactionType] = true
		}
		if r.TransactionType == TxDefault {
			hasDefault = true
		}
		if r.FutureInstallmentRule == "" {
			errs = append(errs, ValidationError{
				Code:    CodeInvalidFutureInstallment,
				Message: fmt.Sprintf("rule %d: unknown or missing future installment allocation rule", i+1),
			})
		}
	}
	if !hasDefault {
		errs = append(errs, ValidationError{
			Code:    CodeMissingDefaultAllocation,
			Message: "a DEFAULT transaction type rule is required",
		})
	}
	return errs
}

// validateCreditRules is the credit-side analogue: strategy gate plus
// transaction type checks. No default rule exists on the credit side.
func validateCreditRules(rules []CreditAllocationRule, strategyCode string) ValidationErrors {
	var errs ValidationErrors

	if strategyCode != StrategyAdvanced {
		if len(rules) > 0 {
			errs = append(errs, ValidationError{
				Code:    CodeRulesNotAllowed,
				Message: fmt.Sprintf("strategy %q does not accept credit allocation rules", strategyCode),
			})
		}
		return errs
	}

	seen := map[CreditTransactionType]bool{}
	for i, r := range rules {
		if r.TransactionType == "" {
			errs = append(errs, ValidationError{
				Code:    CodeInvalidTransactionType,
				Message: fmt.Sprintf("credit rule %d: unknown or missing transaction type", i+1),
			})
			continue
		}
		if seen[r.TransactionType] {
			errs = append(errs, ValidationError{
				Code:    CodeDuplicateTransactionType,
				Message: fmt.Sprintf("credit transaction type %s appears in more than one rule", r.TransactionType),
			})
		}
		seen[r.TransactionType] = true
	}
	return errs
}

// validateOrderAndPaymentAllocationType checks one rule's (order, type)
// pairs: full slot count, registered type names, distinct types, contiguous
// 1..N order values. Stops at the rule's first failing check.
func validateOrderAndPaymentAllocationType(txName string, entries []RawAllocationOrder) ValidationErrors {
	want := len(PaymentAllocationTypes)
	if len(entries) != want {
		return ValidationErrors{{
			Code:    CodeWrongEntryCount,
			Message: fmt.Sprintf("rule %s: allocation order has %d entries, want %d", txName, len(entries), want),
		}}
	}

	if errs := checkRegisteredTypes(txName, entries, func(name string) bool {
		_, ok := ParsePaymentAllocationType(name)
		return ok
	}); len(errs) > 0 {
		return errs
	}

	distinct := map[string]bool{}
	for _, e := range entries {
		distinct[e.AllocationType] = true
	}
	if len(distinct) != want {
		return ValidationErrors{{
			Code:    CodeDuplicateAllocationType,
			Message: fmt.Sprintf("rule %s: allocation types are not distinct", txName),
		}}
	}

	if err := checkContiguousOrders(txName, entries); err != nil {
		return ValidationErrors{*err}
	}
	return nil
}

// validateOrderAndCreditAllocationType is the credit variant, checked
// against the registered credit slot count rather than a fixed literal.
func validateOrderAndCreditAllocationType(txName string, entries []RawAllocationOrder) ValidationErrors {
	want := len(CreditAllocationTypes)
	if len(entries) != want {
		return ValidationErrors{{
			Code:    CodeWrongEntryCount,
			Message: fmt.Sprintf("credit rule %s: allocation order has %d entries, want %d", txName, len(entries), want),
		}}
	}

	if errs := checkRegisteredTypes(txName, entries, func(name string) bool {
		_, ok := ParseCreditAllocationType(name)
		return ok
	}); len(errs) > 0 {
		return errs
	}

	distinct := map[string]bool{}
	for _, e := range entries {
		distinct[e.AllocationType] = true
	}
	if len(distinct) != want {
		return ValidationErrors{{
			Code:    CodeDuplicateAllocationType,
			Message: fmt.Sprintf("credit rule %s: allocation types are not distinct", txName),
		}}
	}

	if err := checkContiguousOrders(txName, entries); err != nil {
		return ValidationErrors{*err}
	}
	return nil
}

// checkRegisteredTypes rejects order entries whose type name misses the
// registry. A name that fails to parse would otherwise become an absent
// slot that silently allocates nothing.
func checkRegisteredTypes(txName string, entries []RawAllocationOrder, known func(string) bool) ValidationErrors {
	var errs ValidationErrors
	for _, e := range entries {
		if !known(e.AllocationType) {
			errs = append(errs, ValidationError{
				Code:    CodeInvalidAllocationType,
				Message: fmt.Sprintf("rule %s: unknown allocation type %q", txName, e.AllocationType),
			})
		}
	}
	return errs
}

func checkContiguousOrders(txName string, entries []RawAllocationOrder) *ValidationError {
	orders := make([]int, len(entries))
	for i, e := range entries {
		orders[i] = e.Order
	}
	sort.Ints(orders)
	for i, o := range orders {
		if o != i+1 {
			return &ValidationError{
				Code:    CodeInvalidOrderSequence,
				Message: fmt.Sprintf("rule %s: order values must be exactly 1..%d", txName, len(entries)),
			}
		}
	}
	return nil
}

// checkGroupingOfAllocationRules enforces contiguous due-type runs inside
// every rule's order. Walking the list, a slot of one due type while
// another due type's run is started but shorter than a full bucket
// (ComponentsPerDueType slots) means the buckets interleave.
func checkGroupingOfAllocationRules(rules []PaymentAllocationRule) ValidationErrors {
	var errs ValidationErrors
	for i, rule := range rules {
		if err := checkGrouping(rule.Order); err != nil {
			errs = append(errs, ValidationError{
				Code:    CodeMixedDueTypeGrouping,
				Message: fmt.Sprintf("rule %d: %s", i+1, err.Message),
			})
		}
	}
	return errs
}

func checkGrouping(order []PaymentAllocationType) *ValidationError {
	counts := map[engine.DueType]int{}
	for _, t := range order {
		if t == "" {
			continue // absent types are reported by the order validation
		}
		current := t.DueType()
		for _, other := range []engine.DueType{engine.PastDue, engine.Due, engine.InAdvance} {
			if other == current {
				continue
			}
			if n := counts[other]; n > 0 && n < engine.ComponentsPerDueType {
				return &ValidationError{
					Code:    CodeMixedDueTypeGrouping,
					Message: fmt.Sprintf("%s entries interrupt the %s group", current, other),
				}
			}
		}
		counts[current]++
	}
	return nil
}
