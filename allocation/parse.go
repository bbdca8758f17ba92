/*
parse.go - Raw configuration payload -> validated rules

The persisted configuration shape is owned by the layers above (API,
config files); this file turns it into typed rules. Name lookups that miss
the registries produce absent values rather than parse errors - validation
reports them afterwards, together with every other defect in the
submission.
*/
package allocation

import (
	"fmt"
	"sort"
)

// =============================================================================
// RAW PAYLOAD SHAPES
// =============================================================================

// RawAllocationOrder is one entry of the ordered allocation array as it
// arrives from configuration: a 1-based order and a type name.
type RawAllocationOrder struct {
	Order          int    `json:"order" yaml:"order" mapstructure:"order"`
	AllocationType string `json:"paymentAllocationRule" yaml:"paymentAllocationRule" mapstructure:"paymentAllocationRule"`
}

// RawPaymentAllocationRule is one payment-side rule as submitted.
type RawPaymentAllocationRule struct {
	TransactionType       string               `json:"transactionType" yaml:"transactionType" mapstructure:"transactionType"`
	FutureInstallmentRule string               `json:"futureInstallmentAllocationRule" yaml:"futureInstallmentAllocationRule" mapstructure:"futureInstallmentAllocationRule"`
	AllocationOrder       []RawAllocationOrder `json:"paymentAllocationOrder" yaml:"paymentAllocationOrder" mapstructure:"paymentAllocationOrder"`
}

// RawCreditAllocationRule is one credit-side rule as submitted. No
// future-installment component.
type RawCreditAllocationRule struct {
	TransactionType string               `json:"transactionType" yaml:"transactionType" mapstructure:"transactionType"`
	AllocationOrder []RawAllocationOrder `json:"creditAllocationOrder" yaml:"creditAllocationOrder" mapstructure:"creditAllocationOrder"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParsePaymentAllocationRules extracts and validates the full payment-side
// rule set for a product. On any defect it returns the collected
// ValidationErrors; the caller must not persist or use the configuration.
func ParsePaymentAllocationRules(raw []RawPaymentAllocationRule, strategyCode string) ([]PaymentAllocationRule, error) {
	var errs ValidationErrors
	rules := make([]PaymentAllocationRule, 0, len(raw))

	for i, r := range raw {
		entries := sortedByOrder(r.AllocationOrder)

		orderOK := true
		if es := validateOrderAndPaymentAllocationType(r.TransactionType, entries); len(es) > 0 {
			errs = append(errs, es...)
			orderOK = false
		}

		rule := PaymentAllocationRule{Order: make([]PaymentAllocationType, 0, len(entries))}
		// Unknown names stay absent here; Validate reports them.
		rule.TransactionType, _ = ParseTransactionType(r.TransactionType)
		rule.FutureInstallmentRule, _ = ParseFutureInstallmentRule(r.FutureInstallmentRule)
		for _, e := range entries {
			t, _ := ParsePaymentAllocationType(e.AllocationType)
			rule.Order = append(rule.Order, t)
		}
		// Order/grouping checks short-circuit within one rule.
		if orderOK {
			if err := checkGrouping(rule.Order); err != nil {
				errs = append(errs, ValidationError{
					Code:    CodeMixedDueTypeGrouping,
					Message: fmt.Sprintf("rule %d: %s", i+1, err.Message),
				})
			}
		}
		rules = append(rules, rule)
	}

	errs = append(errs, validateRules(rules, strategyCode)...)
	if err := errs.orNil(); err != nil {
		return nil, err
	}
	return rules, nil
}

// ParseCreditAllocationRules extracts and validates the credit-side rule
// set. Order length is checked against the registered credit type count.
func ParseCreditAllocationRules(raw []RawCreditAllocationRule, strategyCode string) ([]CreditAllocationRule, error) {
	var errs ValidationErrors
	rules := make([]CreditAllocationRule, 0, len(raw))

	for _, r := range raw {
		entries := sortedByOrder(r.AllocationOrder)

		if es := validateOrderAndCreditAllocationType(r.TransactionType, entries); len(es) > 0 {
			errs = append(errs, es...)
		}

		rule := CreditAllocationRule{Order: make([]CreditAllocationType, 0, len(entries))}
		rule.TransactionType, _ = ParseCreditTransactionType(r.TransactionType)
		for _, e := range entries {
			t, _ := ParseCreditAllocationType(e.AllocationType)
			rule.Order = append(rule.Order, t)
		}
		rules = append(rules, rule)
	}

	errs = append(errs, validateCreditRules(rules, strategyCode)...)
	if err := errs.orNil(); err != nil {
		return nil, err
	}
	return rules, nil
}

func sortedByOrder(entries []RawAllocationOrder) []RawAllocationOrder {
	sorted := make([]RawAllocationOrder, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	return sorted
}
