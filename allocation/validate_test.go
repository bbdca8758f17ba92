package allocation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/allocation"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// canonicalOrder is the standard penalty-fee-principal-interest ordering,
// past due bucket first: 12 entries, orders 1..12.
func canonicalOrder() []allocation.RawAllocationOrder {
	names := []string{
		"PAST_DUE_PENALTY", "PAST_DUE_FEE", "PAST_DUE_PRINCIPAL", "PAST_DUE_INTEREST",
		"DUE_PENALTY", "DUE_FEE", "DUE_PRINCIPAL", "DUE_INTEREST",
		"IN_ADVANCE_PENALTY", "IN_ADVANCE_FEE", "IN_ADVANCE_PRINCIPAL", "IN_ADVANCE_INTEREST",
	}
	entries := make([]allocation.RawAllocationOrder, len(names))
	for i, n := range names {
		entries[i] = allocation.RawAllocationOrder{Order: i + 1, AllocationType: n}
	}
	return entries
}

func defaultRule() allocation.RawPaymentAllocationRule {
	return allocation.RawPaymentAllocationRule{
		TransactionType:       "DEFAULT",
		FutureInstallmentRule: "NEXT_INSTALLMENT",
		AllocationOrder:       canonicalOrder(),
	}
}

func creditOrder() []allocation.RawAllocationOrder {
	names := []string{"PENALTY", "FEE", "INTEREST", "PRINCIPAL"}
	entries := make([]allocation.RawAllocationOrder, len(names))
	for i, n := range names {
		entries[i] = allocation.RawAllocationOrder{Order: i + 1, AllocationType: n}
	}
	return entries
}

func requireViolation(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var errs allocation.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.True(t, errs.Has(code), "expected code %s in %v", code, errs)
}

// =============================================================================
// ORDER-SEQUENCE LAW
// =============================================================================

func TestParse_CanonicalOrder_Accepted(t *testing.T) {
	rules, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{defaultRule()}, allocation.StrategyAdvanced)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, allocation.TxDefault, rules[0].TransactionType)
	assert.Equal(t, allocation.NextInstallment, rules[0].FutureInstallmentRule)
	assert.Len(t, rules[0].Order, 12)
	assert.Equal(t, allocation.PastDuePenalty, rules[0].Order[0])
}

func TestParse_AnyPermutationOfOrders_Accepted(t *testing.T) {
	// Orders submitted out of sequence are sorted before extraction; any
	// permutation of 1..12 is valid.
	rule := defaultRule()
	entries := rule.AllocationOrder
	// Reverse the submitted order values while keeping due-type runs
	// contiguous once sorted.
	for i := range entries {
		entries[i].Order = 12 - i
	}
	// After sorting by order, the list reads back-to-front.
	rule.AllocationOrder = entries

	rules, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{rule}, allocation.StrategyAdvanced)
	require.NoError(t, err)
	// Sorted by order: the last submitted name comes first.
	assert.Equal(t, allocation.InAdvanceInterest, rules[0].Order[0])
}

func TestParse_WrongEntryCount_Rejected(t *testing.T) {
	rule := defaultRule()
	rule.AllocationOrder = rule.AllocationOrder[:11]

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{rule}, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeWrongEntryCount)
}

func TestParse_GapInOrders_Rejected(t *testing.T) {
	rule := defaultRule()
	rule.AllocationOrder[4].Order = 14 // 1,2,3,4,14,6..12: gap at 5

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{rule}, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeInvalidOrderSequence)
}

func TestParse_DuplicateAllocationType_Rejected(t *testing.T) {
	rule := defaultRule()
	rule.AllocationOrder[1].AllocationType = "PAST_DUE_PENALTY" // appears twice

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{rule}, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeDuplicateAllocationType)
}

func TestParse_UnknownAllocationTypeName_Rejected(t *testing.T) {
	// A name that misses the registry would parse to an absent slot that
	// silently allocates nothing; it must be reported, not tolerated.
	rule := defaultRule()
	rule.AllocationOrder[10].AllocationType = "IN_ADVANCE_BOGUS"

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{rule}, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeInvalidAllocationType)
}

// =============================================================================
// DEFAULT-RULE LAW
// =============================================================================

func TestValidate_MissingDefault_Rejected(t *testing.T) {
	rule := defaultRule()
	rule.TransactionType = "REPAYMENT"

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{rule}, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeMissingDefaultAllocation)
}

func TestValidate_RulesUnderNonAdvancedStrategy_Rejected(t *testing.T) {
	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{defaultRule()}, allocation.StrategyStandard)
	requireViolation(t, err, allocation.CodeRulesNotAllowed)
}

func TestValidate_NoRulesUnderAdvancedStrategy_Rejected(t *testing.T) {
	_, err := allocation.ParsePaymentAllocationRules(nil, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeRulesRequired)
}

func TestValidate_NoRulesUnderStandardStrategy_Accepted(t *testing.T) {
	rules, err := allocation.ParsePaymentAllocationRules(nil, allocation.StrategyStandard)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestValidate_DuplicateTransactionType_Rejected(t *testing.T) {
	second := defaultRule()
	second.TransactionType = "REPAYMENT"
	third := defaultRule()
	third.TransactionType = "REPAYMENT"

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{defaultRule(), second, third},
		allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeDuplicateTransactionType)
}

func TestValidate_UnknownTransactionType_Rejected(t *testing.T) {
	rule := defaultRule()
	rule.TransactionType = "BANK_ERROR_IN_YOUR_FAVOR"

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{defaultRule(), rule}, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeInvalidTransactionType)
}

func TestValidate_UnknownFutureInstallmentRule_Rejected(t *testing.T) {
	rule := defaultRule()
	rule.FutureInstallmentRule = "WHENEVER"

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{rule}, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeInvalidFutureInstallment)
}

// =============================================================================
// GROUPING LAW
// =============================================================================

func TestGrouping_AlternatingDueTypes_Rejected(t *testing.T) {
	// P,D,P,D,... interleaving starts the DUE run before the PAST_DUE run
	// completes.
	names := []string{
		"PAST_DUE_PENALTY", "DUE_PENALTY", "PAST_DUE_FEE", "DUE_FEE",
		"PAST_DUE_PRINCIPAL", "DUE_PRINCIPAL", "PAST_DUE_INTEREST", "DUE_INTEREST",
		"IN_ADVANCE_PENALTY", "IN_ADVANCE_FEE", "IN_ADVANCE_PRINCIPAL", "IN_ADVANCE_INTEREST",
	}
	rule := defaultRule()
	for i, n := range names {
		rule.AllocationOrder[i] = allocation.RawAllocationOrder{Order: i + 1, AllocationType: n}
	}

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{rule}, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeMixedDueTypeGrouping)
}

func TestGrouping_ContiguousBuckets_Accepted(t *testing.T) {
	// Buckets reordered (IN_ADVANCE first) but each contiguous: valid.
	names := []string{
		"IN_ADVANCE_PENALTY", "IN_ADVANCE_FEE", "IN_ADVANCE_PRINCIPAL", "IN_ADVANCE_INTEREST",
		"PAST_DUE_PENALTY", "PAST_DUE_FEE", "PAST_DUE_PRINCIPAL", "PAST_DUE_INTEREST",
		"DUE_PENALTY", "DUE_FEE", "DUE_PRINCIPAL", "DUE_INTEREST",
	}
	rule := defaultRule()
	for i, n := range names {
		rule.AllocationOrder[i] = allocation.RawAllocationOrder{Order: i + 1, AllocationType: n}
	}

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{rule}, allocation.StrategyAdvanced)
	assert.NoError(t, err)
}

// =============================================================================
// INDEPENDENT VIOLATIONS ARE COLLECTED
// =============================================================================

func TestValidate_IndependentViolationsReportedTogether(t *testing.T) {
	// Missing default and duplicate transaction type in one submission:
	// both must surface.
	a := defaultRule()
	a.TransactionType = "REPAYMENT"
	b := defaultRule()
	b.TransactionType = "REPAYMENT"

	_, err := allocation.ParsePaymentAllocationRules(
		[]allocation.RawPaymentAllocationRule{a, b}, allocation.StrategyAdvanced)
	require.Error(t, err)

	var errs allocation.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.True(t, errs.Has(allocation.CodeMissingDefaultAllocation))
	assert.True(t, errs.Has(allocation.CodeDuplicateTransactionType))
	assert.True(t, errors.Is(err, allocation.ErrInvalidAllocationRules))
}

// =============================================================================
// CREDIT SIDE
// =============================================================================

func TestParseCredit_ValidRule_Accepted(t *testing.T) {
	rules, err := allocation.ParseCreditAllocationRules(
		[]allocation.RawCreditAllocationRule{{
			TransactionType: "CHARGEBACK",
			AllocationOrder: creditOrder(),
		}}, allocation.StrategyAdvanced)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Len(t, rules[0].Order, len(allocation.CreditAllocationTypes))
	assert.Equal(t, allocation.CreditPenalty, rules[0].Order[0])
}

func TestParseCredit_CountCheckedAgainstRegistry(t *testing.T) {
	// The credit side is validated against the registered type count, not
	// the payment side's 12.
	short := creditOrder()[:3]
	_, err := allocation.ParseCreditAllocationRules(
		[]allocation.RawCreditAllocationRule{{
			TransactionType: "CHARGEBACK",
			AllocationOrder: short,
		}}, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeWrongEntryCount)
}

func TestParseCredit_UnknownAllocationTypeName_Rejected(t *testing.T) {
	order := creditOrder()
	order[2].AllocationType = "GOODWILL"

	_, err := allocation.ParseCreditAllocationRules(
		[]allocation.RawCreditAllocationRule{{
			TransactionType: "CHARGEBACK",
			AllocationOrder: order,
		}}, allocation.StrategyAdvanced)
	requireViolation(t, err, allocation.CodeInvalidAllocationType)
}
