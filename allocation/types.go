/*
Package allocation implements the payment and credit allocation rule engine.

PURPOSE:
  A loan product configured with the advanced allocation strategy carries an
  ordered rule set describing exactly how an incoming payment is spread
  across the outstanding principal, interest, fees and penalties of past
  due, currently due and future installments. This package parses that
  configuration, validates its ordering and grouping constraints, and
  applies validated rules to an installment ledger.

KEY CONCEPTS:
  - PaymentAllocationType: one of the 12 (due type x component) slots
  - PaymentAllocationRule: a transaction type's full 12-slot ordering plus
    its future-installment rule
  - CreditAllocationRule: the credit-side (chargeback) analogue over the
    4 component types
  - Registries: name -> type lookups; unknown names parse to absent and are
    rejected later by validation, not at parse time

WHY ORDERING AND GROUPING MATTER:
  Application walks installments bucket by bucket (past due, due, in
  advance) in the configured order, and inside a bucket applies the four
  components in their configured sub-order. Interleaving due types inside
  the 12-slot list would make that walk ambiguous, so grouping is enforced
  up front, before a rule can ever be persisted.

SEE ALSO:
  - validate.go: the constraint checks
  - apply.go: how a validated order drives money distribution
*/
package allocation

import "github.com/warp/loan-engine/engine"

// =============================================================================
// STRATEGY CODES
// =============================================================================

const (
	// StrategyAdvanced enables configurable allocation rules. Every other
	// strategy forbids them.
	StrategyAdvanced = "advanced-payment-allocation-strategy"

	// StrategyStandard is the fixed penalty-fee-interest-principal ordering
	// that needs no configuration.
	StrategyStandard = "standard-payment-strategy"
)

// =============================================================================
// PAYMENT ALLOCATION TYPES - the 12 slots
// =============================================================================

// PaymentAllocationType is one (due type, component) slot of a payment
// allocation order. The empty string means "absent" (unknown name at parse
// time).
type PaymentAllocationType string

const (
	PastDuePenalty     PaymentAllocationType = "PAST_DUE_PENALTY"
	PastDueFee         PaymentAllocationType = "PAST_DUE_FEE"
	PastDuePrincipal   PaymentAllocationType = "PAST_DUE_PRINCIPAL"
	PastDueInterest    PaymentAllocationType = "PAST_DUE_INTEREST"
	DuePenalty         PaymentAllocationType = "DUE_PENALTY"
	DueFee             PaymentAllocationType = "DUE_FEE"
	DuePrincipal       PaymentAllocationType = "DUE_PRINCIPAL"
	DueInterest        PaymentAllocationType = "DUE_INTEREST"
	InAdvancePenalty   PaymentAllocationType = "IN_ADVANCE_PENALTY"
	InAdvanceFee       PaymentAllocationType = "IN_ADVANCE_FEE"
	InAdvancePrincipal PaymentAllocationType = "IN_ADVANCE_PRINCIPAL"
	InAdvanceInterest  PaymentAllocationType = "IN_ADVANCE_INTEREST"
)

// PaymentAllocationTypes is the registry of all slots. Its length is the
// required entry count of every payment allocation order.
var PaymentAllocationTypes = []PaymentAllocationType{
	PastDuePenalty, PastDueFee, PastDuePrincipal, PastDueInterest,
	DuePenalty, DueFee, DuePrincipal, DueInterest,
	InAdvancePenalty, InAdvanceFee, InAdvancePrincipal, InAdvanceInterest,
}

var paymentAllocationComponents = map[PaymentAllocationType]engine.Component{
	PastDuePenalty: engine.ComponentPenalty, DuePenalty: engine.ComponentPenalty, InAdvancePenalty: engine.ComponentPenalty,
	PastDueFee: engine.ComponentFee, DueFee: engine.ComponentFee, InAdvanceFee: engine.ComponentFee,
	PastDuePrincipal: engine.ComponentPrincipal, DuePrincipal: engine.ComponentPrincipal, InAdvancePrincipal: engine.ComponentPrincipal,
	PastDueInterest: engine.ComponentInterest, DueInterest: engine.ComponentInterest, InAdvanceInterest: engine.ComponentInterest,
}

var paymentAllocationDueTypes = map[PaymentAllocationType]engine.DueType{
	PastDuePenalty: engine.PastDue, PastDueFee: engine.PastDue, PastDuePrincipal: engine.PastDue, PastDueInterest: engine.PastDue,
	DuePenalty: engine.Due, DueFee: engine.Due, DuePrincipal: engine.Due, DueInterest: engine.Due,
	InAdvancePenalty: engine.InAdvance, InAdvanceFee: engine.InAdvance, InAdvancePrincipal: engine.InAdvance, InAdvanceInterest: engine.InAdvance,
}

// Component returns the principal/interest/fee/penalty component this slot
// targets.
func (t PaymentAllocationType) Component() engine.Component {
	return paymentAllocationComponents[t]
}

// DueType returns which installment bucket this slot targets.
func (t PaymentAllocationType) DueType() engine.DueType {
	return paymentAllocationDueTypes[t]
}

// ParsePaymentAllocationType looks a name up in the registry. Unknown names
// yield the absent value and ok=false; that is not an error until
// validation runs.
func ParsePaymentAllocationType(name string) (PaymentAllocationType, bool) {
	t := PaymentAllocationType(name)
	_, known := paymentAllocationComponents[t]
	if !known {
		return "", false
	}
	return t, true
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// TransactionType names the kind of incoming transaction a rule applies to.
// Absent (empty) means the configured name was not recognized.
type TransactionType string

const (
	// TxDefault is the mandatory fallback rule: it handles every
	// transaction type without a rule of its own.
	TxDefault TransactionType = "DEFAULT"

	TxRepayment             TransactionType = "REPAYMENT"
	TxDownPayment           TransactionType = "DOWN_PAYMENT"
	TxMerchantIssuedRefund  TransactionType = "MERCHANT_ISSUED_REFUND"
	TxPayoutRefund          TransactionType = "PAYOUT_REFUND"
	TxGoodwillCredit        TransactionType = "GOODWILL_CREDIT"
	TxChargeAdjustment      TransactionType = "CHARGE_ADJUSTMENT"
	TxInterestPaymentWaiver TransactionType = "INTEREST_PAYMENT_WAIVER"
)

var transactionTypes = map[TransactionType]struct{}{
	TxDefault: {}, TxRepayment: {}, TxDownPayment: {}, TxMerchantIssuedRefund: {},
	TxPayoutRefund: {}, TxGoodwillCredit: {}, TxChargeAdjustment: {}, TxInterestPaymentWaiver: {},
}

// ParseTransactionType resolves a configured name; unknown -> absent.
func ParseTransactionType(name string) (TransactionType, bool) {
	t := TransactionType(name)
	_, known := transactionTypes[t]
	if !known {
		return "", false
	}
	return t, true
}

// =============================================================================
// FUTURE INSTALLMENT ALLOCATION
// =============================================================================

// FutureInstallmentAllocationRule decides which future installment an
// in-advance slot pays down.
type FutureInstallmentAllocationRule string

const (
	// NextInstallment pays the earliest future installment first.
	NextInstallment FutureInstallmentAllocationRule = "NEXT_INSTALLMENT"

	// LastInstallment pays the final installment first, shortening the loan
	// from the tail.
	LastInstallment FutureInstallmentAllocationRule = "LAST_INSTALLMENT"

	// Reamortization spreads the amount evenly over all future installments.
	Reamortization FutureInstallmentAllocationRule = "REAMORTIZATION"
)

var futureInstallmentRules = map[FutureInstallmentAllocationRule]struct{}{
	NextInstallment: {}, LastInstallment: {}, Reamortization: {},
}

// ParseFutureInstallmentRule resolves a configured name; unknown -> absent.
func ParseFutureInstallmentRule(name string) (FutureInstallmentAllocationRule, bool) {
	r := FutureInstallmentAllocationRule(name)
	_, known := futureInstallmentRules[r]
	if !known {
		return "", false
	}
	return r, true
}

// =============================================================================
// CREDIT (CHARGEBACK) SIDE
// =============================================================================

// CreditTransactionType names a credit-side transaction.
type CreditTransactionType string

const (
	TxChargeback CreditTransactionType = "CHARGEBACK"
)

var creditTransactionTypes = map[CreditTransactionType]struct{}{
	TxChargeback: {},
}

// ParseCreditTransactionType resolves a configured name; unknown -> absent.
func ParseCreditTransactionType(name string) (CreditTransactionType, bool) {
	t := CreditTransactionType(name)
	_, known := creditTransactionTypes[t]
	if !known {
		return "", false
	}
	return t, true
}

// CreditAllocationType is one component slot of a credit allocation order.
type CreditAllocationType string

const (
	CreditPenalty   CreditAllocationType = "PENALTY"
	CreditFee       CreditAllocationType = "FEE"
	CreditInterest  CreditAllocationType = "INTEREST"
	CreditPrincipal CreditAllocationType = "PRINCIPAL"
)

// CreditAllocationTypes is the registry of credit slots. Order length is
// validated against its size, never a hard-coded literal.
var CreditAllocationTypes = []CreditAllocationType{
	CreditPenalty, CreditFee, CreditInterest, CreditPrincipal,
}

var creditAllocationComponents = map[CreditAllocationType]engine.Component{
	CreditPenalty:   engine.ComponentPenalty,
	CreditFee:       engine.ComponentFee,
	CreditInterest:  engine.ComponentInterest,
	CreditPrincipal: engine.ComponentPrincipal,
}

// Component returns the installment component this credit slot targets.
func (t CreditAllocationType) Component() engine.Component {
	return creditAllocationComponents[t]
}

// ParseCreditAllocationType resolves a configured name; unknown -> absent.
func ParseCreditAllocationType(name string) (CreditAllocationType, bool) {
	t := CreditAllocationType(name)
	_, known := creditAllocationComponents[t]
	if !known {
		return "", false
	}
	return t, true
}

// =============================================================================
// PARSED RULES
// =============================================================================

// PaymentAllocationRule is one transaction type's validated allocation
// ordering: all 12 slots, each exactly once, grouped by due type.
type PaymentAllocationRule struct {
	TransactionType       TransactionType
	FutureInstallmentRule FutureInstallmentAllocationRule
	Order                 []PaymentAllocationType
}

// CreditAllocationRule is the credit-side analogue. No future-installment
// rule: credits always land on the latest installment.
type CreditAllocationRule struct {
	TransactionType CreditTransactionType
	Order           []CreditAllocationType
}

// RuleFor selects the rule for a transaction type, falling back to DEFAULT.
// A validated rule set always contains a DEFAULT rule, so ok is only false
// for unvalidated input.
func RuleFor(rules []PaymentAllocationRule, txType TransactionType) (PaymentAllocationRule, bool) {
	var fallback PaymentAllocationRule
	found := false
	for _, r := range rules {
		if r.TransactionType == txType {
			return r, true
		}
		if r.TransactionType == TxDefault {
			fallback = r
			found = true
		}
	}
	return fallback, found
}
