/*
errors.go - Structured configuration validation errors

Configuration defects are deterministic and non-retryable: the rule set is
wrong and must be fixed by whoever submitted it. Independent checks are all
collected into one ValidationErrors list so a single submission reports
every defect at once; per-rule order and grouping checks short-circuit
within their rule.
*/
package allocation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAllocationRules is the sentinel every ValidationErrors value
// unwraps to.
var ErrInvalidAllocationRules = errors.New("invalid allocation rules")

// Validation codes. Each maps to exactly one constraint from the rule
// contract.
const (
	CodeRulesNotAllowed          = "RULES_NOT_ALLOWED"
	CodeRulesRequired            = "RULES_REQUIRED"
	CodeMissingDefaultAllocation = "MISSING_DEFAULT_ALLOCATION"
	CodeDuplicateTransactionType = "DUPLICATE_TRANSACTION_TYPE"
	CodeInvalidTransactionType   = "INVALID_TRANSACTION_TYPE"
	CodeInvalidFutureInstallment = "INVALID_FUTURE_INSTALLMENT_RULE"
	CodeWrongEntryCount          = "WRONG_ENTRY_COUNT"
	CodeDuplicateAllocationType  = "DUPLICATE_ALLOCATION_TYPE"
	CodeInvalidAllocationType    = "INVALID_ALLOCATION_TYPE"
	CodeInvalidOrderSequence     = "INVALID_ORDER_SEQUENCE"
	CodeMixedDueTypeGrouping     = "MIXED_DUE_TYPE_GROUPING"
)

// ValidationError is one (code, message) pair, with enough context to tell
// the submitter which rule broke which constraint.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

// ValidationErrors is the collected result of validating one configuration
// submission.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("invalid allocation rules: %s", strings.Join(msgs, "; "))
}

func (e ValidationErrors) Unwrap() error { return ErrInvalidAllocationRules }

// Has reports whether any collected error carries the given code.
func (e ValidationErrors) Has(code string) bool {
	for _, v := range e {
		if v.Code == code {
			return true
		}
	}
	return false
}

// orNil converts an empty collection to a nil error.
func (e ValidationErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
