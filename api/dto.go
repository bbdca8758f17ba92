/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the engine
  model from the external contract. Amounts and rates travel as strings so
  they never pass through float64 on either side.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - allocation/parse.go: Raw rule payload shapes reused verbatim
*/
package api

import (
	"time"

	"github.com/warp/loan-engine/allocation"
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/loan"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUESTS
// =============================================================================

// CreateLoanRequest carries the full loan definition: terms plus the
// allocation rule configuration for the chosen processing strategy.
type CreateLoanRequest struct {
	CurrencyCode   string `json:"currencyCode"`
	CurrencyDigits int32  `json:"currencyDigits"`

	Principal          string `json:"principal"`
	AnnualRatePercent  string `json:"annualRatePercent"`
	DisbursementDate   string `json:"disbursementDate"`
	FirstPeriodStart   string `json:"firstPeriodStart"`
	NumberOfRepayments int    `json:"numberOfRepayments"`
	RepaymentUnit      string `json:"repaymentUnit"`
	RepayEvery         int    `json:"repayEvery"`
	DaysInMonth        string `json:"daysInMonthType"`
	DaysInYear         string `json:"daysInYearType"`
	DownPaymentEnabled bool   `json:"downPaymentEnabled"`
	DownPaymentPercent string `json:"downPaymentPercent"`
	PreClosureStrategy string `json:"preClosureInterestCalculationStrategy"`

	TransactionProcessingStrategy string                                 `json:"transactionProcessingStrategy"`
	PaymentAllocations            []allocation.RawPaymentAllocationRule  `json:"paymentAllocation"`
	CreditAllocations             []allocation.RawCreditAllocationRule   `json:"creditAllocation"`

	Holidays []string `json:"holidays"`
}

// PostTransactionRequest posts a payment or chargeback against a loan.
type PostTransactionRequest struct {
	Kind   string `json:"kind"` // payment | chargeback
	Type   string `json:"transactionType"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// InstallmentDTO is one repayment period in API responses.
type InstallmentDTO struct {
	Number         int    `json:"number"`
	FromDate       string `json:"fromDate"`
	DueDate        string `json:"dueDate"`
	PrincipalDue   string `json:"principalDue"`
	InterestDue    string `json:"interestDue"`
	FeeDue         string `json:"feeDue"`
	PenaltyDue     string `json:"penaltyDue"`
	TotalDue       string `json:"totalDue"`
	PrincipalPaid  string `json:"principalPaid"`
	InterestPaid   string `json:"interestPaid"`
	FeePaid        string `json:"feePaid"`
	PenaltyPaid    string `json:"penaltyPaid"`
	Outstanding    string `json:"totalOutstanding"`
	ClosingBalance string `json:"closingBalance"`
	ObligationsMet bool   `json:"obligationsMet"`
}

// ScheduleDTO is the generated schedule in API responses.
type ScheduleDTO struct {
	Currency          string           `json:"currency"`
	DisbursementDate  string           `json:"disbursementDate"`
	DisbursedAmount   string           `json:"disbursedAmount"`
	DownPaymentAmount string           `json:"downPaymentAmount,omitempty"`
	EMI               string           `json:"emi"`
	TotalPrincipal    string           `json:"totalPrincipal"`
	TotalInterest     string           `json:"totalInterest"`
	Installments      []InstallmentDTO `json:"installments"`
}

// LoanDTO summarizes a loan.
type LoanDTO struct {
	ID        string      `json:"id"`
	Strategy  string      `json:"transactionProcessingStrategy"`
	CreatedAt time.Time   `json:"createdAt"`
	Schedule  ScheduleDTO `json:"schedule"`
}

// TransactionDTO is one posting in API responses.
type TransactionDTO struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Type       string `json:"transactionType,omitempty"`
	Date       string `json:"date"`
	Amount     string `json:"amount"`
	Reversed   bool   `json:"reversed"`
	ReversesID string `json:"reversesId,omitempty"`
}

// PayoffDTO is the payoff quote response.
type PayoffDTO struct {
	AsOf      string `json:"asOf"`
	Principal string `json:"principal"`
	Interest  string `json:"interest"`
	Fee       string `json:"fee"`
	Penalty   string `json:"penalty"`
	Total     string `json:"total"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error      string                       `json:"error"`
	Details    string                       `json:"details,omitempty"`
	Violations []allocation.ValidationError `json:"violations,omitempty"`
}

// =============================================================================
// MAPPING
// =============================================================================

func toScheduleDTO(s engine.ScheduleModel) ScheduleDTO {
	dto := ScheduleDTO{
		Currency:         s.Currency.Code,
		DisbursementDate: s.Disbursement.Date.Format(dateLayout),
		DisbursedAmount:  s.Disbursement.Amount.Amount().StringFixed(s.Currency.Digits),
		EMI:              s.EMI.Amount().StringFixed(s.Currency.Digits),
		TotalPrincipal:   s.TotalPrincipal().Amount().StringFixed(s.Currency.Digits),
		TotalInterest:    s.TotalInterest().Amount().StringFixed(s.Currency.Digits),
		Installments:     make([]InstallmentDTO, 0, len(s.Installments)),
	}
	if s.DownPayment != nil {
		dto.DownPaymentAmount = s.DownPayment.Amount.Amount().StringFixed(s.Currency.Digits)
	}
	for i, inst := range s.Installments {
		dto.Installments = append(dto.Installments, toInstallmentDTO(inst, s, i))
	}
	return dto
}

func toInstallmentDTO(inst engine.Installment, s engine.ScheduleModel, idx int) InstallmentDTO {
	digits := s.Currency.Digits
	return InstallmentDTO{
		Number:         inst.Number,
		FromDate:       inst.From.Format(dateLayout),
		DueDate:        inst.DueOn.Format(dateLayout),
		PrincipalDue:   inst.PrincipalDue.Amount().StringFixed(digits),
		InterestDue:    inst.InterestDue.Amount().StringFixed(digits),
		FeeDue:         inst.FeeDue.Amount().StringFixed(digits),
		PenaltyDue:     inst.PenaltyDue.Amount().StringFixed(digits),
		TotalDue:       inst.TotalDue().Amount().StringFixed(digits),
		PrincipalPaid:  inst.PrincipalPaid.Amount().StringFixed(digits),
		InterestPaid:   inst.InterestPaid.Amount().StringFixed(digits),
		FeePaid:        inst.FeePaid.Amount().StringFixed(digits),
		PenaltyPaid:    inst.PenaltyPaid.Amount().StringFixed(digits),
		Outstanding:    inst.TotalOutstanding().Amount().StringFixed(digits),
		ClosingBalance: s.ClosingBalance(idx).Amount().StringFixed(digits),
		ObligationsMet: inst.ObligationsMet,
	}
}

func toLoanDTO(l *loan.Loan) LoanDTO {
	return LoanDTO{
		ID:        string(l.ID),
		Strategy:  l.Strategy,
		CreatedAt: l.CreatedAt,
		Schedule:  toScheduleDTO(l.Schedule),
	}
}

func toTransactionDTO(t loan.Transaction, digits int32) TransactionDTO {
	return TransactionDTO{
		ID:         t.ID,
		Kind:       string(t.Kind),
		Type:       string(t.Type),
		Date:       t.Date.Format(dateLayout),
		Amount:     t.Amount.Amount().StringFixed(digits),
		Reversed:   t.Reversed,
		ReversesID: t.ReversesID,
	}
}

func toPayoffDTO(o engine.OutstandingAmounts, digits int32) PayoffDTO {
	return PayoffDTO{
		AsOf:      o.AsOf.Format(dateLayout),
		Principal: o.Principal.Amount().StringFixed(digits),
		Interest:  o.Interest.Amount().StringFixed(digits),
		Fee:       o.Fee.Amount().StringFixed(digits),
		Penalty:   o.Penalty.Amount().StringFixed(digits),
		Total:     o.Total().Amount().StringFixed(digits),
	}
}
