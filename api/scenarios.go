/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that create realistic loans for testing
	and demos. Each scenario creates a loan and optionally posts a few
	transactions so the ledger shows partially settled installments.

AVAILABLE SCENARIOS:

	progressive-basic:  Six monthly periods with a mid-period disbursement
	down-payment:       25% down payment collected at disbursement
	rate-change:        Nominal rate revision halfway through the term
	delinquent:         Partially paid loan with past-due installments

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "progressive-basic"}

NOTE:

	Scenarios create new loans on every load. Only use in development/demo
	environments.

SEE ALSO:
  - handlers.go: error and JSON helpers
  - server.go: scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/allocation"
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/loan"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "progressive-basic",
		Name:        "Progressive Schedule",
		Description: "192.22 at 9.99%/year over six monthly periods, disbursed mid-period",
	},
	{
		ID:          "down-payment",
		Name:        "Down Payment",
		Description: "1000.00 with a 25% down payment collected at disbursement",
	},
	{
		ID:          "rate-change",
		Name:        "Mid-Term Rate Change",
		Description: "Twelve periods with a rate revision after the sixth",
	},
	{
		ID:          "delinquent",
		Name:        "Delinquent Loan",
		Description: "Partially paid loan with a payment posted against past-due installments",
	},
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario creates the loan(s) for one named scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenarioId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var (
		l   *loan.Loan
		err error
	)
	switch req.ScenarioID {
	case "progressive-basic":
		l, err = h.loadProgressiveBasicScenario(r.Context())
	case "down-payment":
		l, err = h.loadDownPaymentScenario(r.Context())
	case "rate-change":
		l, err = h.loadRateChangeScenario(r.Context())
	case "delinquent":
		l, err = h.loadDelinquentScenario(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "unknown scenario", nil)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(l))
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func demoTerms() engine.LoanTerms {
	return engine.LoanTerms{
		Currency:           engine.USD,
		Principal:          engine.MustMoney(engine.USD, "192.22"),
		AnnualRatePercent:  decimal.RequireFromString("9.99"),
		DisbursementDate:   time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		FirstPeriodStart:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		NumberOfRepayments: 6,
		RepaymentUnit:      engine.RepayMonthly,
		RepayEvery:         1,
		DaysInMonth:        engine.DaysInMonthActual,
		DaysInYear:         engine.DaysInYearActual,
		PreClosureStrategy: engine.TillPreClosureDate,
	}
}

func demoPaymentRules() []allocation.RawPaymentAllocationRule {
	order := make([]allocation.RawAllocationOrder, len(allocation.PaymentAllocationTypes))
	for i, at := range allocation.PaymentAllocationTypes {
		order[i] = allocation.RawAllocationOrder{Order: i + 1, AllocationType: string(at)}
	}
	return []allocation.RawPaymentAllocationRule{{
		TransactionType:       string(allocation.TxDefault),
		FutureInstallmentRule: string(allocation.NextInstallment),
		AllocationOrder:       order,
	}}
}

func demoCreditRules() []allocation.RawCreditAllocationRule {
	order := make([]allocation.RawAllocationOrder, len(allocation.CreditAllocationTypes))
	for i, at := range allocation.CreditAllocationTypes {
		order[i] = allocation.RawAllocationOrder{Order: i + 1, AllocationType: string(at)}
	}
	return []allocation.RawCreditAllocationRule{{
		TransactionType: string(allocation.TxChargeback),
		AllocationOrder: order,
	}}
}

func (h *Handler) loadProgressiveBasicScenario(ctx context.Context) (*loan.Loan, error) {
	return h.Service.CreateLoan(ctx, demoTerms(), allocation.StrategyAdvanced,
		demoPaymentRules(), demoCreditRules(), nil)
}

func (h *Handler) loadDownPaymentScenario(ctx context.Context) (*loan.Loan, error) {
	terms := demoTerms()
	terms.Principal = engine.MustMoney(engine.USD, "1000.00")
	terms.DownPaymentEnabled = true
	terms.DownPaymentPercent = decimal.NewFromInt(25)
	return h.Service.CreateLoan(ctx, terms, allocation.StrategyAdvanced,
		demoPaymentRules(), demoCreditRules(), nil)
}

func (h *Handler) loadRateChangeScenario(ctx context.Context) (*loan.Loan, error) {
	terms := demoTerms()
	terms.Principal = engine.MustMoney(engine.USD, "1200.00")
	terms.DisbursementDate = terms.FirstPeriodStart
	terms.NumberOfRepayments = 12
	terms.RateChanges = []engine.RateChange{{
		EffectiveFrom:     time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC),
		AnnualRatePercent: decimal.RequireFromString("14.50"),
	}}
	return h.Service.CreateLoan(ctx, terms, allocation.StrategyAdvanced,
		demoPaymentRules(), demoCreditRules(), nil)
}

func (h *Handler) loadDelinquentScenario(ctx context.Context) (*loan.Loan, error) {
	l, err := h.Service.CreateLoan(ctx, demoTerms(), allocation.StrategyAdvanced,
		demoPaymentRules(), demoCreditRules(), nil)
	if err != nil {
		return nil, err
	}
	// A partial payment posted after two installments have matured: the
	// past-due bucket absorbs it oldest-first, leaving visible arrears.
	l, _, err = h.Service.PostPayment(ctx, l.ID, allocation.TxRepayment,
		time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
		engine.MustMoney(engine.USD, "40.00"))
	return l, err
}
