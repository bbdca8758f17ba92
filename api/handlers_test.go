/*
handlers_test.go - HTTP-level tests for the loan API

Tests run against the full chi router over an in-memory store, exercising
the JSON contract end to end: loan creation, validation failures with the
full violation list, transaction posting and reversal, and payoff quotes.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/allocation"
	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/loan"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer() *httptest.Server {
	svc := loan.NewService(loan.NewMemoryStore(), engine.DefaultMathContext, nil)
	router := api.NewRouter(api.NewHandler(svc, nil))
	return httptest.NewServer(router)
}

func allocationOrderJSON() []map[string]any {
	out := make([]map[string]any, len(allocation.PaymentAllocationTypes))
	for i, at := range allocation.PaymentAllocationTypes {
		out[i] = map[string]any{"order": i + 1, "paymentAllocationRule": string(at)}
	}
	return out
}

func createLoanBody() map[string]any {
	return map[string]any{
		"currencyCode":       "USD",
		"currencyDigits":     2,
		"principal":          "192.22",
		"annualRatePercent":  "9.99",
		"disbursementDate":   "2024-01-15",
		"firstPeriodStart":   "2024-01-01",
		"numberOfRepayments": 6,
		"repaymentUnit":      "MONTHS",
		"repayEvery":         1,

		"transactionProcessingStrategy": allocation.StrategyAdvanced,
		"paymentAllocation": []map[string]any{{
			"transactionType":                 "DEFAULT",
			"futureInstallmentAllocationRule": "NEXT_INSTALLMENT",
			"paymentAllocationOrder":          allocationOrderJSON(),
		}},
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createLoan(t *testing.T, server *httptest.Server) api.LoanDTO {
	t.Helper()
	resp := postJSON(t, server.URL+"/api/loans", createLoanBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[api.LoanDTO](t, resp)
}

// postedResponse is the PostTransaction response shape.
type postedResponse struct {
	Transaction api.TransactionDTO `json:"transaction"`
	Schedule    api.ScheduleDTO    `json:"schedule"`
}

// =============================================================================
// LOAN CREATION
// =============================================================================

func TestAPI_CreateLoan(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	dto := createLoan(t, server)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "32.85", dto.Schedule.EMI)
	require.Len(t, dto.Schedule.Installments, 6)
	assert.Equal(t, "31.97", dto.Schedule.Installments[0].PrincipalDue)
	assert.Equal(t, "0.88", dto.Schedule.Installments[0].InterestDue)
	assert.Equal(t, "0.00", dto.Schedule.Installments[5].ClosingBalance)
}

func TestAPI_CreateLoan_InvalidRules_ReturnsViolations(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	body := createLoanBody()
	rules := body["paymentAllocation"].([]map[string]any)
	rules[0]["paymentAllocationOrder"] = allocationOrderJSON()[:10]

	resp := postJSON(t, server.URL+"/api/loans", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errBody := decode[api.ErrorResponse](t, resp)
	require.NotEmpty(t, errBody.Violations)
	codes := make([]string, len(errBody.Violations))
	for i, v := range errBody.Violations {
		codes[i] = v.Code
	}
	assert.Contains(t, codes, allocation.CodeWrongEntryCount)
}

func TestAPI_CreateLoan_InvalidTerms(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	body := createLoanBody()
	body["principal"] = "0.00"

	resp := postJSON(t, server.URL+"/api/loans", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetLoan_NotFound(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/loans/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestAPI_PostPayment_UpdatesSchedule(t *testing.T) {
	server := newTestServer()
	defer server.Close()
	dto := createLoan(t, server)

	resp := postJSON(t, fmt.Sprintf("%s/api/loans/%s/transactions", server.URL, dto.ID),
		map[string]any{
			"kind":            "payment",
			"transactionType": "REPAYMENT",
			"date":            "2024-02-01",
			"amount":          "32.85",
		})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	posted := decode[postedResponse](t, resp)

	assert.NotEmpty(t, posted.Transaction.ID)
	assert.True(t, posted.Schedule.Installments[0].ObligationsMet)
	assert.Equal(t, "31.97", posted.Schedule.Installments[0].PrincipalPaid)
}

func TestAPI_ReverseTransaction(t *testing.T) {
	server := newTestServer()
	defer server.Close()
	dto := createLoan(t, server)

	resp := postJSON(t, fmt.Sprintf("%s/api/loans/%s/transactions", server.URL, dto.ID),
		map[string]any{
			"kind":   "payment",
			"date":   "2024-02-01",
			"amount": "32.85",
		})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	posted := decode[postedResponse](t, resp)

	reverseURL := fmt.Sprintf("%s/api/loans/%s/transactions/%s/reverse",
		server.URL, dto.ID, posted.Transaction.ID)

	resp = postJSON(t, reverseURL, map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reversed := decode[api.LoanDTO](t, resp)
	assert.False(t, reversed.Schedule.Installments[0].ObligationsMet)
	assert.Equal(t, "0.00", reversed.Schedule.Installments[0].PrincipalPaid)

	// Reversing the same posting again conflicts.
	resp = postJSON(t, reverseURL, map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// PAYOFF
// =============================================================================

func TestAPI_PayoffQuote(t *testing.T) {
	server := newTestServer()
	defer server.Close()
	dto := createLoan(t, server)

	resp, err := http.Get(fmt.Sprintf("%s/api/loans/%s/payoff?date=2024-01-01", server.URL, dto.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	quote := decode[api.PayoffDTO](t, resp)
	assert.Equal(t, "192.22", quote.Total)
	assert.Equal(t, "0.00", quote.Interest)
}

func TestAPI_PayoffQuote_MissingDate(t *testing.T) {
	server := newTestServer()
	defer server.Close()
	dto := createLoan(t, server)

	resp, err := http.Get(fmt.Sprintf("%s/api/loans/%s/payoff", server.URL, dto.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestAPI_Scenarios(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/scenarios")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]api.ScenarioDTO](t, resp)
	assert.NotEmpty(t, list)

	resp = postJSON(t, server.URL+"/api/scenarios/load",
		map[string]any{"scenarioId": "progressive-basic"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	loaded := decode[api.LoanDTO](t, resp)
	assert.Len(t, loaded.Schedule.Installments, 6)

	resp = postJSON(t, server.URL+"/api/scenarios/load",
		map[string]any{"scenarioId": "nope"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
