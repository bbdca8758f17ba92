/*
handlers.go - HTTP handlers for the loan engine

PURPOSE:
  Thin HTTP layer over loan.Service. Handlers follow a consistent pattern:
  1. Parse/validate request
  2. Call domain logic
  3. Serialize response
  4. Handle errors

ERROR HANDLING:
  - 400: invalid input, allocation rule validation failures (with the full
         violation list so one submission reports every defect)
  - 404: unknown loan or transaction
  - 409: double reversal
  - 500: everything else

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/loan-engine/allocation"
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/loan"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *loan.Service
	Log     *zap.Logger
}

// NewHandler creates a handler around the loan service.
func NewHandler(svc *loan.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Service: svc, Log: log}
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// CreateLoan validates the submitted configuration, generates the schedule
// and persists the loan.
// POST /api/loans
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	terms, holidays, err := termsFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan terms", err)
		return
	}

	l, err := h.Service.CreateLoan(r.Context(), terms, req.TransactionProcessingStrategy,
		req.PaymentAllocations, req.CreditAllocations, holidays)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(l))
}

// ListLoans returns all loans.
// GET /api/loans
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Service.ListLoans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list loans", err)
		return
	}
	dtos := make([]LoanDTO, len(loans))
	for i, l := range loans {
		dtos[i] = toLoanDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLoan returns one loan with its schedule.
// GET /api/loans/{id}
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	l, err := h.Service.Loan(r.Context(), loan.ID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(l))
}

// GetSchedule returns just the schedule.
// GET /api/loans/{id}/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	l, err := h.Service.Loan(r.Context(), loan.ID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(l.Schedule))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// PostTransaction applies a payment or chargeback to the loan.
// POST /api/loans/{id}/transactions
func (h *Handler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	id := loan.ID(chi.URLParam(r, "id"))

	var req PostTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}

	l, err := h.Service.Loan(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	amount, err := engine.NewMoneyFromString(l.Schedule.Currency, req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}

	var tx loan.Transaction
	switch req.Kind {
	case "chargeback":
		l, tx, err = h.Service.PostChargeback(r.Context(), id, date, amount)
	default:
		txType, ok := allocation.ParseTransactionType(req.Type)
		if !ok {
			txType = allocation.TxRepayment
		}
		l, tx, err = h.Service.PostPayment(r.Context(), id, txType, date, amount)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Transaction TransactionDTO `json:"transaction"`
		Schedule    ScheduleDTO    `json:"schedule"`
	}{
		Transaction: toTransactionDTO(tx, l.Schedule.Currency.Digits),
		Schedule:    toScheduleDTO(l.Schedule),
	})
}

// ListTransactions returns the loan's posting history.
// GET /api/loans/{id}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	l, err := h.Service.Loan(r.Context(), loan.ID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TransactionDTO, len(l.Transactions))
	for i, t := range l.Transactions {
		dtos[i] = toTransactionDTO(t, l.Schedule.Currency.Digits)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReverseTransaction appends the compensating mutation for a posting.
// POST /api/loans/{id}/transactions/{txID}/reverse
func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	l, err := h.Service.ReverseTransaction(r.Context(),
		loan.ID(chi.URLParam(r, "id")), chi.URLParam(r, "txID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(l))
}

// =============================================================================
// PAYOFF HANDLER
// =============================================================================

// GetPayoff quotes the amount required to close the loan on a date.
// GET /api/loans/{id}/payoff?date=2024-03-01
func (h *Handler) GetPayoff(w http.ResponseWriter, r *http.Request) {
	id := loan.ID(chi.URLParam(r, "id"))
	asOf, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing date", err)
		return
	}

	l, err := h.Service.Loan(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	quote, err := h.Service.PayoffQuote(r.Context(), id, asOf, nil)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoffDTO(quote, l.Schedule.Currency.Digits))
}

// =============================================================================
// HELPERS
// =============================================================================

func termsFromRequest(req CreateLoanRequest) (engine.LoanTerms, []engine.Holiday, error) {
	cur := engine.Currency{Code: req.CurrencyCode, Digits: req.CurrencyDigits}
	if cur.Code == "" {
		cur = engine.USD
	}

	principal, err := engine.NewMoneyFromString(cur, req.Principal)
	if err != nil {
		return engine.LoanTerms{}, nil, err
	}
	rate, err := decimal.NewFromString(req.AnnualRatePercent)
	if err != nil {
		return engine.LoanTerms{}, nil, err
	}
	disb, err := time.Parse(dateLayout, req.DisbursementDate)
	if err != nil {
		return engine.LoanTerms{}, nil, err
	}
	firstStart := disb
	if req.FirstPeriodStart != "" {
		if firstStart, err = time.Parse(dateLayout, req.FirstPeriodStart); err != nil {
			return engine.LoanTerms{}, nil, err
		}
	}

	terms := engine.LoanTerms{
		Currency:           cur,
		Principal:          principal,
		AnnualRatePercent:  rate,
		DisbursementDate:   disb,
		FirstPeriodStart:   firstStart,
		NumberOfRepayments: req.NumberOfRepayments,
		RepaymentUnit:      engine.RepaymentUnit(defaultStr(req.RepaymentUnit, string(engine.RepayMonthly))),
		RepayEvery:         req.RepayEvery,
		DaysInMonth:        engine.DaysInMonthType(defaultStr(req.DaysInMonth, string(engine.DaysInMonthActual))),
		DaysInYear:         engine.DaysInYearType(defaultStr(req.DaysInYear, string(engine.DaysInYearActual))),
		DownPaymentEnabled: req.DownPaymentEnabled,
		PreClosureStrategy: engine.PreClosureStrategy(defaultStr(req.PreClosureStrategy, string(engine.TillPreClosureDate))),
	}
	if req.DownPaymentEnabled {
		if terms.DownPaymentPercent, err = decimal.NewFromString(req.DownPaymentPercent); err != nil {
			return engine.LoanTerms{}, nil, err
		}
	}

	holidays := make([]engine.Holiday, 0, len(req.Holidays))
	for _, h := range req.Holidays {
		d, err := time.Parse(dateLayout, h)
		if err != nil {
			return engine.LoanTerms{}, nil, err
		}
		holidays = append(holidays, engine.Holiday{Date: d})
	}
	return terms, holidays, terms.Validate()
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine/allocation/loan errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var violations allocation.ValidationErrors
	switch {
	case errors.As(err, &violations):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:      "invalid allocation rules",
			Violations: violations,
		})
	case errors.Is(err, loan.ErrLoanNotFound), errors.Is(err, loan.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, loan.ErrAlreadyReversed):
		writeError(w, http.StatusConflict, "already reversed", err)
	case errors.Is(err, loan.ErrNotReversible):
		writeError(w, http.StatusConflict, "not reversible", err)
	case errors.Is(err, engine.ErrInvalidTerms), errors.Is(err, engine.ErrCurrencyMismatch):
		writeError(w, http.StatusBadRequest, "invalid input", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
