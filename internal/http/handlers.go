package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"contas/internal/core"
	"contas/internal/ledger"
)

// Amounts travel as decimal strings so clients never round them
// through float64.
type (
	balanceResponse struct {
		AccountID string `json:"account_id"`
		Total     string `json:"total"`
		Available string `json:"available"`
		Allocated string `json:"allocated"`
	}

	limitsResponse struct {
		CardID    string `json:"card_id"`
		Total     string `json:"total"`
		Available string `json:"available"`
	}

	invoiceResponse struct {
		CardID          string `json:"card_id"`
		PeriodStart     string `json:"period_start"`
		PeriodEnd       string `json:"period_end"`
		Expenses        string `json:"expenses"`
		Payments        string `json:"payments"`
		PreviousBalance string `json:"previous_balance"`
		Total           string `json:"total"`
		Paid            bool   `json:"paid"`
	}

	allocationRequest struct {
		Kind          string `json:"kind"`
		BankAccountID string `json:"bank_account_id"`
		CreditCardID  string `json:"credit_card_id"`
		Amount        string `json:"amount"`
		Description   string `json:"description"`
	}

	allocationResponse struct {
		TransactionID string `json:"transaction_id"`
		Kind          string `json:"kind"`
		BankAccountID string `json:"bank_account_id"`
		CreditCardID  string `json:"credit_card_id"`
		Amount        string `json:"amount"`
		Date          string `json:"date"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	key := "balance:" + id
	b, found := s.balanceCache.Get(key)
	if !found {
		var err error
		b, err = s.svc.AccountBalance(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.balanceCache.Set(key, b)
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: id,
		Total:     b.Total.String(),
		Available: b.Available.String(),
		Allocated: b.Allocated.String(),
	})
}

func (s *Server) handleCardAllocated(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	cardID := r.PathValue("cardID")

	key := "allocated:" + accountID + ":" + cardID
	b, found := s.balanceCache.Get(key)
	if !found {
		var err error
		b, err = s.svc.CardAllocated(r.Context(), accountID, cardID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.balanceCache.Set(key, b)
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: accountID,
		Total:     b.Total.String(),
		Available: b.Available.String(),
		Allocated: b.Allocated.String(),
	})
}

func (s *Server) handleCardLimits(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	key := "limits:" + id
	l, found := s.limitsCache.Get(key)
	if !found {
		var err error
		l, err = s.svc.CardLimits(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.limitsCache.Set(key, l)
	}

	writeJSON(w, http.StatusOK, limitsResponse{
		CardID:    id,
		Total:     l.Total.String(),
		Available: l.Available.String(),
	})
}

func (s *Server) handleCardInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ref := time.Now()
	if v := strings.TrimSpace(r.URL.Query().Get("ref")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "ref must be formatted YYYY-MM-DD"})
			return
		}
		ref = parsed
	}

	inv, err := s.svc.CardInvoice(r.Context(), id, ref)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, invoiceResponse{
		CardID:          id,
		PeriodStart:     inv.PeriodStart.Format("2006-01-02"),
		PeriodEnd:       inv.PeriodEnd.Format("2006-01-02"),
		Expenses:        inv.Expenses.String(),
		Payments:        inv.Payments.String(),
		PreviousBalance: inv.PreviousBalance.String(),
		Total:           inv.Total.String(),
		Paid:            inv.Paid,
	})
}

func (s *Server) handleCreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: core.ErrInvalidAmount.Error()})
		return
	}

	var cmd core.Command
	switch strings.ToLower(strings.TrimSpace(req.Kind)) {
	case "allocate":
		cmd = core.Allocate(req.BankAccountID, req.CreditCardID, amount)
	case "deallocate":
		cmd = core.Deallocate(req.BankAccountID, req.CreditCardID, amount)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "kind must be allocate or deallocate"})
		return
	}

	t, err := s.svc.Execute(r.Context(), cmd, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if s.reconciler != nil {
		// The commit is durable either way; a visibility timeout only
		// means a follow-up read may briefly miss the row.
		if err := s.reconciler.WaitVisible(r.Context(), t.AccountID, t.ID); err != nil {
			slog.WarnContext(r.Context(), "Committed allocation not yet visible",
				"error", err, "transaction_id", t.ID)
		}
	}

	// The commit changed the bank balance, the card's net collateral
	// and the card's derived limits. Drop every cached read that could
	// now be stale.
	s.balanceCache.InvalidatePrefix("balance:" + cmd.BankAccountID)
	s.balanceCache.InvalidatePrefix("allocated:" + cmd.BankAccountID)
	s.balanceCache.InvalidatePrefix("balance:" + cmd.CreditCardID)
	s.limitsCache.InvalidatePrefix("limits:" + cmd.CreditCardID)

	writeJSON(w, http.StatusCreated, allocationResponse{
		TransactionID: t.ID,
		Kind:          string(cmd.Kind),
		BankAccountID: t.AccountID,
		CreditCardID:  t.RelatedEntityID,
		Amount:        t.Amount.String(),
		Date:          t.Date.Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP statuses. Validation failures
// are the client's problem, unknown ids are 404, and an executor
// rejection means the data layer refused a write we could not predict.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrMissingSelection),
		errors.Is(err, core.ErrNoClosingDay):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrCommandRejected):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
