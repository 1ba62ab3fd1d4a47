package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/liauzhanyi/splitwiser/internal/calculator"
	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
	"github.com/liauzhanyi/splitwiser/internal/service"
	"github.com/liauzhanyi/splitwiser/internal/storage"
)

// apiServer maps the JSON API onto the ledger services.
type apiServer struct {
	expenses *service.ExpenseService
	groups   *service.GroupService
}

func (a *apiServer) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/users", a.createUser)
	mux.HandleFunc("POST /v1/groups", a.createGroup)
	mux.HandleFunc("POST /v1/groups/{id}/members", a.addMember)
	mux.HandleFunc("GET /v1/groups/{id}/balances", a.groupBalances)
	mux.HandleFunc("POST /v1/groups/{id}/recompute", a.recompute)
	mux.HandleFunc("GET /v1/groups/{id}/suggestions", a.suggestions)
	mux.HandleFunc("POST /v1/expenses", a.createExpense)
	mux.HandleFunc("PUT /v1/expenses/{id}/splits", a.editExpenseSplits)
	mux.HandleFunc("DELETE /v1/expenses/{id}", a.deleteExpense)
	mux.HandleFunc("POST /v1/settlements", a.createSettlement)
	mux.HandleFunc("POST /v1/settlements/{id}/confirm", a.confirmSettlement)
}

type splitPayload struct {
	UserID     string `json:"user_id"`
	OwedAmount string `json:"owed_amount,omitempty"`
	Percentage string `json:"percentage,omitempty"`
}

func (p splitPayload) toModel() (models.Split, error) {
	split := models.Split{UserID: p.UserID}
	if p.OwedAmount != "" {
		owed, err := money.Parse(p.OwedAmount)
		if err != nil {
			return models.Split{}, err
		}
		split.OwedAmount = owed
	}
	if p.Percentage != "" {
		pct, err := decimal.NewFromString(p.Percentage)
		if err != nil {
			return models.Split{}, err
		}
		split.Percentage = pct
	}
	return split, nil
}

func toSplitPayloads(splits []models.Split) []splitPayload {
	out := make([]splitPayload, len(splits))
	for i, s := range splits {
		out[i] = splitPayload{UserID: s.UserID, OwedAmount: s.OwedAmount.String()}
		if !s.Percentage.IsZero() {
			out[i].Percentage = s.Percentage.String()
		}
	}
	return out
}

func (a *apiServer) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := a.groups.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": user.ID})
}

func (a *apiServer) createGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		CreatedBy   string `json:"created_by"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	group, err := a.groups.CreateGroup(r.Context(), req.Name, req.Description, req.CreatedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"group_id": group.ID})
}

func (a *apiServer) addMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.groups.EnsureMembership(r.Context(), r.PathValue("id"), req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "member"})
}

func (a *apiServer) groupBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := a.groups.GetGroupBalances(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make(map[string]string, len(balances))
	for userID, balance := range balances {
		out[userID] = balance.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": out})
}

func (a *apiServer) recompute(w http.ResponseWriter, r *http.Request) {
	balances, err := a.groups.Recompute(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make(map[string]string, len(balances))
	for userID, balance := range balances {
		out[userID] = balance.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": out})
}

func (a *apiServer) suggestions(w http.ResponseWriter, r *http.Request) {
	edges, err := a.groups.SuggestSettlements(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	type edgePayload struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	out := make([]edgePayload, len(edges))
	for i, e := range edges {
		out[i] = edgePayload{From: e.FromUserID, To: e.ToUserID, Amount: e.Amount.String()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

func (a *apiServer) createExpense(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string         `json:"description"`
		Amount      string         `json:"amount"`
		PaidBy      string         `json:"paid_by"`
		GroupID     string         `json:"group_id"`
		SplitType   string         `json:"split_type"`
		Category    string         `json:"category"`
		Splits      []splitPayload `json:"splits"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		writeError(w, badRequest(err))
		return
	}
	splitType, err := models.ParseSplitType(req.SplitType)
	if err != nil {
		writeError(w, badRequest(err))
		return
	}
	splits := make([]models.Split, len(req.Splits))
	for i, p := range req.Splits {
		if splits[i], err = p.toModel(); err != nil {
			writeError(w, badRequest(err))
			return
		}
	}

	expense, finalized, err := a.expenses.CreateExpense(r.Context(), service.CreateExpenseInput{
		Description: req.Description,
		Amount:      amount,
		PaidBy:      req.PaidBy,
		GroupID:     req.GroupID,
		SplitType:   splitType,
		Category:    req.Category,
		Splits:      splits,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"expense_id": expense.ID,
		"splits":     toSplitPayloads(finalized),
	})
}

func (a *apiServer) editExpenseSplits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Splits []splitPayload `json:"splits"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	splits := make([]models.Split, len(req.Splits))
	var err error
	for i, p := range req.Splits {
		if splits[i], err = p.toModel(); err != nil {
			writeError(w, badRequest(err))
			return
		}
	}

	finalized, err := a.expenses.EditExpenseSplits(r.Context(), r.PathValue("id"), splits)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"splits": toSplitPayloads(finalized)})
}

func (a *apiServer) deleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := a.expenses.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *apiServer) createSettlement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From    string `json:"from_user_id"`
		To      string `json:"to_user_id"`
		Amount  string `json:"amount"`
		GroupID string `json:"group_id"`
		Note    string `json:"note"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		writeError(w, badRequest(err))
		return
	}

	settlement, err := a.expenses.CreateSettlement(r.Context(), service.CreateSettlementInput{
		FromUserID: req.From,
		ToUserID:   req.To,
		Amount:     amount,
		GroupID:    req.GroupID,
		Note:       req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"settlement_id": settlement.ID})
}

func (a *apiServer) confirmSettlement(w http.ResponseWriter, r *http.Request) {
	if err := a.expenses.ConfirmSettlement(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

// badRequestError marks a malformed-input error for status mapping.
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error { return badRequestError{err: err} }

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, badRequest(err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps engine errors onto HTTP statuses: rejections are the
// caller's to fix, conflicts are retryable, unknown IDs are 404.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var rejection *calculator.RejectionError
	var bad badRequestError
	switch {
	case errors.As(err, &bad):
		status = http.StatusBadRequest
	case errors.As(err, &rejection):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConcurrentEdit):
		status = http.StatusConflict
	}

	body := map[string]string{"error": err.Error()}
	if rejection != nil {
		body["reason"] = string(rejection.Reason)
	}
	writeJSON(w, status, body)
}
