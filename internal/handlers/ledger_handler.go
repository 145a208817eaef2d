package handlers

import (
	"encoding/json"
	"net/http"

	"usos/internal/models"
	"usos/internal/service"
)

// LedgerHandler serves expenses, settle-up and savings goals of a family
type LedgerHandler struct {
	ledger  *service.LedgerService
	pairing *service.PairingService
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledger *service.LedgerService, pairing *service.PairingService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, pairing: pairing}
}

// Amounts arrive as JSON numbers or decimal strings and are parsed with
// service.ParseAmount so bad input gets the usual validation error.
type recordExpenseRequest struct {
	Amount      json.Number `json:"amount"`
	PaidBy      string      `json:"paid_by"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
}

// RecordExpense appends an expense. The payer defaults to the caller.
func (h *LedgerHandler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("id")
	if !requireMember(w, r, h.pairing, familyID) {
		return
	}

	var req recordExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	amount, err := service.ParseAmount(req.Amount.String())
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	paidBy := req.PaidBy
	if paidBy == "" {
		paidBy = GetUserFromContext(r.Context()).ID
	}

	expense, err := h.ledger.RecordExpense(r.Context(), familyID, paidBy, amount, req.Description, req.Category)
	if err != nil {
		writeServiceError(w, r, err, "Failed to record expense")
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

// ListExpenses returns the ledger, newest first
func (h *LedgerHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("id")
	if !requireMember(w, r, h.pairing, familyID) {
		return
	}

	expenses, err := h.ledger.ListExpenses(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list expenses")
		return
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.Expense{"expenses": expenses})
}

type settleUpResponse struct {
	models.Settlement
	Settled  bool   `json:"settled"`
	Debtor   string `json:"debtor,omitempty"`
	Creditor string `json:"creditor,omitempty"`
	Owed     string `json:"owed"`
}

func newSettleUpResponse(s models.Settlement) settleUpResponse {
	debtor, creditor, owed := s.Debtor()
	return settleUpResponse{
		Settlement: s,
		Settled:    s.Settled(),
		Debtor:     debtor,
		Creditor:   creditor,
		Owed:       owed.String(),
	}
}

// SettleUp returns the current balance between the two partners
func (h *LedgerHandler) SettleUp(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("id")
	if !requireMember(w, r, h.pairing, familyID) {
		return
	}

	settlement, err := h.ledger.SettleUpForFamily(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to compute settle-up")
		return
	}
	writeJSON(w, http.StatusOK, newSettleUpResponse(settlement))
}

type goalResponse struct {
	*models.SavingsGoal
	Progress float64 `json:"progress"`
	Reached  bool    `json:"reached"`
}

func newGoalResponse(g *models.SavingsGoal) goalResponse {
	return goalResponse{SavingsGoal: g, Progress: g.Progress(), Reached: g.Reached()}
}

type createGoalRequest struct {
	Title  string      `json:"title"`
	Target json.Number `json:"target_amount"`
	Emoji  string      `json:"emoji"`
}

// CreateGoal adds a savings goal starting at zero
func (h *LedgerHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("id")
	if !requireMember(w, r, h.pairing, familyID) {
		return
	}

	var req createGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	target, err := service.ParseAmount(req.Target.String())
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	goal, err := h.ledger.CreateSavingsGoal(r.Context(), familyID, req.Title, target, req.Emoji)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create savings goal")
		return
	}
	writeJSON(w, http.StatusCreated, newGoalResponse(goal))
}

// ListGoals returns the family's savings goals, oldest first
func (h *LedgerHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("id")
	if !requireMember(w, r, h.pairing, familyID) {
		return
	}

	goals, err := h.ledger.ListSavingsGoals(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list savings goals")
		return
	}
	out := make([]goalResponse, 0, len(goals))
	for i := range goals {
		out = append(out, newGoalResponse(&goals[i]))
	}
	writeJSON(w, http.StatusOK, map[string][]goalResponse{"goals": out})
}

// loadGoal fetches the goal in the path and checks the caller may see it
func (h *LedgerHandler) loadGoal(w http.ResponseWriter, r *http.Request) (*models.SavingsGoal, bool) {
	goal, err := h.ledger.GetSavingsGoal(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to load savings goal")
		return nil, false
	}
	if !requireMember(w, r, h.pairing, goal.FamilyID) {
		return nil, false
	}
	return goal, true
}

// GetGoal returns one savings goal
func (h *LedgerHandler) GetGoal(w http.ResponseWriter, r *http.Request) {
	goal, ok := h.loadGoal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newGoalResponse(goal))
}

type contributeRequest struct {
	Amount json.Number `json:"amount"`
}

// Contribute adds money to a goal and returns the updated goal
func (h *LedgerHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	goal, ok := h.loadGoal(w, r)
	if !ok {
		return
	}

	var req contributeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	amount, err := service.ParseAmount(req.Amount.String())
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}

	updated, err := h.ledger.Contribute(r.Context(), goal.ID, amount)
	if err != nil {
		writeServiceError(w, r, err, "Failed to add contribution")
		return
	}
	writeJSON(w, http.StatusOK, newGoalResponse(updated))
}
