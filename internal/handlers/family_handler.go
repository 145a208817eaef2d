package handlers

import (
	"net/http"

	"usos/internal/models"
	"usos/internal/service"
)

// FamilyHandler handles family creation and the join request workflow
type FamilyHandler struct {
	pairing *service.PairingService
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(pairing *service.PairingService) *FamilyHandler {
	return &FamilyHandler{pairing: pairing}
}

// requireMember writes 403 and returns false unless the caller belongs to
// the family named in the path
func requireMember(w http.ResponseWriter, r *http.Request, pairing *service.PairingService, familyID string) bool {
	user := GetUserFromContext(r.Context())
	if err := pairing.VerifyFamilyAccess(r.Context(), user.ID, familyID); err != nil {
		writeServiceError(w, r, err, "Failed to verify family access")
		return false
	}
	return true
}

// CreateFamily starts a family owned by the caller and returns its invite code
func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	family, err := h.pairing.CreateFamily(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create family")
		return
	}
	writeJSON(w, http.StatusCreated, family)
}

// GetFamily returns a family with its members
func (h *FamilyHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("id")
	if !requireMember(w, r, h.pairing, familyID) {
		return
	}

	family, err := h.pairing.GetFamily(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load family")
		return
	}
	writeJSON(w, http.StatusOK, family)
}

// ListMembers returns the family's members in joining order
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("id")
	if !requireMember(w, r, h.pairing, familyID) {
		return
	}

	members, err := h.pairing.ListMembers(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.User{"members": members})
}

// ListJoinRequests returns the family's pending requests, oldest first
func (h *FamilyHandler) ListJoinRequests(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("id")
	if !requireMember(w, r, h.pairing, familyID) {
		return
	}

	requests, err := h.pairing.ListPendingRequests(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list join requests")
		return
	}
	if requests == nil {
		requests = []models.JoinRequest{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.JoinRequest{"join_requests": requests})
}

type joinRequest struct {
	InviteCode string `json:"invite_code"`
}

// RequestJoin asks to join the family behind an invite code
func (h *FamilyHandler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	created, err := h.pairing.RequestJoin(r.Context(), user.ID, req.InviteCode)
	if err != nil {
		writeServiceError(w, r, err, "Failed to request join")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type approveResponse struct {
	Requester *models.User `json:"requester"`
	Approver  *models.User `json:"approver"`
}

// ApproveRequest lets the requester in. Losing a race to another decision
// yields 404 with "This request was already handled".
func (h *FamilyHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	requester, approver, err := h.pairing.ApproveRequest(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to approve join request")
		return
	}
	writeJSON(w, http.StatusOK, approveResponse{Requester: requester, Approver: approver})
}

// DeclineRequest declines a request, or withdraws it when the caller is the requester
func (h *FamilyHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	if err := h.pairing.DeclineRequestAs(r.Context(), r.PathValue("id"), user.ID); err != nil {
		writeServiceError(w, r, err, "Failed to decline join request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
