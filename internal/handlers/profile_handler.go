package handlers

import (
	"net/http"

	"usos/internal/models"
	"usos/internal/service"
)

// ProfileHandler serves the caller's own profile and pairing status
type ProfileHandler struct {
	profiles *service.ProfileService
	pairing  *service.PairingService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles *service.ProfileService, pairing *service.PairingService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, pairing: pairing}
}

type meResponse struct {
	User           *models.User              `json:"user"`
	Family         *models.FamilyWithMembers `json:"family"`
	PendingRequest *models.JoinRequest       `json:"pending_request"`
}

// Me returns the profile with its family or pending join request, which is
// everything a client needs to decide between setup and the shared space
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	resp := meResponse{User: user}

	if user.HasFamily() {
		family, err := h.pairing.GetFamily(r.Context(), *user.FamilyID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to load family")
			return
		}
		resp.Family = family
	} else {
		pending, err := h.pairing.GetPendingRequestForUser(r.Context(), user.ID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to load join request")
			return
		}
		resp.PendingRequest = pending
	}

	writeJSON(w, http.StatusOK, resp)
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	AvatarColor string `json:"avatar_color"`
}

// UpdateMe changes the display name and avatar colour
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	updated, err := h.profiles.UpdateProfile(r.Context(), user.ID, req.DisplayName, req.AvatarColor)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Partner returns the caller's partner; partner is null until paired
func (h *ProfileHandler) Partner(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	partner, err := h.profiles.GetPartner(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load partner")
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.User{"partner": partner})
}
