package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"usos/internal/log"
	"usos/internal/models"
	"usos/internal/service"
)

// AdminHandler exposes maintenance operations that bypass the pairing rules
type AdminHandler struct {
	admin   *service.AdminService
	pairing *service.PairingService
	ledger  *service.LedgerService
	backup  *service.BackupService
	logger  *log.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(admin *service.AdminService, pairing *service.PairingService, ledger *service.LedgerService, backup *service.BackupService, logger *log.Logger) *AdminHandler {
	return &AdminHandler{
		admin:   admin,
		pairing: pairing,
		ledger:  ledger,
		backup:  backup,
		logger:  logger.WithComponent(log.ComponentAdmin),
	}
}

// Reset deletes every row and reports how many went per table
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.admin.ResetAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to reset data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]map[string]int64{"deleted": deleted})
}

// ListFamilies returns every family
func (h *AdminHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.admin.ListFamilies(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to list families")
		return
	}
	if families == nil {
		families = []models.Family{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.Family{"families": families})
}

type adminCreateFamilyRequest struct {
	InviteCode string `json:"invite_code"`
}

// CreateFamily creates an empty family, optionally with a fixed invite code
func (h *AdminHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req adminCreateFamilyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	family, err := h.admin.CreateFamily(r.Context(), req.InviteCode)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create family")
		return
	}
	writeJSON(w, http.StatusCreated, family)
}

type adminCreateUserRequest struct {
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name"`
	FamilyID    *string `json:"family_id"`
}

// CreateUser creates a profile, optionally placed straight into a family
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req adminCreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	user, err := h.admin.CreateUser(r.Context(), req.Email, req.DisplayName, req.FamilyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type linkPartnersRequest struct {
	UserA    string `json:"user_a"`
	UserB    string `json:"user_b"`
	FamilyID string `json:"family_id"`
}

// LinkPartners pairs two users inside a family
func (h *AdminHandler) LinkPartners(w http.ResponseWriter, r *http.Request) {
	var req linkPartnersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	if err := h.admin.LinkPartners(r.Context(), req.UserA, req.UserB, req.FamilyID); err != nil {
		writeServiceError(w, r, err, "Failed to link partners")
		return
	}

	family, err := h.pairing.GetFamily(r.Context(), req.FamilyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load family")
		return
	}
	writeJSON(w, http.StatusOK, family)
}

// ExpireRequests declines stale pending requests. The optional older_than
// query parameter (a Go duration) overrides the configured TTL.
func (h *AdminHandler) ExpireRequests(w http.ResponseWriter, r *http.Request) {
	var (
		expired int64
		err     error
	)
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		ttl, parseErr := time.ParseDuration(raw)
		if parseErr != nil || ttl <= 0 {
			respondWithError(w, r, http.StatusBadRequest, "older_than must be a positive duration such as 72h", "", nil)
			return
		}
		expired, err = h.pairing.ExpireRequestsOlderThan(r.Context(), ttl)
	} else {
		expired, err = h.pairing.ExpireStaleRequests(r.Context())
	}
	if err != nil {
		writeServiceError(w, r, err, "Failed to expire join requests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"expired": expired})
}

// SettleUp returns any family's balance
func (h *AdminHandler) SettleUp(w http.ResponseWriter, r *http.Request) {
	settlement, err := h.ledger.SettleUpForFamily(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to compute settle-up")
		return
	}
	writeJSON(w, http.StatusOK, newSettleUpResponse(settlement))
}

// ExportDatabase exports the database to JSON for download
func (h *AdminHandler) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	// buffered so a failure can still become a proper error response
	var buf bytes.Buffer
	backup, err := h.backup.ExportToWriter(r.Context(), &buf)
	if err != nil {
		respondWithError(w, r, http.StatusInternalServerError, "Failed to export database", "Error exporting database", err)
		return
	}

	filename := fmt.Sprintf("usos_backup_%s.json", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	h.logger.InfoContext(r.Context(), "Database exported", "counts", backup.Counts())
}

// ImportDatabase restores a backup posted as the request body.
// ?clear=true deletes existing data first.
func (h *AdminHandler) ImportDatabase(w http.ResponseWriter, r *http.Request) {
	clearData := r.URL.Query().Get("clear") == "true"
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)

	backup, err := h.backup.ImportFromReader(r.Context(), body, clearData)
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Failed to import database: "+err.Error(), "Error importing database", err)
		return
	}

	h.logger.InfoContext(r.Context(), "Database imported", "clear_data", clearData)
	writeJSON(w, http.StatusOK, map[string]map[string]int{"imported": backup.Counts()})
}
