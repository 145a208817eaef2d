package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"usos/internal/log"
	"usos/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decodeJSON reads a JSON body into v, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}
	return nil
}

func respondWithError(w http.ResponseWriter, r *http.Request, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), logMsg,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err)
	}

	writeJSON(w, status, errorResponse{Error: userMsg})
}

// statusFor maps a classified domain error to an HTTP status
func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		if errors.Is(err, service.ErrNotFamilyMember) {
			return http.StatusForbidden
		}
		return http.StatusUnprocessableEntity
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers with the error's public message, or a generic
// 500 for unclassified errors
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		respondWithError(w, r, status, ErrInternalServerError, logMsg, err)
		return
	}

	var se *service.Error
	errors.As(err, &se)
	writeJSON(w, status, errorResponse{Error: se.PublicMessage(), Kind: se.Kind.String()})
}
