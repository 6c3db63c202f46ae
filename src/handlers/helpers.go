package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/services"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Error encoding JSON response", "error", err)
	}
}

func sendJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// sendServiceError maps the service error taxonomy onto HTTP statuses.
func sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrBackupMalformed):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrRecordNotFound),
		errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrLedgerNotFound),
		errors.Is(err, services.ErrSyncNotFound):
		sendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrParserUnavailable),
		errors.Is(err, services.ErrSyncNotConfigured):
		sendJSONError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, services.ErrSyncUnreachable),
		errors.Is(err, services.ErrParsingFailed):
		sendJSONError(w, err.Error(), http.StatusBadGateway)
	default:
		logger.L.Error("Unhandled service error", "error", err)
		sendJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
