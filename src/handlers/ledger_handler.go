package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/store"
)

type LedgerHandler struct {
	store *store.Store
}

func NewLedgerHandler(st *store.Store) *LedgerHandler {
	return &LedgerHandler{store: st}
}

func (h *LedgerHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Ledgers(r.Context()))
}

func (h *LedgerHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var ledger models.Ledger
	if err := json.NewDecoder(r.Body).Decode(&ledger); err != nil {
		sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if ledger.Name == "" {
		sendJSONError(w, "ledger name is required", http.StatusBadRequest)
		return
	}
	if ledger.ID == "" {
		ledger.ID = uuid.New().String()
	}
	if ledger.Currency == "" {
		ledger.Currency = models.DefaultCurrency
	}
	if err := h.store.MergeLedgers(r.Context(), []models.Ledger{ledger}); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ledger)
}

func (h *LedgerHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var ledger models.Ledger
	if err := json.NewDecoder(r.Body).Decode(&ledger); err != nil {
		sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	ledger.ID = chi.URLParam(r, "id")
	if err := h.store.MergeLedgers(r.Context(), []models.Ledger{ledger}); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

// HandleDelete removes a ledger and everything booked under it. The
// last ledger cannot be deleted; the app always has a primary ledger.
func (h *LedgerHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if len(h.store.Ledgers(r.Context())) <= 1 {
		sendJSONError(w, "cannot delete the only ledger", http.StatusBadRequest)
		return
	}
	if err := h.store.DeleteLedger(r.Context(), id); err != nil {
		sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
