package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/services"
	"github.com/jotbill/jotbill-server/src/store"
)

type AccountHandler struct {
	store         *store.Store
	ledgerService services.LedgerService
}

func NewAccountHandler(st *store.Store, ledgerService services.LedgerService) *AccountHandler {
	return &AccountHandler{store: st, ledgerService: ledgerService}
}

func (h *AccountHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Accounts(r.Context()))
}

func (h *AccountHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var account models.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !account.Type.Valid() {
		sendJSONError(w, "missing or invalid account type", http.StatusBadRequest)
		return
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Currency == "" {
		account.Currency = models.DefaultCurrency
	}
	if err := h.store.SaveAccount(r.Context(), account); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var account models.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	account.ID = chi.URLParam(r, "id")
	if !account.Type.Valid() {
		sendJSONError(w, "missing or invalid account type", http.StatusBadRequest)
		return
	}
	if err := h.store.SaveAccount(r.Context(), account); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// HandleDelete removes an account together with its transactions. The
// transactions go straight out of the store; there is no balance left
// to reconcile on an account that ceases to exist.
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var orphaned []string
	for _, tx := range h.store.Transactions(ctx) {
		if tx.AccountID == id {
			orphaned = append(orphaned, tx.ID)
		}
	}
	if len(orphaned) > 0 {
		if err := h.store.DeleteTransactions(ctx, orphaned); err != nil {
			sendServiceError(w, err)
			return
		}
	}
	if err := h.store.DeleteAccounts(ctx, []string{id}); err != nil {
		sendServiceError(w, err)
		return
	}
	logger.L.Info("Account deleted", "account", id, "transactions_removed", len(orphaned))
	w.WriteHeader(http.StatusNoContent)
}

// HandleNetWorth aggregates balances at live rates into one currency.
func (h *AccountHandler) HandleNetWorth(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledgerService.NetWorth(r.Context(), r.URL.Query().Get("currency"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
