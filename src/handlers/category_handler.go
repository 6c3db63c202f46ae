package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/store"
)

type CategoryHandler struct {
	store *store.Store
}

func NewCategoryHandler(st *store.Store) *CategoryHandler {
	return &CategoryHandler{store: st}
}

func (h *CategoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Categories(r.Context()))
}

// HandleReplace saves the whole two-level category tree at once, the way
// the client edits it. Transactions pointing at a removed category keep
// their dangling reference and degrade to "Uncategorized" on display.
func (h *CategoryHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	var categories []models.Category
	if err := json.NewDecoder(r.Body).Decode(&categories); err != nil {
		sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	for _, c := range categories {
		if c.ID == "" || c.Name == "" {
			sendJSONError(w, "every category needs an id and a name", http.StatusBadRequest)
			return
		}
	}
	if err := h.store.ReplaceCategories(r.Context(), categories); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.store.Categories(r.Context()))
}
