package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/store"
)

type SettingsHandler struct {
	store *store.Store
}

func NewSettingsHandler(st *store.Store) *SettingsHandler {
	return &SettingsHandler{store: st}
}

func (h *SettingsHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile := h.store.Profile(r.Context())
	if profile == nil {
		fallback := models.DefaultUser()
		profile = &fallback
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *SettingsHandler) HandleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.SaveProfile(r.Context(), profile); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *SettingsHandler) HandleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := h.store.UIPreferences(r.Context())
	if prefs == nil {
		fallback := models.DefaultUIPreferences()
		prefs = &fallback
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *SettingsHandler) HandleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs models.UIPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.SaveUIPreferences(r.Context(), prefs); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *SettingsHandler) HandleGetStorageConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.StorageConfig(r.Context())
	if cfg == nil {
		cfg = &models.StorageConfig{Type: "LOCAL", Status: "DISCONNECTED"}
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *SettingsHandler) HandleSaveStorageConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.StorageConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.SaveStorageConfig(r.Context(), cfg); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandleReset wipes every collection and re-seeds the defaults. The
// confirmation dialog is the client's job; this endpoint executes.
func (h *SettingsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	logger.L.Warn("Resetting all data on request")
	if err := h.store.ResetAndReseed(r.Context()); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
