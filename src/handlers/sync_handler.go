package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jotbill/jotbill-server/src/config"
	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/services"
	"github.com/jotbill/jotbill-server/src/store"
)

// SyncHandler drives the remote backup round trip. The bridge is built
// per request from the stored storage configuration, so credential
// changes take effect immediately without a restart.
type SyncHandler struct {
	store         *store.Store
	backupService services.BackupService
}

func NewSyncHandler(st *store.Store, backupService services.BackupService) *SyncHandler {
	return &SyncHandler{store: st, backupService: backupService}
}

func (h *SyncHandler) bridge(r *http.Request) services.SyncBridge {
	cfg := h.store.StorageConfig(r.Context())
	return services.NewSyncBridge(cfg, config.Cfg.BackupFilename, config.Cfg.SyncTimeout)
}

// HandleTest checks reachability and credentials. A config may also be
// posted to test it before saving.
func (h *SyncHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	bridge := h.bridge(r)
	if r.ContentLength > 0 {
		var cfg models.StorageConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		bridge = services.NewSyncBridge(&cfg, config.Cfg.BackupFilename, config.Cfg.SyncTimeout)
	}
	if err := bridge.Test(r.Context()); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reachable": true})
}

// HandleUpload exports the current state and overwrites the remote copy.
func (h *SyncHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	data, err := h.backupService.Export(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}
	content, err := json.Marshal(data)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	if err := h.bridge(r).Upload(r.Context(), content); err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded"})
}

// HandleRestore downloads the remote backup and imports it, merge by
// default, overwrite with mode=overwrite.
func (h *SyncHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	raw, err := h.bridge(r).Download(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}
	mode := r.URL.Query().Get("mode")
	logger.L.Info("Restoring backup from remote storage", "mode", mode, "bytes", len(raw))

	var result models.BackupData
	if mode == "overwrite" {
		result, err = h.backupService.ImportOverwrite(r.Context(), raw)
	} else {
		result, err = h.backupService.ImportMerge(r.Context(), raw)
	}
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
