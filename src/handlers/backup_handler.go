package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jotbill/jotbill-server/src/config"
	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/services"
)

type BackupHandler struct {
	backupService services.BackupService
}

func NewBackupHandler(backupService services.BackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

// HandleExport streams the full snapshot as a downloadable JSON file.
func (h *BackupHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.backupService.Export(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}
	filename := fmt.Sprintf("jotbill_backup_%s.json", time.Now().Format("20060102"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	writeJSON(w, http.StatusOK, data)
}

// HandleImport restores a backup. mode=overwrite replaces everything;
// the default is merge (upsert by id, existing records preserved). Both
// paths respond with the state re-read from the store.
func (h *BackupHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, config.Cfg.MaxImportSizeBytes))
	if err != nil {
		sendJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	mode := r.URL.Query().Get("mode")
	logger.L.Info("Handling backup import", "mode", mode, "bytes", len(raw))

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
