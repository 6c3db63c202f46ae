package handlers

import (
	"fmt"
	"net/http"

	"github.com/jotbill/jotbill-server/src/config"
	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/parsers/bill"
	"github.com/jotbill/jotbill-server/src/security/validation"
	"github.com/jotbill/jotbill-server/src/services"
)

// ImportHandler accepts an uploaded bill CSV, parses it into transaction
// guesses and runs them through batch-import resolution.
type ImportHandler struct {
	parser        *bill.Parser
	ledgerService services.LedgerService
}

func NewImportHandler(parser *bill.Parser, ledgerService services.LedgerService) *ImportHandler {
	return &ImportHandler{parser: parser, ledgerService: ledgerService}
}

func (h *ImportHandler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxImportSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or file too large", "error", err, "limit", config.Cfg.MaxImportSizeBytes)
		sendJSONError(w, fmt.Sprintf("failed to parse upload or file too large (max %d MB)", config.Cfg.MaxImportSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		sendJSONError(w, "failed to retrieve file from request, use the 'file' field", http.StatusBadRequest)
		return
	}
	defer file.Close()
	if fileHeader.Size > config.Cfg.MaxImportSizeBytes {
		sendJSONError(w, fmt.Sprintf("file too large, max %d MB", config.Cfg.MaxImportSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateTextUpload(file); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("Processing bill CSV import", "filename", fileHeader.Filename, "size", fileHeader.Size)

	results, err := h.parser.Parse(file)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.ledgerService.ImportParsed(r.Context(), r.FormValue("ledgerId"), results)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
