package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/services"
)

// AIHandler exposes the natural-language parse bridge. Parsing returns
// an unresolved guess; confirming it books the guess through the same
// resolution path as any other batch import.
type AIHandler struct {
	parser        services.Parser
	ledgerService services.LedgerService
}

func NewAIHandler(parser services.Parser, ledgerService services.LedgerService) *AIHandler {
	return &AIHandler{parser: parser, ledgerService: ledgerService}
}

// ParseRequest is a free-text bookkeeping note, e.g. "昨天中午和同事吃饭花了45块，支付宝".
type ParseRequest struct {
	Text   string `json:"text"`
	Locale string `json:"locale,omitempty"`
}

func (h *AIHandler) HandleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		sendJSONError(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.Locale == "" {
		req.Locale = "zh"
	}
	result, err := h.parser.ParseText(r.Context(), req.Text, req.Locale)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ConfirmRequest carries a (possibly user-edited) parse result to book.
type ConfirmRequest struct {
	LedgerID string             `json:"ledgerId,omitempty"`
	Result   models.ParseResult `json:"result"`
}

func (h *AIHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.ledgerService.ImportParsed(r.Context(), req.LedgerID, []models.ParseResult{req.Result})
	if err != nil {
		sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created[0])
}
