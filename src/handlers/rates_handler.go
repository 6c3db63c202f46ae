package handlers

import (
	"net/http"

	"github.com/jotbill/jotbill-server/src/services"
)

type RatesHandler struct {
	ratesService services.RatesService
}

func NewRatesHandler(ratesService services.RatesService) *RatesHandler {
	return &RatesHandler{ratesService: ratesService}
}

// HandleGet serves the current rate table, cached or fallback.
func (h *RatesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ratesService.Current(r.Context()))
}

// HandleRefresh forces a live fetch. A failed fetch still answers with
// the best available table; staleness shows in lastUpdated.
func (h *RatesHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	data, _ := h.ratesService.Refresh(r.Context())
	writeJSON(w, http.StatusOK, data)
}
