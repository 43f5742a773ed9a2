package handlers

import (
	"net/http"

	"github.com/username/stocktracker/src/services"
	"github.com/username/stocktracker/src/utils"
)

type TickerHandler struct {
	tickers services.TickerService
}

func NewTickerHandler(tickers services.TickerService) *TickerHandler {
	return &TickerHandler{tickers: tickers}
}

// HandleSearch always answers 200 with a list, empty when q is missing.
func (h *TickerHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.tickers.Search(r.Context(), r.URL.Query().Get("q")))
}
