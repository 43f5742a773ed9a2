package handlers

import (
	"fmt"
	"net/http"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/services"
	"github.com/username/stocktracker/src/utils"
)

type PortfolioHandler struct {
	portfolio services.PortfolioService
}

func NewPortfolioHandler(portfolio services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio}
}

// HandleGetHoldings supports conditional requests: the ETag is a hash of the
// holdings, so a client polling an unchanged portfolio gets 304.
func (h *PortfolioHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	portfolioID := r.URL.Query().Get("portfolio_id")

	holdings, err := h.portfolio.GetHoldings(r.Context(), portfolioID)
	if err != nil {
		writeServiceError(w, r, err, "get holdings")
		return
	}
	if holdings == nil {
		holdings = []models.Holding{}
	}

	w.Header().Set("Cache-Control", "no-cache, private")
	currentETag, etagErr := utils.GenerateETag(holdings)
	if etagErr != nil {
		log.Error("Failed to generate ETag for holdings", "error", etagErr)
	} else {
		w.Header().Set("ETag", fmt.Sprintf("\"%s\"", currentETag))
		if utils.ETagMatches(r.Header.Get("If-None-Match"), currentETag) {
			log.Debug("ETag match for holdings", "etag", currentETag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, holdings)
}

// historyResponse is the chart-friendly shape: parallel arrays.
type historyResponse struct {
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
	Costs  []float64 `json:"costs"`
}

func (h *PortfolioHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	days, err := utils.QueryInt(r, "days", 0)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	points, err := h.portfolio.GetHistory(r.Context(), r.URL.Query().Get("portfolio_id"), days)
	if err != nil {
		writeServiceError(w, r, err, "get history")
		return
	}

	resp := historyResponse{
		Dates:  make([]string, 0, len(points)),
		Values: make([]float64, 0, len(points)),
		Costs:  make([]float64, 0, len(points)),
	}
	for _, p := range points {
		resp.Dates = append(resp.Dates, p.Date.String())
		resp.Values = append(resp.Values, p.Value)
		resp.Costs = append(resp.Costs, p.CostBasis)
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}
