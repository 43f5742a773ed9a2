package handlers

import (
	"errors"
	"net/http"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/services"
	"github.com/username/stocktracker/src/utils"
)

type validationErrorResponse struct {
	Error      string             `json:"error"`
	Violations []models.Violation `json:"violations"`
}

// writeServiceError maps service and store errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	log := logger.FromContext(r.Context())
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Info("Request rejected by validation", "action", action, "violations", len(verr.Violations))
		utils.WriteJSON(w, http.StatusBadRequest, validationErrorResponse{Error: models.ErrValidationFailed.Error(), Violations: verr.Violations})
	case errors.Is(err, models.ErrNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrParsingFailed), errors.Is(err, services.ErrUnsupportedFormat):
		log.Warn("Unreadable input", "action", action, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrProviderUnavailable):
		log.Warn("Market data provider unavailable", "action", action, "error", err)
		utils.SendJSONError(w, "market data provider unavailable, try again later", http.StatusBadGateway)
	default:
		log.Error("Internal error", "action", action, "error", err)
		utils.SendJSONError(w, "An internal error occurred. Please try again later.", http.StatusInternalServerError)
	}
}
