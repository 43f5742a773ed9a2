package processors

import (
	"context"
	"time"

	"github.com/username/stocktracker/src/models"
)

// PriceSource is the market data the valuation engine needs. Implementations
// return ok=false (or an empty history) for unknown symbols and an error
// wrapping models.ErrProviderUnavailable when the provider cannot be reached.
type PriceSource interface {
	LatestClose(ctx context.Context, symbol string) (price float64, ok bool, err error)
	History(ctx context.Context, symbol string, start, end models.Date) ([]models.PricePoint, error)
}

// HoldingsCalculator folds a ledger into current positions.
type HoldingsCalculator interface {
	Process(ctx context.Context, transactions []models.Transaction) map[string]models.Holding
}

// HistoryCalculator values a ledger over a trailing window of days ending at now.
type HistoryCalculator interface {
	Process(ctx context.Context, transactions []models.Transaction, windowDays int, now time.Time) []models.PortfolioValuePoint
}
