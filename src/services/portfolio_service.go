package services

import (
	"context"
	"time"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/processors"
)

type portfolioServiceImpl struct {
	ledger        LedgerService
	holdings      processors.HoldingsCalculator
	history       processors.HistoryCalculator
	defaultWindow int
	now           func() time.Time
}

// NewPortfolioService wires the valuation engine to the ledger. Nothing is
// cached: every call reloads the ledger and asks the provider again.
func NewPortfolioService(ledger LedgerService, prices processors.PriceSource, defaultWindowDays int) PortfolioService {
	if defaultWindowDays <= 0 {
		defaultWindowDays = 365
	}
	return &portfolioServiceImpl{
		ledger:        ledger,
		holdings:      processors.NewHoldingsProcessor(prices),
		history:       processors.NewHistoryProcessor(prices),
		defaultWindow: defaultWindowDays,
		now:           time.Now,
	}
}

func (s *portfolioServiceImpl) GetHoldings(ctx context.Context, portfolioID string) ([]models.Holding, error) {
	txs, err := s.ledger.List(ctx, models.TransactionFilter{PortfolioID: portfolioID})
	if err != nil {
		return nil, err
	}
	start := time.Now()
	holdings := processors.SortedHoldings(s.holdings.Process(ctx, txs))
	logger.FromContext(ctx).Debug("Holdings computed", "portfolio", portfolioID, "transactions", len(txs), "symbols", len(holdings), "duration", time.Since(start))
	return holdings, nil
}

// GetHistory uses the configured window when days is not positive.
func (s *portfolioServiceImpl) GetHistory(ctx context.Context, portfolioID string, days int) ([]models.PortfolioValuePoint, error) {
	if days <= 0 {
		days = s.defaultWindow
	}
	txs, err := s.ledger.List(ctx, models.TransactionFilter{PortfolioID: portfolioID})
	if err != nil {
		return nil, err
	}
	start := time.Now()
	points := s.history.Process(ctx, txs, days, s.now())
	logger.FromContext(ctx).Debug("History computed", "portfolio", portfolioID, "days", days, "points", len(points), "duration", time.Since(start))
	return points, nil
}
