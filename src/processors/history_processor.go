package processors

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
)

type HistoryProcessor struct {
	prices PriceSource
}

func NewHistoryProcessor(prices PriceSource) *HistoryProcessor {
	return &HistoryProcessor{prices: prices}
}

// Process values the portfolio on every trading date the provider reports in
// [now-windowDays, now]. Shares are counted as of each date, so a position
// only contributes from the day it was bought. A symbol whose history cannot
// be fetched contributes zero; it never aborts the series. Dates are not
// filled in and prices are not carried forward.
func (p *HistoryProcessor) Process(ctx context.Context, transactions []models.Transaction, windowDays int, now time.Time) []models.PortfolioValuePoint {
	log := logger.FromContext(ctx)
	end := models.DateOf(now)
	start := end.AddDays(-windowDays)

	ledger := make([]models.Transaction, len(transactions))
	copy(ledger, transactions)
	sort.SliceStable(ledger, func(i, j int) bool { return ledger[i].Date.Before(ledger[j].Date) })

	closes := make(map[string]map[models.Date]decimal.Decimal)
	dateSet := make(map[models.Date]struct{})
	for _, symbol := range symbolsHeldDuring(ledger, start, end) {
		history, err := p.history(ctx, symbol, start, end)
		if err != nil {
			log.Warn("Price history unavailable, symbol contributes zero", "symbol", symbol, "error", err)
			continue
		}
		if len(history) == 0 {
			log.Debug("Empty price history, symbol contributes zero", "symbol", symbol)
			continue
		}
		byDate := make(map[models.Date]decimal.Decimal, len(history))
		for _, pt := range history {
			if pt.Date.Before(start) || pt.Date.After(end) {
				continue
			}
			byDate[pt.Date] = decimal.NewFromFloat(pt.Close)
			dateSet[pt.Date] = struct{}{}
		}
		closes[symbol] = byDate
	}

	dates := make([]models.Date, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	points := make([]models.PortfolioValuePoint, 0, len(dates))
	shares := make(map[string]decimal.Decimal)
	invested := decimal.Zero
	next := 0
	for _, d := range dates {
		for next < len(ledger) && !ledger[next].Date.After(d) {
			tx := ledger[next]
			amount := decimal.NewFromFloat(tx.Amount)
			shares[tx.Symbol] = shares[tx.Symbol].Add(amount)
			invested = invested.Add(amount.Mul(decimal.NewFromFloat(tx.Price)))
			next++
		}
		value := decimal.Zero
		for symbol, byDate := range closes {
			if closePrice, ok := byDate[d]; ok {
				value = value.Add(closePrice.Mul(shares[symbol]))
			}
		}
		points = append(points, models.PortfolioValuePoint{
			Date:      d,
			Value:     value.InexactFloat64(),
			CostBasis: invested.InexactFloat64(),
		})
	}
	return points
}

func (p *HistoryProcessor) history(ctx context.Context, symbol string, start, end models.Date) ([]models.PricePoint, error) {
	if p.prices == nil {
		return nil, nil
	}
	return p.prices.History(ctx, symbol, start, end)
}

// symbolsHeldDuring lists symbols with a non-zero position at some point in
// [start, end]. ledger must be sorted by date.
func symbolsHeldDuring(ledger []models.Transaction, start, end models.Date) []string {
	atStart := make(map[string]decimal.Decimal)
	held := make(map[string]bool)
	for _, tx := range ledger {
		switch {
		case tx.Date.After(end):
		case tx.Date.After(start):
			held[tx.Symbol] = true
		default:
			atStart[tx.Symbol] = atStart[tx.Symbol].Add(decimal.NewFromFloat(tx.Amount))
		}
	}
	for symbol, qty := range atStart {
		if !qty.IsZero() {
			held[symbol] = true
		}
	}
	out := make([]string, 0, len(held))
	for symbol := range held {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}
