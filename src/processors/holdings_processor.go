package processors

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
)

// Position is the price-independent part of a holding.
type Position struct {
	Symbol     string
	Amount     decimal.Decimal
	BoughtQty  decimal.Decimal
	BoughtCost decimal.Decimal
}

// AverageCost is the buy-weighted price. Sells reduce the amount held but do
// not move the average; a position with no buys has an average cost of zero.
func (p Position) AverageCost() decimal.Decimal {
	if p.BoughtQty.IsZero() {
		return decimal.Zero
	}
	return p.BoughtCost.Div(p.BoughtQty)
}

// AggregatePositions groups transactions by symbol.
func AggregatePositions(transactions []models.Transaction) map[string]Position {
	positions := make(map[string]Position)
	for _, tx := range transactions {
		p := positions[tx.Symbol]
		p.Symbol = tx.Symbol
		amount := decimal.NewFromFloat(tx.Amount)
		p.Amount = p.Amount.Add(amount)
		if tx.IsBuy() {
			p.BoughtQty = p.BoughtQty.Add(amount)
			p.BoughtCost = p.BoughtCost.Add(amount.Mul(decimal.NewFromFloat(tx.Price)))
		}
		positions[tx.Symbol] = p
	}
	return positions
}

type HoldingsProcessor struct {
	prices PriceSource
}

func NewHoldingsProcessor(prices PriceSource) *HoldingsProcessor {
	return &HoldingsProcessor{prices: prices}
}

// Process returns one holding per symbol seen in the ledger. When the latest
// close cannot be obtained the holding keeps its amount and cost, with a zero
// price and value and PriceStatus UNAVAILABLE.
func (p *HoldingsProcessor) Process(ctx context.Context, transactions []models.Transaction) map[string]models.Holding {
	log := logger.FromContext(ctx)
	positions := AggregatePositions(transactions)

	symbols := make([]string, 0, len(positions))
	for symbol := range positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	holdings := make(map[string]models.Holding, len(positions))
	for _, symbol := range symbols {
		pos := positions[symbol]
		avg := pos.AverageCost()
		h := models.Holding{
			Symbol:      symbol,
			Amount:      pos.Amount.InexactFloat64(),
			AverageCost: avg.InexactFloat64(),
			CostBasis:   avg.Mul(pos.Amount).InexactFloat64(),
			PriceStatus: models.PriceStatusUnavailable,
		}

		price, ok, err := p.lookup(ctx, symbol)
		switch {
		case err != nil:
			log.Warn("Latest close unavailable, valuing holding at zero", "symbol", symbol, "error", err)
		case !ok:
			log.Warn("No latest close for symbol, valuing holding at zero", "symbol", symbol)
		default:
			h.CurrentPrice = price
			h.TotalValue = decimal.NewFromFloat(price).Mul(pos.Amount).InexactFloat64()
			h.PriceStatus = models.PriceStatusOK
		}
		holdings[symbol] = h
	}
	return holdings
}

func (p *HoldingsProcessor) lookup(ctx context.Context, symbol string) (float64, bool, error) {
	if p.prices == nil {
		return 0, false, nil
	}
	return p.prices.LatestClose(ctx, symbol)
}

// SortedHoldings flattens a holdings map ordered by symbol.
func SortedHoldings(holdings map[string]models.Holding) []models.Holding {
	out := make([]models.Holding, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
