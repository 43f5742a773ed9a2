package processors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/username/stocktracker/src/models"
)

type fakePrices struct {
	latest  map[string]float64
	history map[string][]models.PricePoint
	failing map[string]bool
}

func (f *fakePrices) LatestClose(ctx context.Context, symbol string) (float64, bool, error) {
	if f.failing[symbol] {
		return 0, false, fmt.Errorf("lookup %s: %w", symbol, models.ErrProviderUnavailable)
	}
	p, ok := f.latest[symbol]
	return p, ok, nil
}

func (f *fakePrices) History(ctx context.Context, symbol string, start, end models.Date) ([]models.PricePoint, error) {
	if f.failing[symbol] {
		return nil, fmt.Errorf("history %s: %w", symbol, models.ErrProviderUnavailable)
	}
	return f.history[symbol], nil
}

func tx(date models.Date, symbol string, amount, price float64) models.Transaction {
	return models.Transaction{ID: fmt.Sprintf("%s-%s-%v", symbol, date, amount), Date: date, Symbol: symbol, Amount: amount, Price: price, Currency: "USD", PortfolioID: "p"}
}

func day(d int) models.Date { return models.NewDate(2024, time.January, d) }

func TestHoldingsAverageCost(t *testing.T) {
	tests := []struct {
		name       string
		txs        []models.Transaction
		wantAmount float64
		wantAvg    float64
	}{
		{"two buys", []models.Transaction{tx(day(1), "AAPL", 10, 100), tx(day(2), "AAPL", 10, 200)}, 20, 150},
		{"sell keeps average", []models.Transaction{tx(day(1), "AAPL", 10, 100), tx(day(2), "AAPL", -5, 120)}, 5, 100},
		{"only sells", []models.Transaction{tx(day(1), "AAPL", -3, 50)}, -3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices := &fakePrices{latest: map[string]float64{"AAPL": 180}}
			got := NewHoldingsProcessor(prices).Process(context.Background(), tt.txs)
			h, ok := got["AAPL"]
			if !ok {
				t.Fatalf("no AAPL holding in %v", got)
			}
			if h.Amount != tt.wantAmount || h.AverageCost != tt.wantAvg {
				t.Errorf("amount, avg = %v, %v, want %v, %v", h.Amount, h.AverageCost, tt.wantAmount, tt.wantAvg)
			}
			if h.CurrentPrice != 180 || h.TotalValue != 180*tt.wantAmount || h.PriceStatus != models.PriceStatusOK {
				t.Errorf("valuation = %+v", h)
			}
		})
	}
}

func TestHoldingsPriceFallback(t *testing.T) {
	prices := &fakePrices{failing: map[string]bool{"BAD": true}}
	txs := []models.Transaction{tx(day(1), "BAD", 2, 10), tx(day(1), "GONE", 1, 5)}
	got := NewHoldingsProcessor(prices).Process(context.Background(), txs)
	for _, symbol := range []string{"BAD", "GONE"} {
		h := got[symbol]
		if h.CurrentPrice != 0 || h.TotalValue != 0 || h.PriceStatus != models.PriceStatusUnavailable {
			t.Errorf("%s = %+v, want zero price and UNAVAILABLE", symbol, h)
		}
	}
	if got["BAD"].AverageCost != 10 {
		t.Errorf("BAD average cost = %v, want 10", got["BAD"].AverageCost)
	}
}

func TestHistoryIsPointInTime(t *testing.T) {
	prices := &fakePrices{history: map[string][]models.PricePoint{
		"AAPL": {
			{Date: day(8), Close: 100},
			{Date: day(9), Close: 101},
			{Date: day(10), Close: 102},
			{Date: day(11), Close: 103},
		},
	}}
	txs := []models.Transaction{tx(day(10), "AAPL", 10, 102)}
	now := time.Date(2024, time.January, 12, 15, 0, 0, 0, time.UTC)

	points := NewHistoryProcessor(prices).Process(context.Background(), txs, 30, now)
	if len(points) != 4 {
		t.Fatalf("got %d points, want 4", len(points))
	}
	want := []float64{0, 0, 1020, 1030}
	for i, p := range points {
		if p.Value != want[i] {
			t.Errorf("points[%d] (%s) value = %v, want %v", i, p.Date, p.Value, want[i])
		}
	}
	if points[0].CostBasis != 0 || points[3].CostBasis != 1020 {
		t.Errorf("cost basis = %v .. %v, want 0 .. 1020", points[0].CostBasis, points[3].CostBasis)
	}
}

func TestHistoryUnionOfDatesAndFailures(t *testing.T) {
	prices := &fakePrices{
		history: map[string][]models.PricePoint{
			"A": {{Date: day(3), Close: 10}, {Date: day(5), Close: 11}},
			"B": {{Date: day(4), Close: 20}, {Date: day(5), Close: 21}},
		},
		failing: map[string]bool{"C": true},
	}
	txs := []models.Transaction{
		tx(day(1), "A", 1, 10),
		tx(day(1), "B", 2, 20),
		tx(day(1), "C", 5, 1),
		tx(day(1), "EMPTY", 5, 1),
	}
	now := time.Date(2024, time.January, 6, 0, 0, 0, 0, time.UTC)
	points := NewHistoryProcessor(prices).Process(context.Background(), txs, 10, now)

	wantDates := []models.Date{day(3), day(4), day(5)}
	wantValues := []float64{10, 40, 11 + 42}
	if len(points) != len(wantDates) {
		t.Fatalf("got %d points, want %d", len(points), len(wantDates))
	}
	for i := range points {
		if points[i].Date != wantDates[i] || points[i].Value != wantValues[i] {
			t.Errorf("points[%d] = %s %v, want %s %v", i, points[i].Date, points[i].Value, wantDates[i], wantValues[i])
		}
	}
}

func TestHistoryEmptyProvider(t *testing.T) {
	points := NewHistoryProcessor(&fakePrices{}).Process(context.Background(), []models.Transaction{tx(day(1), "X", 1, 1)}, 365, time.Now())
	if points == nil || len(points) != 0 {
		t.Errorf("points = %v, want empty non-nil slice", points)
	}
}

func TestSymbolsHeldDuring(t *testing.T) {
	ledger := []models.Transaction{
		tx(day(1), "CLOSED", 5, 1),
		tx(day(2), "CLOSED", -5, 1),
		tx(day(2), "OPEN", 1, 1),
		tx(day(20), "LATER", 1, 1),
		tx(day(30), "FUTURE", 1, 1),
	}
	got := symbolsHeldDuring(ledger, day(10), day(25))
	want := []string{"LATER", "OPEN"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("symbolsHeldDuring() = %v, want %v", got, want)
	}
}
