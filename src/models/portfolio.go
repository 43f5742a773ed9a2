package models

// Price status values reported on a Holding.
const (
	PriceStatusOK          = "OK"
	PriceStatusUnavailable = "UNAVAILABLE"
)

// Holding is the derived position in one symbol. When no price could be
// obtained CurrentPrice and TotalValue are zero and PriceStatus is UNAVAILABLE.
type Holding struct {
	Symbol       string  `json:"symbol"`
	Amount       float64 `json:"amount"`
	AverageCost  float64 `json:"average_cost"`
	CostBasis    float64 `json:"cost_basis"`
	CurrentPrice float64 `json:"current_price"`
	TotalValue   float64 `json:"total_value"`
	PriceStatus  string  `json:"price_status"`
}

// PortfolioValuePoint is the portfolio's market value on one trading date,
// next to the net amount invested up to that date.
type PortfolioValuePoint struct {
	Date      Date    `json:"date"`
	Value     float64 `json:"value"`
	CostBasis float64 `json:"cost_basis"`
}

// PricePoint is one daily close reported by a market data provider.
type PricePoint struct {
	Date  Date    `json:"date"`
	Close float64 `json:"close"`
}

// TickerSuggestion is an autocomplete entry, label "SYMBOL - Short name".
type TickerSuggestion struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// BackupInfo describes one ledger snapshot on disk.
type BackupInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Created string `json:"created"`
	Records int    `json:"records,omitempty"`
}
