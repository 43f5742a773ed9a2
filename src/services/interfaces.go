package services

import (
	"context"
	"io"

	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/parsers"
	"github.com/username/stocktracker/src/processors"
)

// LedgerService is the transaction ledger: CRUD plus bulk import and export.
type LedgerService interface {
	Add(ctx context.Context, input models.TransactionInput) (models.Transaction, error)
	Get(ctx context.Context, id string) (models.Transaction, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
	// ListWithSkipped is List plus the corrupt records this load had to skip.
	ListWithSkipped(ctx context.Context, filter models.TransactionFilter) (ListResult, error)
	Update(ctx context.Context, id string, patch models.TransactionInput) (models.Transaction, error)
	Delete(ctx context.Context, id string) (bool, error)
	Import(ctx context.Context, format string, r io.Reader) ([]models.Transaction, error)
	Export(ctx context.Context, format string, w io.Writer, filter models.TransactionFilter, opts parsers.ExportOptions) (int, error)
}

// ListResult is one ledger read: the matching records and the persisted
// records that could not be decoded.
type ListResult struct {
	Transactions []models.Transaction
	Skipped      []models.RecordError
}

// PortfolioService computes derived views. Each call reloads the ledger.
type PortfolioService interface {
	GetHoldings(ctx context.Context, portfolioID string) ([]models.Holding, error)
	GetHistory(ctx context.Context, portfolioID string, days int) ([]models.PortfolioValuePoint, error)
}

// PriceService is a market data provider adapter.
type PriceService interface {
	processors.PriceSource
	Name() string
}

// TickerService offers symbol autocomplete.
type TickerService interface {
	Search(ctx context.Context, query string) []models.TickerSuggestion
}

// BackupService snapshots the ledger to disk.
type BackupService interface {
	Create(ctx context.Context) (models.BackupInfo, error)
	List() ([]models.BackupInfo, error)
}
