package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/username/stocktracker/src/database"
	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/parsers"
)

// LedgerOptions configures defaults applied to incoming transactions.
type LedgerOptions struct {
	DefaultCurrency    string
	DefaultPortfolioID string
	// Now is the clock used for default trade dates; time.Now when nil.
	Now func() time.Time
}

type ledgerServiceImpl struct {
	store database.LedgerStore
	opts  LedgerOptions
}

func NewLedgerService(store database.LedgerStore, opts LedgerOptions) LedgerService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ledgerServiceImpl{store: store, opts: opts}
}

func (s *ledgerServiceImpl) today() models.Date { return models.DateOf(s.opts.Now()) }

func (s *ledgerServiceImpl) Add(ctx context.Context, input models.TransactionInput) (models.Transaction, error) {
	log := logger.FromContext(ctx)
	input = input.WithDefaults(s.opts.DefaultCurrency, s.opts.DefaultPortfolioID)

	id := uuid.NewString()
	if input.ID != nil && strings.TrimSpace(*input.ID) != "" {
		id = strings.TrimSpace(*input.ID)
		if err := s.checkNewID(ctx, id); err != nil {
			return models.Transaction{}, err
		}
	}

	tx, err := input.Build(id, s.today())
	if err != nil {
		log.Debug("Rejected transaction", "error", err)
		return models.Transaction{}, err
	}
	if err := s.store.Put(ctx, tx); err != nil {
		log.Error("Failed to persist transaction", "id", tx.ID, "error", err)
		return models.Transaction{}, err
	}
	log.Info("Transaction added", "id", tx.ID, "symbol", tx.Symbol, "amount", tx.Amount, "portfolio", tx.PortfolioID)
	return tx, nil
}

// checkNewID rejects caller-chosen ids that are unsafe or already taken.
func (s *ledgerServiceImpl) checkNewID(ctx context.Context, id string) error {
	verr := &models.ValidationError{}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		verr.Add("id", "must not contain path separators")
		return verr
	}
	_, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		verr.Add("id", "already exists")
		return verr
	case errors.Is(err, models.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *ledgerServiceImpl) Get(ctx context.Context, id string) (models.Transaction, error) {
	return s.store.Get(ctx, id)
}

func (s *ledgerServiceImpl) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	res, err := s.ListWithSkipped(ctx, filter)
	if err != nil {
		return nil, err
	}
	return res.Transactions, nil
}

func (s *ledgerServiceImpl) ListWithSkipped(ctx context.Context, filter models.TransactionFilter) (ListResult, error) {
	res, err := s.store.Load(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to load ledger", "error", err)
		return ListResult{}, err
	}

	out := make([]models.Transaction, 0, len(res.Transactions))
	for _, tx := range res.Transactions {
		if filter.Match(tx) {
			out = append(out, tx)
		}
	}
	switch filter.Sort {
	case models.SortDateAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	case models.SortDateDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	}
	return ListResult{Transactions: out, Skipped: res.Skipped}, nil
}

func (s *ledgerServiceImpl) Update(ctx context.Context, id string, patch models.TransactionInput) (models.Transaction, error) {
	log := logger.FromContext(ctx)
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if patch.ID != nil && strings.TrimSpace(*patch.ID) != "" && strings.TrimSpace(*patch.ID) != id {
		verr := &models.ValidationError{}
		verr.Add("id", "is immutable")
		return models.Transaction{}, verr
	}

	tx, err := existing.Input().Merge(patch).Build(id, existing.Date)
	if err != nil {
		return models.Transaction{}, err
	}
	if err := s.store.Put(ctx, tx); err != nil {
		log.Error("Failed to persist updated transaction", "id", id, "error", err)
		return models.Transaction{}, err
	}
	log.Info("Transaction updated", "id", id)
	return tx, nil
}

func (s *ledgerServiceImpl) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.store.Remove(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to delete transaction", "id", id, "error", err)
		return false, err
	}
	if removed {
		logger.FromContext(ctx).Info("Transaction deleted", "id", id)
	}
	return removed, nil
}

// Import validates every row before writing any. Ids in the file are ignored
// and fresh ones assigned, so importing an export never collides with the
// ledger it came from.
func (s *ledgerServiceImpl) Import(ctx context.Context, format string, r io.Reader) ([]models.Transaction, error) {
	log := logger.FromContext(ctx)
	parser, err := parsers.GetParser(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	inputs, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	today := s.today()
	verr := &models.ValidationError{}
	txs := make([]models.Transaction, 0, len(inputs))
	for i, in := range inputs {
		in = in.WithDefaults(s.opts.DefaultCurrency, s.opts.DefaultPortfolioID)
		tx, err := in.Build(uuid.NewString(), today)
		if err != nil {
			var rowErr *models.ValidationError
			if errors.As(err, &rowErr) {
				verr.Merge(fmt.Sprintf("row %d: ", i+1), rowErr)
				continue
			}
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := verr.Err(); err != nil {
		log.Warn("Import rejected", "format", format, "rows", len(inputs), "violations", len(verr.Violations))
		return nil, err
	}
	if err := s.store.PutAll(ctx, txs); err != nil {
		log.Error("Failed to persist imported transactions", "count", len(txs), "error", err)
		return nil, err
	}
	log.Info("Transactions imported", "format", format, "count", len(txs))
	return txs, nil
}

func (s *ledgerServiceImpl) Export(ctx context.Context, format string, w io.Writer, filter models.TransactionFilter, opts parsers.ExportOptions) (int, error) {
	codec, err := parsers.GetCodec(format, opts)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if filter.Sort == "" {
		filter.Sort = models.SortDateAsc
	}
	txs, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	if err := codec.Export(w, txs); err != nil {
		return 0, fmt.Errorf("failed to write %s export: %w", format, err)
	}
	return len(txs), nil
}

