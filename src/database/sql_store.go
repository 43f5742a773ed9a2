package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	_ "modernc.org/sqlite"
)

// SQLStore keeps the ledger in a "transactions" table. The same queries serve
// SQLite and PostgreSQL; only placeholder syntax differs.
type SQLStore struct {
	db       *sql.DB
	dialect  string
	location string
	mu       sync.Mutex
}

var _ LedgerStore = (*SQLStore)(nil)

const createTransactionsTable = `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	symbol TEXT NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	commission DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency TEXT NOT NULL,
	portfolio_id TEXT NOT NULL,
	notes TEXT
)`

const selectColumns = `SELECT id, date, symbol, amount, price, commission, currency, portfolio_id, notes FROM transactions`

const upsertTransaction = `INSERT INTO transactions (id, date, symbol, amount, price, commission, currency, portfolio_id, notes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	date = excluded.date,
	symbol = excluded.symbol,
	amount = excluded.amount,
	price = excluded.price,
	commission = excluded.commission,
	currency = excluded.currency,
	portfolio_id = excluded.portfolio_id,
	notes = excluded.notes`

// NewSQLiteStore opens (or creates) a SQLite ledger at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		path = "./stocktracker.db"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &models.StorageError{Op: "create", Path: dir, Err: err}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &models.StorageError{Op: "open", Path: path, Err: err}
	}
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, BackendSQLite, path)
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*SQLStore, error) {
	if databaseURL == "" {
		return nil, &models.StorageError{Op: "open", Err: errors.New("database URL is empty")}
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, &models.StorageError{Op: "open", Err: err}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &models.StorageError{Op: "ping", Err: err}
	}
	return newSQLStore(ctx, db, BackendPostgres, "postgres")
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect, location string) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect, location: location}
	if _, err := db.ExecContext(ctx, createTransactionsTable); err != nil {
		db.Close()
		return nil, &models.StorageError{Op: "migrate", Path: location, Err: err}
	}
	logger.L.Info("Ledger table ensured", "dialect", dialect)
	return s, nil
}

// rebind rewrites ? placeholders as $1, $2… for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != BackendPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Load(ctx context.Context) (LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY date, id")
	if err != nil {
		return LoadResult{}, &models.StorageError{Op: "query", Path: s.location, Err: err}
	}
	defer rows.Close()

	var res LoadResult
	for rows.Next() {
		tx, id, err := scanTransaction(rows)
		if err != nil {
			recErr := models.RecordError{Source: "transactions/" + id, Err: err}
			logger.FromContext(ctx).Warn("Skipping corrupt ledger row", "source", recErr.Source, "error", err)
			res.Skipped = append(res.Skipped, recErr)
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return LoadResult{}, &models.StorageError{Op: "query", Path: s.location, Err: err}
	}
	return res, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, s.rebind(selectColumns+" WHERE id = ?"), id)
	if err != nil {
		return models.Transaction{}, &models.StorageError{Op: "query", Path: s.location, Err: err}
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Transaction{}, &models.StorageError{Op: "query", Path: s.location, Err: err}
		}
		return models.Transaction{}, models.ErrNotFound
	}
	tx, _, err := scanTransaction(rows)
	if err != nil {
		return models.Transaction{}, &models.StorageError{Op: "decode", Path: s.location, Err: err}
	}
	return tx, nil
}

func (s *SQLStore) Put(ctx context.Context, tx models.Transaction) error {
	return s.PutAll(ctx, []models.Transaction{tx})
}

func (s *SQLStore) PutAll(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.StorageError{Op: "begin", Path: s.location, Err: err}
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, s.rebind(upsertTransaction))
	if err != nil {
		return &models.StorageError{Op: "prepare", Path: s.location, Err: err}
	}
	defer stmt.Close()

	for _, tx := range txs {
		var notes sql.NullString
		if tx.Notes != nil {
			notes = sql.NullString{String: *tx.Notes, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, tx.ID, tx.Date.String(), tx.Symbol, tx.Amount, tx.Price, tx.Commission, tx.Currency, tx.PortfolioID, notes); err != nil {
			return &models.StorageError{Op: "write", Path: s.location, Err: fmt.Errorf("transaction %s: %w", tx.ID, err)}
		}
	}
	if err := dbTx.Commit(); err != nil {
		return &models.StorageError{Op: "commit", Path: s.location, Err: err}
	}
	return nil
}

func (s *SQLStore) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM transactions WHERE id = ?"), id)
	if err != nil {
		return false, &models.StorageError{Op: "delete", Path: s.location, Err: err}
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, &models.StorageError{Op: "delete", Path: s.location, Err: err}
	}
	return n > 0, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTransaction reads one row and checks it against the record invariants,
// so a row edited outside the tracker is skipped like a corrupt file record.
func scanTransaction(row rowScanner) (models.Transaction, string, error) {
	var (
		id, date, symbol, currency, portfolio string
		amount, price, commission             float64
		notes                                 sql.NullString
	)
	if err := row.Scan(&id, &date, &symbol, &amount, &price, &commission, &currency, &portfolio, &notes); err != nil {
		return models.Transaction{}, id, err
	}
	in := models.TransactionInput{
		Date:        &date,
		Symbol:      &symbol,
		Amount:      &amount,
		Price:       &price,
		Commission:  &commission,
		Currency:    &currency,
		PortfolioID: &portfolio,
	}
	if notes.Valid {
		in.Notes = &notes.String
	}
	tx, err := in.Build(id, models.Date{})
	if err != nil {
		return models.Transaction{}, id, err
	}
	return tx, id, nil
}
