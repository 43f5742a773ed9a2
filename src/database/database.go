package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
)

// Ledger backends selectable through LEDGER_BACKEND or a "backend:arg" spec.
const (
	BackendJSON     = "json"
	BackendDir      = "dir"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// LoadResult is the full ledger plus the persisted records that were skipped
// because they could not be decoded.
type LoadResult struct {
	Transactions []models.Transaction
	Skipped      []models.RecordError
}

// LedgerStore persists transactions. Every mutating call has written the
// resulting state to the backend before it returns. Stores serialize their own
// operations within one process; they give no isolation between processes.
type LedgerStore interface {
	Load(ctx context.Context) (LoadResult, error)
	Get(ctx context.Context, id string) (models.Transaction, error)
	// Put inserts tx or replaces the record with the same id.
	Put(ctx context.Context, tx models.Transaction) error
	// PutAll writes a batch; SQL backends write it in one database transaction.
	PutAll(ctx context.Context, txs []models.Transaction) error
	// Remove reports whether a record with id existed.
	Remove(ctx context.Context, id string) (bool, error)
	Close() error
}

// OpenLedgerStore opens the configured backend. location is a file path for
// json and sqlite, a directory for dir, and a connection URL for postgres.
// defaults complete file records that predate the currency and portfolio
// fields.
func OpenLedgerStore(ctx context.Context, backend, location string, defaults models.RecordDefaults) (LedgerStore, error) {
	logger.L.Info("Opening ledger store", "backend", backend, "location", redactLocation(backend, location))
	switch strings.ToLower(backend) {
	case BackendJSON, "file":
		return NewJSONFileStore(location, defaults)
	case BackendDir:
		return NewDirStore(location, defaults)
	case BackendSQLite:
		return NewSQLiteStore(ctx, location)
	case BackendPostgres:
		return NewPostgresStore(ctx, location)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", backend)
	}
}

// ParseSpec splits a "backend:arg" storage spec such as "sqlite:ledger.db" or
// "postgres:postgres://user@host/db". A spec without a known backend prefix is
// treated as a JSON file path.
func ParseSpec(spec string) (backend, arg string) {
	if spec == "" {
		return BackendJSON, "data/transactions.json"
	}
	if strings.HasPrefix(spec, "postgres://") || strings.HasPrefix(spec, "postgresql://") {
		return BackendPostgres, spec
	}
	if !strings.Contains(spec, ":") {
		switch b := strings.ToLower(spec); b {
		case BackendMemory, BackendJSON, BackendDir, BackendSQLite, BackendPostgres:
			return b, ""
		default:
			return BackendJSON, spec
		}
	}
	parts := strings.SplitN(spec, ":", 2)
	switch b := strings.ToLower(parts[0]); b {
	case BackendMemory, BackendJSON, BackendDir, BackendSQLite, BackendPostgres, "file":
		return b, parts[1]
	default:
		return BackendJSON, spec
	}
}

func redactLocation(backend, location string) string {
	if backend == BackendPostgres {
		return "<database url>"
	}
	return location
}

func sortByID(txs []models.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a half-written ledger.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
