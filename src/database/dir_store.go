package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
)

// DirStore keeps one <id>.json file per transaction. A file that cannot be
// decoded is skipped on load and reported in LoadResult.Skipped. Files without
// an id in the body take their id from the file name.
type DirStore struct {
	dir      string
	defaults models.RecordDefaults
	mu       sync.RWMutex
}

var _ LedgerStore = (*DirStore)(nil)

func NewDirStore(dir string, defaults models.RecordDefaults) (*DirStore, error) {
	if dir == "" {
		dir = "data/transactions"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &models.StorageError{Op: "create", Path: dir, Err: err}
	}
	return &DirStore{dir: dir, defaults: defaults}, nil
}

func (s *DirStore) Load(ctx context.Context) (LoadResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return LoadResult{}, &models.StorageError{Op: "read", Path: s.dir, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), "tmp-") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var res LoadResult
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		tx, err := s.readRecordFile(path)
		if err != nil {
			recErr := models.RecordError{Source: path, Err: err}
			logger.FromContext(ctx).Warn("Skipping corrupt transaction file", "path", path, "error", err)
			res.Skipped = append(res.Skipped, recErr)
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res, nil
}

func (s *DirStore) Get(ctx context.Context, id string) (models.Transaction, error) {
	path, ok := s.recordPath(id)
	if !ok {
		return models.Transaction{}, models.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.readRecordFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Transaction{}, models.ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, &models.StorageError{Op: "read", Path: path, Err: err}
	}
	return tx, nil
}

func (s *DirStore) Put(ctx context.Context, tx models.Transaction) error {
	return s.PutAll(ctx, []models.Transaction{tx})
}

// PutAll encodes the whole batch before touching the directory, then writes
// each record atomically.
func (s *DirStore) PutAll(ctx context.Context, txs []models.Transaction) error {
	type pending struct {
		path string
		data []byte
	}
	batch := make([]pending, 0, len(txs))
	for _, tx := range txs {
		path, ok := s.recordPath(tx.ID)
		if !ok {
			return &models.StorageError{Op: "write", Path: s.dir, Err: fmt.Errorf("invalid record id %q", tx.ID)}
		}
		data, err := json.MarshalIndent(tx, "", "  ")
		if err != nil {
			return &models.StorageError{Op: "encode", Path: path, Err: err}
		}
		batch = append(batch, pending{path: path, data: append(data, '\n')})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range batch {
		if err := WriteFileAtomic(p.path, p.data); err != nil {
			return &models.StorageError{Op: "write", Path: p.path, Err: err}
		}
	}
	return nil
}

func (s *DirStore) Remove(ctx context.Context, id string) (bool, error) {
	path, ok := s.recordPath(id)
	if !ok {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &models.StorageError{Op: "remove", Path: path, Err: err}
	}
	return true, nil
}

func (s *DirStore) Close() error { return nil }

// recordPath rejects ids that would escape the ledger directory.
func (s *DirStore) recordPath(id string) (string, bool) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", false
	}
	return filepath.Join(s.dir, id+".json"), true
}

func (s *DirStore) readRecordFile(path string) (models.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Transaction{}, err
	}
	id := strings.TrimSuffix(filepath.Base(path), ".json")
	return models.DecodeRecord(data, id, s.defaults)
}
