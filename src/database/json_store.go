package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
)

// JSONFileStore keeps the whole ledger as one JSON array in a single file.
// A file that is not a JSON array is a storage error; individual entries that
// fail to decode are skipped on load and left untouched on write.
type JSONFileStore struct {
	path     string
	defaults models.RecordDefaults
	mu       sync.RWMutex
}

var _ LedgerStore = (*JSONFileStore)(nil)

func NewJSONFileStore(path string, defaults models.RecordDefaults) (*JSONFileStore, error) {
	if path == "" {
		path = "data/transactions.json"
	}
	s := &JSONFileStore{path: path, defaults: defaults}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := WriteFileAtomic(path, []byte("[]\n")); err != nil {
			return nil, &models.StorageError{Op: "create", Path: path, Err: err}
		}
		logger.L.Info("Created empty ledger file", "path", path)
	} else if err != nil {
		return nil, &models.StorageError{Op: "stat", Path: path, Err: err}
	}
	return s, nil
}

func (s *JSONFileStore) Load(ctx context.Context) (LoadResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := s.readRawLocked()
	if err != nil {
		return LoadResult{}, err
	}
	var res LoadResult
	for i, entry := range raw {
		tx, err := models.DecodeRecord(entry, "", s.defaults)
		if err != nil {
			recErr := models.RecordError{Source: fmt.Sprintf("%s[%d]", s.path, i), Err: err}
			logger.FromContext(ctx).Warn("Skipping corrupt ledger record", "source", recErr.Source, "error", err)
			res.Skipped = append(res.Skipped, recErr)
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res, nil
}

func (s *JSONFileStore) Get(ctx context.Context, id string) (models.Transaction, error) {
	res, err := s.Load(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	for _, tx := range res.Transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return models.Transaction{}, models.ErrNotFound
}

func (s *JSONFileStore) Put(ctx context.Context, tx models.Transaction) error {
	return s.PutAll(ctx, []models.Transaction{tx})
}

func (s *JSONFileStore) PutAll(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRawLocked()
	if err != nil {
		return err
	}
	index := make(map[string]int, len(raw))
	for i, entry := range raw {
		if id := rawRecordID(entry); id != "" {
			index[id] = i
		}
	}
	for _, tx := range txs {
		encoded, err := json.Marshal(tx)
		if err != nil {
			return &models.StorageError{Op: "encode", Path: s.path, Err: err}
		}
		if i, ok := index[tx.ID]; ok {
			raw[i] = encoded
			continue
		}
		index[tx.ID] = len(raw)
		raw = append(raw, encoded)
	}
	return s.writeRawLocked(raw)
}

func (s *JSONFileStore) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRawLocked()
	if err != nil {
		return false, err
	}
	kept := raw[:0]
	removed := false
	for _, entry := range raw {
		if rawRecordID(entry) == id {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if !removed {
		return false, nil
	}
	return true, s.writeRawLocked(kept)
}

func (s *JSONFileStore) Close() error { return nil }

func (s *JSONFileStore) readRawLocked() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "read", Path: s.path, Err: err}
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &models.StorageError{Op: "decode", Path: s.path, Err: err}
	}
	return raw, nil
}

func (s *JSONFileStore) writeRawLocked(raw []json.RawMessage) error {
	if raw == nil {
		raw = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return &models.StorageError{Op: "encode", Path: s.path, Err: err}
	}
	if err := WriteFileAtomic(s.path, append(data, '\n')); err != nil {
		return &models.StorageError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// rawRecordID extracts the id of a stored entry without fully decoding it, so
// corrupt entries can still be matched by id.
func rawRecordID(entry json.RawMessage) string {
	var ids struct {
		ID            string `json:"id"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(entry, &ids); err != nil {
		return ""
	}
	if ids.ID != "" {
		return ids.ID
	}
	return ids.TransactionID
}
