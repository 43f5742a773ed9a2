package database

import (
	"context"
	"sync"

	"github.com/username/stocktracker/src/models"
)

// MemoryStore is a non-persistent ledger used by tests and dry runs.
type MemoryStore struct {
	mu  sync.RWMutex
	txs map[string]models.Transaction
}

var _ LedgerStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[string]models.Transaction)}
}

func (s *MemoryStore) Load(ctx context.Context) (LoadResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, tx)
	}
	sortByID(out)
	return LoadResult{Transactions: out}, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return models.Transaction{}, models.ErrNotFound
	}
	return tx, nil
}

func (s *MemoryStore) Put(ctx context.Context, tx models.Transaction) error {
	return s.PutAll(ctx, []models.Transaction{tx})
}

func (s *MemoryStore) PutAll(ctx context.Context, txs []models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.txs[tx.ID] = tx
	}
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return false, nil
	}
	delete(s.txs, id)
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }
