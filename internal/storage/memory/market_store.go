// Package memory provides in-memory implementations of the storage
// interfaces for tests and storage-less runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"curvewatch/internal/domain"
	"curvewatch/internal/storage"
)

// MarketStore is an in-memory implementation of storage.MarketStore.
type MarketStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenMarket // keyed by mint
}

// NewMarketStore creates a new in-memory market store.
func NewMarketStore() *MarketStore {
	return &MarketStore{
		data: make(map[string]*domain.TokenMarket),
	}
}

var _ storage.MarketStore = (*MarketStore)(nil)

// Insert adds a market. Returns ErrDuplicateKey if the mint exists.
func (s *MarketStore) Insert(_ context.Context, m *domain.TokenMarket) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *m
	s.data[m.Mint] = &cp
	return nil
}

// GetByMint retrieves a market. Returns ErrNotFound if absent.
func (s *MarketStore) GetByMint(_ context.Context, mint string) (*domain.TokenMarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// GetAll retrieves all tracked markets, ordered by mint.
func (s *MarketStore) GetAll(_ context.Context) ([]*domain.TokenMarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TokenMarket, 0, len(s.data))
	for _, m := range s.data {
		cp := *m
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Mint < result[j].Mint
	})

	return result, nil
}
