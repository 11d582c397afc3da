package memory

import (
	"context"
	"sort"
	"sync"

	"curvewatch/internal/domain"
	"curvewatch/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
type TickStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Tick // keyed by mint
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{
		data: make(map[string][]*domain.Tick),
	}
}

var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk appends ticks.
func (s *TickStore) InsertBulk(_ context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, tick := range ticks {
		if tick == nil || tick.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tick := range ticks {
		cp := *tick
		s.data[tick.Mint] = append(s.data[tick.Mint], &cp)
	}
	return nil
}

// GetByMint retrieves all ticks for a mint ordered by timestamp ASC.
func (s *TickStore) GetByMint(_ context.Context, mint string) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticks := s.data[mint]
	result := make([]*domain.Tick, 0, len(ticks))
	for _, tick := range ticks {
		cp := *tick
		result = append(result, &cp)
	}

	sortTicks(result)
	return result, nil
}

// GetByTimeRange retrieves ticks for a mint within [start, end] (inclusive).
func (s *TickStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Tick
	for _, tick := range s.data[mint] {
		if tick.Timestamp >= start && tick.Timestamp <= end {
			cp := *tick
			result = append(result, &cp)
		}
	}

	sortTicks(result)
	return result, nil
}

func sortTicks(ticks []*domain.Tick) {
	sort.Slice(ticks, func(i, j int) bool {
		if ticks[i].Timestamp != ticks[j].Timestamp {
			return ticks[i].Timestamp < ticks[j].Timestamp
		}
		return ticks[i].TxSignature < ticks[j].TxSignature
	})
}
