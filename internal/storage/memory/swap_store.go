package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"curvewatch/internal/domain"
	"curvewatch/internal/storage"
)

// SwapStore is an in-memory implementation of storage.SwapStore.
type SwapStore struct {
	mu   sync.RWMutex
	data map[string]*swapRecord // keyed by composite key
}

type swapRecord struct {
	mint string
	swap *domain.Swap
}

// NewSwapStore creates a new in-memory swap store.
func NewSwapStore() *SwapStore {
	return &SwapStore{
		data: make(map[string]*swapRecord),
	}
}

var _ storage.SwapStore = (*SwapStore)(nil)

// swapKey generates a unique key for a swap.
func swapKey(mint, txSignature string) string {
	return fmt.Sprintf("%s|%s", mint, txSignature)
}

// cloneSwap copies a swap including its tag set.
func cloneSwap(swap *domain.Swap) *domain.Swap {
	cp := *swap
	cp.Tags = swap.Tags.Clone()
	return &cp
}

// Insert adds a swap. Returns ErrDuplicateKey if it exists.
func (s *SwapStore) Insert(_ context.Context, mint string, swap *domain.Swap) error {
	if swap == nil || mint == "" || swap.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	key := swapKey(mint, swap.TxSignature)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = &swapRecord{mint: mint, swap: cloneSwap(swap)}
	return nil
}

// InsertBulk adds multiple swaps atomically. Fails the entire batch on any
// duplicate, existing or intra-batch.
func (s *SwapStore) InsertBulk(_ context.Context, mint string, swaps []*domain.Swap) error {
	if len(swaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(swaps))
	for _, swap := range swaps {
		if swap == nil || mint == "" || swap.TxSignature == "" {
			return storage.ErrInvalidInput
		}
		key := swapKey(mint, swap.TxSignature)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, swap := range swaps {
		key := swapKey(mint, swap.TxSignature)
		s.data[key] = &swapRecord{mint: mint, swap: cloneSwap(swap)}
	}

	return nil
}

// GetByMint retrieves all swaps for a mint ordered by (slot, signature) ASC.
func (s *SwapStore) GetByMint(_ context.Context, mint string) ([]*domain.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Swap
	for _, rec := range s.data {
		if rec.mint == mint {
			result = append(result, cloneSwap(rec.swap))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Slot != result[j].Slot {
			return result[i].Slot < result[j].Slot
		}
		return result[i].TxSignature < result[j].TxSignature
	})

	return result, nil
}
