// Package storage defines the optional archive interfaces of the engine.
// Markets and classified swaps archive to PostgreSQL, raw price ticks to
// ClickHouse; in-memory implementations back tests and storage-less runs.
// Candles are never persisted: they are derived state, rebuilt from the
// swap log on demand.
package storage

import (
	"context"

	"curvewatch/internal/domain"
)

// MarketStore persists tracked markets. Append-only, keyed by mint.
type MarketStore interface {
	// Insert adds a market. Returns ErrDuplicateKey if the mint exists.
	Insert(ctx context.Context, m *domain.TokenMarket) error

	// GetByMint retrieves a market. Returns ErrNotFound if absent.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMarket, error)

	// GetAll retrieves all tracked markets.
	GetAll(ctx context.Context) ([]*domain.TokenMarket, error)
}

// SwapStore persists classified swaps. Append-only, keyed by
// (mint, tx_signature).
type SwapStore interface {
	// Insert adds a swap. Returns ErrDuplicateKey if it exists.
	Insert(ctx context.Context, mint string, swap *domain.Swap) error

	// InsertBulk adds multiple swaps atomically. Fails the entire batch
	// on any duplicate.
	InsertBulk(ctx context.Context, mint string, swaps []*domain.Swap) error

	// GetByMint retrieves all swaps for a mint ordered by (slot, signature) ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Swap, error)
}

// TickStore persists per-swap price ticks for offline analysis.
type TickStore interface {
	// InsertBulk appends ticks.
	InsertBulk(ctx context.Context, ticks []*domain.Tick) error

	// GetByMint retrieves all ticks for a mint ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Tick, error)

	// GetByTimeRange retrieves ticks for a mint within [start, end] seconds.
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Tick, error)
}
