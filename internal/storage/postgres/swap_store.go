package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"curvewatch/internal/domain"
	"curvewatch/internal/storage"
)

// SwapStore implements storage.SwapStore using PostgreSQL.
type SwapStore struct {
	pool *Pool
}

// NewSwapStore creates a new SwapStore.
func NewSwapStore(pool *Pool) *SwapStore {
	return &SwapStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapStore = (*SwapStore)(nil)

// tagsArray renders a tag set for a text[] column; the column is NOT NULL
// so an empty set must stay an empty array, not NULL.
func tagsArray(ts domain.TagSet) []string {
	if tags := ts.List(); tags != nil {
		return tags
	}
	return []string{}
}

const insertSwapQuery = `
	INSERT INTO swaps (
		mint, tx_signature, slot, timestamp, direction,
		token_amount, base_amount, price, is_mint, is_volume_bot, tags
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// Insert adds a swap. Returns ErrDuplicateKey if (mint, tx_signature) exists.
func (s *SwapStore) Insert(ctx context.Context, mint string, swap *domain.Swap) error {
	_, err := s.pool.Exec(ctx, insertSwapQuery,
		mint,
		swap.TxSignature,
		swap.Slot,
		swap.Timestamp,
		string(swap.Direction),
		swap.TokenAmount,
		swap.BaseAmount,
		swap.Price,
		swap.IsMint,
		swap.IsVolumeBot,
		tagsArray(swap.Tags),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert swap: %w", err)
	}
	return nil
}

// InsertBulk adds multiple swaps atomically. Fails the entire batch on any
// duplicate.
func (s *SwapStore) InsertBulk(ctx context.Context, mint string, swaps []*domain.Swap) error {
	if len(swaps) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, swap := range swaps {
		_, err := tx.Exec(ctx, insertSwapQuery,
			mint,
			swap.TxSignature,
			swap.Slot,
			swap.Timestamp,
			string(swap.Direction),
			swap.TokenAmount,
			swap.BaseAmount,
			swap.Price,
			swap.IsMint,
			swap.IsVolumeBot,
			tagsArray(swap.Tags),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert swap in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByMint retrieves all swaps for a mint ordered by (slot, signature) ASC.
func (s *SwapStore) GetByMint(ctx context.Context, mint string) ([]*domain.Swap, error) {
	query := `
		SELECT tx_signature, slot, timestamp, direction,
		       token_amount, base_amount, price, is_mint, is_volume_bot, tags
		FROM swaps
		WHERE mint = $1
		ORDER BY slot ASC, tx_signature ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get swaps by mint: %w", err)
	}
	defer rows.Close()

	return scanSwaps(rows)
}

// scanSwaps scans multiple rows into a slice of Swap.
func scanSwaps(rows pgx.Rows) ([]*domain.Swap, error) {
	var swaps []*domain.Swap

	for rows.Next() {
		var swap domain.Swap
		var direction string
		var tags []string

		err := rows.Scan(
			&swap.TxSignature,
			&swap.Slot,
			&swap.Timestamp,
			&direction,
			&swap.TokenAmount,
			&swap.BaseAmount,
			&swap.Price,
			&swap.IsMint,
			&swap.IsVolumeBot,
			&tags,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap row: %w", err)
		}

		swap.Direction = domain.Direction(direction)
		swap.Tags = domain.NewTagSet(tags...)
		swaps = append(swaps, &swap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap rows: %w", err)
	}

	return swaps, nil
}
