package postgres

import (
	"context"
	"fmt"

	"curvewatch/internal/domain"
	"curvewatch/internal/storage"
)

// MarketStore implements storage.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *Pool
}

// NewMarketStore creates a new MarketStore.
func NewMarketStore(pool *Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MarketStore = (*MarketStore)(nil)

// Insert adds a market. Returns ErrDuplicateKey if the mint exists.
func (s *MarketStore) Insert(ctx context.Context, m *domain.TokenMarket) error {
	query := `
		INSERT INTO markets (mint, reserve_account, discovered_at)
		VALUES ($1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query, m.Mint, m.ReserveAccount, m.DiscoveredAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert market: %w", err)
	}
	return nil
}

// GetByMint retrieves a market. Returns ErrNotFound if absent.
func (s *MarketStore) GetByMint(ctx context.Context, mint string) (*domain.TokenMarket, error) {
	query := `
		SELECT mint, reserve_account, discovered_at
		FROM markets
		WHERE mint = $1
	`

	var m domain.TokenMarket
	err := s.pool.QueryRow(ctx, query, mint).Scan(&m.Mint, &m.ReserveAccount, &m.DiscoveredAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get market by mint: %w", err)
	}
	return &m, nil
}

// GetAll retrieves all tracked markets, ordered by mint.
func (s *MarketStore) GetAll(ctx context.Context) ([]*domain.TokenMarket, error) {
	query := `
		SELECT mint, reserve_account, discovered_at
		FROM markets
		ORDER BY mint ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all markets: %w", err)
	}
	defer rows.Close()

	var markets []*domain.TokenMarket
	for rows.Next() {
		var m domain.TokenMarket
		if err := rows.Scan(&m.Mint, &m.ReserveAccount, &m.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("scan market row: %w", err)
		}
		markets = append(markets, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market rows: %w", err)
	}

	return markets, nil
}
