package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"curvewatch/internal/domain"
	"curvewatch/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk appends ticks. MergeTree does not enforce uniqueness, so
// duplicate (mint, tx_signature) pairs are dropped here before the batch.
func (s *TickStore) InsertBulk(ctx context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	type key struct {
		mint        string
		txSignature string
	}
	seen := make(map[key]struct{}, len(ticks))

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (
			mint, tx_signature, slot, timestamp, side, price, base_amount, token_amount
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, tick := range ticks {
		k := key{tick.Mint, tick.TxSignature}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		exists, err := s.exists(ctx, tick.Mint, tick.TxSignature)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			continue
		}

		err = batch.Append(
			tick.Mint, tick.TxSignature, uint64(tick.Slot), uint64(tick.Timestamp),
			tick.Side, tick.Price, tick.BaseAmount, tick.TokenAmount,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves all ticks for a mint ordered by timestamp ASC.
func (s *TickStore) GetByMint(ctx context.Context, mint string) ([]*domain.Tick, error) {
	query := `
		SELECT mint, tx_signature, slot, timestamp, side, price, base_amount, token_amount
		FROM ticks
		WHERE mint = ?
		ORDER BY timestamp ASC, tx_signature ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query ticks by mint: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// GetByTimeRange retrieves ticks for a mint within [start, end] (inclusive).
func (s *TickStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Tick, error) {
	query := `
		SELECT mint, tx_signature, slot, timestamp, side, price, base_amount, token_amount
		FROM ticks
		WHERE mint = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, tx_signature ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query ticks by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// exists checks whether a tick with the given key is already archived.
func (s *TickStore) exists(ctx context.Context, mint, txSignature string) (bool, error) {
	query := `
		SELECT count(*) FROM ticks
		WHERE mint = ? AND tx_signature = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, mint, txSignature).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanTicks scans multiple rows.
func scanTicks(rows driver.Rows) ([]*domain.Tick, error) {
	var ticks []*domain.Tick

	for rows.Next() {
		var tick domain.Tick
		var slot, timestamp uint64

		err := rows.Scan(
			&tick.Mint, &tick.TxSignature, &slot, &timestamp,
			&tick.Side, &tick.Price, &tick.BaseAmount, &tick.TokenAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}

		tick.Slot = int64(slot)
		tick.Timestamp = int64(timestamp)
		ticks = append(ticks, &tick)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}

	return ticks, nil
}
