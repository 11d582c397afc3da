package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curvewatch/internal/domain"
	"curvewatch/internal/storage"
)

func testSwap(sig string, slot int64) *domain.Swap {
	return &domain.Swap{
		TxSignature: sig,
		Slot:        slot,
		Timestamp:   1700000000 + slot,
		Direction:   domain.Buy,
		TokenAmount: 1000,
		BaseAmount:  2.0,
		Price:       0.002,
		Tags:        domain.NewTagSet(domain.TagBundler, "BLOCK_0"),
	}
}

func TestSwapStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapStore(pool)
	ctx := context.Background()

	swap := testSwap("sig1", 100)
	swap.IsMint = true
	require.NoError(t, store.Insert(ctx, "mint1", swap))

	result, err := store.GetByMint(ctx, "mint1")
	require.NoError(t, err)
	require.Len(t, result, 1)

	got := result[0]
	assert.Equal(t, "sig1", got.TxSignature)
	assert.Equal(t, domain.Buy, got.Direction)
	assert.Equal(t, 0.002, got.Price)
	assert.True(t, got.IsMint)
	assert.True(t, got.Tags.Has(domain.TagBundler), "tags lost on round trip: %v", got.Tags.List())
	assert.True(t, got.Tags.Has("BLOCK_0"))
}

func TestSwapStore_EmptyTags(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapStore(pool)
	ctx := context.Background()

	swap := testSwap("sig1", 100)
	swap.Tags = nil
	require.NoError(t, store.Insert(ctx, "mint1", swap))

	result, err := store.GetByMint(ctx, "mint1")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Empty(t, result[0].Tags.List())
}

func TestSwapStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "mint1", testSwap("sig1", 100)))

	err := store.Insert(ctx, "mint1", testSwap("sig1", 100))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same signature under another mint is a distinct key.
	assert.NoError(t, store.Insert(ctx, "mint2", testSwap("sig1", 100)))
}

func TestSwapStore_InsertBulkAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "mint1", testSwap("sig2", 101)))

	// sig2 duplicates an existing row; the whole batch must roll back.
	err := store.InsertBulk(ctx, "mint1", []*domain.Swap{
		testSwap("sig1", 100),
		testSwap("sig2", 101),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	result, err := store.GetByMint(ctx, "mint1")
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestSwapStore_GetByMintOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSwapStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "mint1", []*domain.Swap{
		testSwap("z", 100),
		testSwap("a", 100),
		testSwap("m", 99),
	}))

	result, err := store.GetByMint(ctx, "mint1")
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "m", result[0].TxSignature)
	assert.Equal(t, "a", result[1].TxSignature)
	assert.Equal(t, "z", result[2].TxSignature)
}
