// Package backfill reconstructs a market's transaction history from RPC:
// signature pagination backwards in time, then bounded-concurrency
// transaction resolution.
package backfill

import (
	"context"
	"fmt"
	"log"
	"time"

	"curvewatch/internal/solana"
)

// DefaultPageSize is the signature page size per RPC call.
const DefaultPageSize = 1000

// SignatureFetcher pages getSignaturesForAddress backwards from the present
// until the lookback window is exhausted or history runs out.
type SignatureFetcher struct {
	rpc      solana.RPCClient
	pageSize int
	logger   *log.Logger
	now      func() time.Time
}

// SignatureFetcherOptions configures a SignatureFetcher.
type SignatureFetcherOptions struct {
	RPC      solana.RPCClient
	PageSize int // optional; defaults to DefaultPageSize
	Logger   *log.Logger
	Now      func() time.Time // optional; test hook
}

// NewSignatureFetcher creates a SignatureFetcher.
func NewSignatureFetcher(opts SignatureFetcherOptions) *SignatureFetcher {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SignatureFetcher{
		rpc:      opts.RPC,
		pageSize: pageSize,
		logger:   logger,
		now:      now,
	}
}

// FetchSince returns all successful signatures touching the account within
// the lookback window, oldest first. Failed transactions and entries
// without a block time are dropped; they can never contribute a swap.
func (f *SignatureFetcher) FetchSince(ctx context.Context, account string, lookback time.Duration) ([]solana.SignatureInfo, error) {
	cutoff := f.now().Add(-lookback).Unix()

	var collected []solana.SignatureInfo
	before := ""
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := f.rpc.GetSignaturesForAddress(ctx, account, &solana.SignaturesOpts{
			Before: before,
			Limit:  f.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch signatures page %d: %w", pages, err)
		}
		pages++

		if len(page) == 0 {
			break
		}

		reachedCutoff := false
		for _, sig := range page {
			if sig.BlockTime == nil {
				continue
			}
			if *sig.BlockTime < cutoff {
				reachedCutoff = true
				break
			}
			if sig.Err != nil {
				continue
			}
			collected = append(collected, sig)
		}

		if reachedCutoff || len(page) < f.pageSize {
			break
		}
		before = page[len(page)-1].Signature
	}

	// Pages arrive newest first; the swap log is built oldest first.
	reverse(collected)

	f.logger.Printf("[backfill] %s: %d signatures in window (%d pages)", account, len(collected), pages)
	return collected, nil
}

func reverse(sigs []solana.SignatureInfo) {
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
}
