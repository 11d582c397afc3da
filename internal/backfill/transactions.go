package backfill

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"curvewatch/internal/solana"
)

// Default transaction fetch parameters.
const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 4
)

// TransactionFetcher resolves signatures into full transactions in batches
// with bounded concurrency. Results come back in signature order regardless
// of fetch-completion order, so downstream sorting sees a stable input.
type TransactionFetcher struct {
	rpc         solana.RPCClient
	batchSize   int
	concurrency int
	logger      *log.Logger
}

// TransactionFetcherOptions configures a TransactionFetcher.
type TransactionFetcherOptions struct {
	RPC         solana.RPCClient
	BatchSize   int // optional; defaults to DefaultBatchSize
	Concurrency int // optional; defaults to DefaultConcurrency
	Logger      *log.Logger
}

// NewTransactionFetcher creates a TransactionFetcher.
func NewTransactionFetcher(opts TransactionFetcherOptions) *TransactionFetcher {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &TransactionFetcher{
		rpc:         opts.RPC,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Result is the outcome of a bulk transaction fetch.
type Result struct {
	// Transactions holds the resolved transactions in signature order.
	Transactions []*solana.Transaction
	// Skipped counts signatures whose transactions could not be resolved
	// (pruned or unavailable). A skip is not a failure.
	Skipped int
}

// FetchAll resolves every signature. Unresolvable records are skipped and
// counted; transport errors (after the client's internal retries) abort the
// whole fetch, since a partial historical log would be silently wrong.
func (f *TransactionFetcher) FetchAll(ctx context.Context, sigs []solana.SignatureInfo) (*Result, error) {
	if len(sigs) == 0 {
		return &Result{}, nil
	}

	// Slot-indexed result slice keeps signature order independent of
	// which batch finishes first.
	txs := make([]*solana.Transaction, len(sigs))
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for start := 0; start < len(sigs); start += f.batchSize {
		end := start + f.batchSize
		if end > len(sigs) {
			end = len(sigs)
		}
		start, end := start, end

		g.Go(func() error {
			for i := start; i < end; i++ {
				tx, err := f.rpc.GetTransaction(gctx, sigs[i].Signature)
				if err != nil {
					return fmt.Errorf("fetch transaction %s: %w", sigs[i].Signature, err)
				}
				if tx == nil {
					skipped.Add(1)
					continue
				}
				txs[i] = tx
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	resolved := make([]*solana.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx != nil {
			resolved = append(resolved, tx)
		}
	}

	if n := skipped.Load(); n > 0 {
		f.logger.Printf("[backfill] %d of %d signatures unresolvable, skipped", n, len(sigs))
	}

	return &Result{
		Transactions: resolved,
		Skipped:      int(skipped.Load()),
	}, nil
}
