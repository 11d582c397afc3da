package curve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"curvewatch/internal/solana"
)

// ErrCurveNotFound is returned when no reserve account can be resolved for
// a mint, neither by PDA derivation nor by scanning recent transactions.
var ErrCurveNotFound = errors.New("reserve account not found")

// DefaultScanLimit bounds the fallback transaction scan per mint.
const DefaultScanLimit = 10

// accountProbeLimit bounds getAccountInfo calls during one fallback scan.
const accountProbeLimit = 16

// Cache is an explicit mint-to-reserve cache owned by the engine.
// Resolution results are immutable, so entries never expire.
type Cache struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{m: make(map[string]string)}
}

// Get returns the cached reserve account for a mint.
func (c *Cache) Get(mint string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reserve, ok := c.m[mint]
	return reserve, ok
}

// Put stores a resolved mapping.
func (c *Cache) Put(mint, reserve string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[mint] = reserve
}

// Len returns the number of cached mappings.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Locator resolves a mint to its reserve account. It tries PDA derivation
// first, then falls back to a bounded scan of the mint's recent
// transactions. Every candidate is validated by the structural decoder.
type Locator struct {
	rpc       solana.RPCClient
	cache     *Cache
	scanLimit int
	logger    *log.Logger
}

// LocatorOptions configures a Locator.
type LocatorOptions struct {
	RPC       solana.RPCClient
	Cache     *Cache // optional; a private cache is created when nil
	ScanLimit int    // optional; defaults to DefaultScanLimit
	Logger    *log.Logger
}

// NewLocator creates a Locator.
func NewLocator(opts LocatorOptions) *Locator {
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	scanLimit := opts.ScanLimit
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Locator{
		rpc:       opts.RPC,
		cache:     cache,
		scanLimit: scanLimit,
		logger:    logger,
	}
}

// Cache exposes the locator's cache for inspection.
func (l *Locator) Cache() *Cache {
	return l.cache
}

// Resolve returns the reserve account for a mint.
func (l *Locator) Resolve(ctx context.Context, mint string) (string, error) {
	if reserve, ok := l.cache.Get(mint); ok {
		return reserve, nil
	}

	reserve, err := l.resolveByPDA(ctx, mint)
	if err == nil && reserve != "" {
		l.cache.Put(mint, reserve)
		return reserve, nil
	}
	if err != nil {
		return "", err
	}

	l.logger.Printf("[curve] PDA miss for %s, scanning recent transactions", mint)

	reserve, err = l.resolveByScan(ctx, mint)
	if err != nil {
		return "", err
	}
	if reserve == "" {
		return "", fmt.Errorf("mint %s: %w", mint, ErrCurveNotFound)
	}

	l.cache.Put(mint, reserve)
	return reserve, nil
}

// resolveByPDA derives the canonical reserve address and verifies that the
// account exists and decodes. Returns ("", nil) on a clean miss.
func (l *Locator) resolveByPDA(ctx context.Context, mint string) (string, error) {
	derived, err := DeriveReserveAddress(mint)
	if err != nil {
		return "", fmt.Errorf("derive reserve address: %w", err)
	}

	info, err := l.rpc.GetAccountInfo(ctx, derived)
	if err != nil {
		return "", fmt.Errorf("fetch derived account: %w", err)
	}
	if !DecodeReserveAccount(info).Recognized {
		return "", nil
	}
	return derived, nil
}

// resolveByScan inspects the mint's most recent transactions (bounded by
// scanLimit) and probes candidate accounts until one decodes as a reserve
// account. Token-balance owners are probed first since the curve owns the
// market's token account.
func (l *Locator) resolveByScan(ctx context.Context, mint string) (string, error) {
	sigs, err := l.rpc.GetSignaturesForAddress(ctx, mint, &solana.SignaturesOpts{Limit: l.scanLimit})
	if err != nil {
		return "", fmt.Errorf("fetch signatures for mint: %w", err)
	}

	var candidates []string
	seen := map[string]struct{}{mint: {}, ProgramID: {}}
	add := func(key string) {
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		candidates = append(candidates, key)
	}

	for _, sig := range sigs {
		if sig.Err != nil {
			continue
		}

		tx, err := l.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil || tx == nil {
			continue
		}

		if tx.Meta != nil {
			for _, tb := range tx.Meta.PostTokenBalances {
				if tb.Mint == mint {
					add(tb.Owner)
				}
			}
		}
		if tx.Message != nil {
			for _, key := range tx.Message.AccountKeys {
				add(key)
			}
		}
	}

	probes := 0
	for _, key := range candidates {
		if probes >= accountProbeLimit {
			break
		}
		probes++

		info, err := l.rpc.GetAccountInfo(ctx, key)
		if err != nil {
			return "", fmt.Errorf("probe candidate account: %w", err)
		}
		if DecodeReserveAccount(info).Recognized {
			return key, nil
		}
	}

	return "", nil
}
