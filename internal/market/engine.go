package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"curvewatch/internal/backfill"
	"curvewatch/internal/curve"
	"curvewatch/internal/domain"
	"curvewatch/internal/observability"
	"curvewatch/internal/solana"
	"curvewatch/internal/storage"
	"curvewatch/internal/trade"
)

// DefaultLookback is the historical window backfilled for a new market.
const DefaultLookback = 24 * time.Hour

// ErrAlreadyTracked is returned by Track for a mint that is being tracked.
var ErrAlreadyTracked = errors.New("market already tracked")

// Config tunes the engine.
type Config struct {
	// Lookback is the backfill window. Defaults to DefaultLookback.
	Lookback time.Duration

	// Timeframes are the candle timeframes in seconds.
	// Defaults to domain.DefaultTimeframes.
	Timeframes []int64

	// LargeTradeThreshold is the base-currency size above which trades are
	// tagged LARGE_BUY or LARGE_SELL. Zero disables the tag.
	LargeTradeThreshold float64

	// KeepBalanced keeps zero-net-direction transactions as buy swaps
	// instead of discarding them.
	KeepBalanced bool

	// Backfill paging and concurrency. Zero values take the backfill
	// package defaults.
	PageSize    int
	BatchSize   int
	Concurrency int
}

// Options wires the engine's dependencies.
type Options struct {
	RPC     solana.RPCClient
	WS      solana.WSClient // optional; nil runs every market backfill-only
	Locator *curve.Locator  // optional; built from RPC when nil

	Config      Config
	Subscribers []Subscriber

	// Optional archives.
	MarketStore storage.MarketStore
	SwapStore   storage.SwapStore
	TickStore   storage.TickStore

	Logger *log.Logger

	// Now is a test hook for the clock.
	Now func() time.Time
}

// Engine tracks a set of markets, one actor each. Track is the only entry
// point: it resolves the mint's reserve account and spawns the actor.
type Engine struct {
	opts       Options
	sigs       *backfill.SignatureFetcher
	txs        *backfill.TransactionFetcher
	parser     *trade.Parser
	classifier *trade.Classifier
	locator    *curve.Locator
	logger     *log.Logger
	now        func() time.Time

	mu      sync.Mutex
	markets map[string]*trackedMarket
}

type trackedMarket struct {
	market *Market
	cancel context.CancelFunc
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Config.Lookback <= 0 {
		opts.Config.Lookback = DefaultLookback
	}
	if len(opts.Config.Timeframes) == 0 {
		opts.Config.Timeframes = domain.DefaultTimeframes()
	}
	locator := opts.Locator
	if locator == nil {
		locator = curve.NewLocator(curve.LocatorOptions{RPC: opts.RPC, Logger: logger})
	}

	return &Engine{
		opts: opts,
		sigs: backfill.NewSignatureFetcher(backfill.SignatureFetcherOptions{
			RPC:      opts.RPC,
			PageSize: opts.Config.PageSize,
			Logger:   logger,
			Now:      now,
		}),
		txs: backfill.NewTransactionFetcher(backfill.TransactionFetcherOptions{
			RPC:         opts.RPC,
			BatchSize:   opts.Config.BatchSize,
			Concurrency: opts.Config.Concurrency,
			Logger:      logger,
		}),
		parser:     &trade.Parser{KeepBalanced: opts.Config.KeepBalanced},
		classifier: trade.NewClassifier(opts.Config.LargeTradeThreshold),
		locator:    locator,
		logger:     logger,
		now:        now,
		markets:    make(map[string]*trackedMarket),
	}
}

// Track resolves the mint's reserve account and starts tracking the market.
// Resolution failure is fatal and returned; everything after the spawn is
// reported through the subscribers.
func (e *Engine) Track(ctx context.Context, mint string) (*Market, error) {
	e.mu.Lock()
	if _, ok := e.markets[mint]; ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("mint %s: %w", mint, ErrAlreadyTracked)
	}
	e.mu.Unlock()

	reserve, err := e.locator.Resolve(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("resolve reserve for %s: %w", mint, err)
	}

	info := domain.TokenMarket{
		Mint:           mint,
		ReserveAccount: reserve,
		DiscoveredAt:   e.now().Unix(),
	}

	if e.opts.MarketStore != nil {
		err := e.opts.MarketStore.Insert(ctx, &info)
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			e.logger.Printf("[engine] archive market %s: %v", mint, err)
		}
	}

	m := newMarket(marketOptions{
		Info:        info,
		Timeframes:  e.opts.Config.Timeframes,
		Lookback:    e.opts.Config.Lookback,
		Parser:      e.parser,
		Classifier:  e.classifier,
		Sigs:        e.sigs,
		Txs:         e.txs,
		RPC:         e.opts.RPC,
		WS:          e.opts.WS,
		Subscribers: e.opts.Subscribers,
		SwapStore:   e.opts.SwapStore,
		TickStore:   e.opts.TickStore,
		Logger:      e.logger,
		Now:         e.now,
	})

	mctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	if _, ok := e.markets[mint]; ok {
		e.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("mint %s: %w", mint, ErrAlreadyTracked)
	}
	e.markets[mint] = &trackedMarket{market: m, cancel: cancel}
	e.mu.Unlock()

	observability.DefaultMetrics.MarketsTracked.Inc()
	e.logger.Printf("[engine] tracking %s (reserve %s)", mint, reserve)

	go m.run(mctx)
	return m, nil
}

// Market returns a tracked market, or nil.
func (e *Engine) Market(mint string) *Market {
	e.mu.Lock()
	defer e.mu.Unlock()
	tm, ok := e.markets[mint]
	if !ok {
		return nil
	}
	return tm.market
}

// Markets returns all tracked markets.
func (e *Engine) Markets() []*Market {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Market, 0, len(e.markets))
	for _, tm := range e.markets {
		out = append(out, tm.market)
	}
	return out
}

// Stop cancels one market's actor and waits for it to exit.
func (e *Engine) Stop(mint string) {
	e.mu.Lock()
	tm, ok := e.markets[mint]
	if ok {
		delete(e.markets, mint)
	}
	e.mu.Unlock()

	if !ok {
		return
	}
	tm.cancel()
	<-tm.market.Done()
	observability.DefaultMetrics.MarketsTracked.Dec()
	e.logger.Printf("[engine] stopped %s", mint)
}

// StopAll shuts every market down and waits for the actors to exit.
func (e *Engine) StopAll() {
	e.mu.Lock()
	tracked := make([]*trackedMarket, 0, len(e.markets))
	for _, tm := range e.markets {
		tracked = append(tracked, tm)
	}
	e.markets = make(map[string]*trackedMarket)
	e.mu.Unlock()

	for _, tm := range tracked {
		tm.cancel()
	}
	for _, tm := range tracked {
		<-tm.market.Done()
		observability.DefaultMetrics.MarketsTracked.Dec()
	}
}
