package market

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"curvewatch/internal/backfill"
	"curvewatch/internal/candles"
	"curvewatch/internal/domain"
	"curvewatch/internal/observability"
	"curvewatch/internal/solana"
	"curvewatch/internal/storage"
	"curvewatch/internal/trade"
)

// Fill tick bounds. The tick drives forward-filling of the open candle
// between trades; it is derived from the shortest timeframe.
const (
	minFillTick = time.Second
	maxFillTick = 15 * time.Second
)

// fillTickFor derives the forward-fill interval from the shortest
// timeframe: half of it, clamped to the tick bounds.
func fillTickFor(timeframes []int64) time.Duration {
	shortest := timeframes[0]
	for _, tf := range timeframes[1:] {
		if tf < shortest {
			shortest = tf
		}
	}
	tick := time.Duration(shortest) * time.Second / 2
	if tick < minFillTick {
		tick = minFillTick
	}
	if tick > maxFillTick {
		tick = maxFillTick
	}
	return tick
}

// Market is the actor owning one tracked market: its swap log, candle
// series and lifecycle. All mutation happens on the actor goroutine; the
// exported accessors take read locks and return copies.
type Market struct {
	info       domain.TokenMarket
	timeframes []int64
	lookback   time.Duration
	fillTick   time.Duration

	parser     *trade.Parser
	classifier *trade.Classifier
	sigs       *backfill.SignatureFetcher
	txs        *backfill.TransactionFetcher
	rpc        solana.RPCClient
	ws         solana.WSClient // nil runs backfill-only

	subs      []Subscriber
	swapStore storage.SwapStore
	tickStore storage.TickStore
	logger    *log.Logger
	now       func() time.Time

	state atomic.Int32

	mu        sync.RWMutex
	swaps     []*domain.Swap
	seen      map[string]struct{}
	series    map[int64]*candles.Series
	firstSlot int64
	hasSwaps  bool

	done chan struct{}
}

// marketOptions bundles the dependencies a Market needs. The engine fills
// it in from its own configuration.
type marketOptions struct {
	Info       domain.TokenMarket
	Timeframes []int64
	Lookback   time.Duration

	Parser     *trade.Parser
	Classifier *trade.Classifier
	Sigs       *backfill.SignatureFetcher
	Txs        *backfill.TransactionFetcher
	RPC        solana.RPCClient
	WS         solana.WSClient

	Subscribers []Subscriber
	SwapStore   storage.SwapStore
	TickStore   storage.TickStore
	Logger      *log.Logger
	Now         func() time.Time
}

func newMarket(opts marketOptions) *Market {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	timeframes := opts.Timeframes
	if len(timeframes) == 0 {
		timeframes = domain.DefaultTimeframes()
	}

	m := &Market{
		info:       opts.Info,
		timeframes: timeframes,
		lookback:   opts.Lookback,
		fillTick:   fillTickFor(timeframes),
		parser:     opts.Parser,
		classifier: opts.Classifier,
		sigs:       opts.Sigs,
		txs:        opts.Txs,
		rpc:        opts.RPC,
		ws:         opts.WS,
		subs:       opts.Subscribers,
		swapStore:  opts.SwapStore,
		tickStore:  opts.TickStore,
		logger:     logger,
		now:        now,
		seen:       make(map[string]struct{}),
		series:     make(map[int64]*candles.Series),
		done:       make(chan struct{}),
	}
	for _, tf := range timeframes {
		m.series[tf] = candles.NewSeries(tf)
	}
	m.state.Store(int32(domain.StateBackfilling))
	return m
}

// Info returns the market's identity.
func (m *Market) Info() domain.TokenMarket {
	return m.info
}

// State returns the market's current lifecycle state.
func (m *Market) State() domain.MarketState {
	return domain.MarketState(m.state.Load())
}

// Done is closed when the market's actor goroutine exits.
func (m *Market) Done() <-chan struct{} {
	return m.done
}

// Swaps returns a copy of the classified swap log in sorted order.
func (m *Market) Swaps() []*domain.Swap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Swap, len(m.swaps))
	copy(out, m.swaps)
	return out
}

// Candles returns a snapshot of the candle series for a timeframe, or nil
// if the timeframe is not tracked.
func (m *Market) Candles(timeframe int64) []*domain.Candle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.series[timeframe]
	if !ok {
		return nil
	}
	return s.Snapshot()
}

// run is the actor loop: backfill, then live streaming. It never returns
// until the context is cancelled or a fatal error stops the market.
func (m *Market) run(ctx context.Context) {
	defer close(m.done)
	defer m.state.Store(int32(domain.StateStopped))

	if err := m.backfill(ctx); err != nil {
		if ctx.Err() == nil {
			m.fail(fmt.Errorf("backfill %s: %w", m.info.Mint, err))
		}
		return
	}

	var notifications <-chan solana.LogNotification
	if m.ws != nil {
		ch, err := m.ws.SubscribeLogs(ctx, solana.LogsFilter{
			Mentions: []string{m.info.ReserveAccount},
		})
		if err != nil {
			m.fail(fmt.Errorf("subscribe logs %s: %w", m.info.Mint, err))
			return
		}
		notifications = ch
	}

	m.state.Store(int32(domain.StateLive))
	observability.DefaultMetrics.MarketsLive.Inc()
	defer observability.DefaultMetrics.MarketsLive.Dec()
	m.logger.Printf("[market] %s live (reserve %s)", m.info.Mint, m.info.ReserveAccount)

	ticker := time.NewTicker(m.fillTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case notif, ok := <-notifications:
			if !ok {
				// Subscription closed under us: the client was shut down.
				m.logger.Printf("[market] %s subscription closed, stopping", m.info.Mint)
				return
			}
			m.handleNotification(ctx, notif)

		case <-ticker.C:
			m.fillCandles()
		}
	}
}

// backfill builds the historical swap log: signatures within the lookback
// window, transactions, parse, classify, fold into candles.
func (m *Market) backfill(ctx context.Context) error {
	started := m.now()

	sigs, err := m.sigs.FetchSince(ctx, m.info.ReserveAccount, m.lookback)
	if err != nil {
		return err
	}

	result, err := m.txs.FetchAll(ctx, sigs)
	if err != nil {
		return err
	}

	var swaps []*domain.Swap
	for _, tx := range result.Transactions {
		sw := m.parser.Parse(tx, m.info.Mint, m.info.ReserveAccount)
		if sw == nil {
			observability.RecordSwapDiscarded("not_swap")
			continue
		}
		if _, dup := m.seen[sw.TxSignature]; dup {
			continue
		}
		m.seen[sw.TxSignature] = struct{}{}
		swaps = append(swaps, sw)
		observability.RecordSwapParsed("historical")
	}

	firstSlot := m.classifier.Classify(swaps)

	m.mu.Lock()
	m.swaps = swaps
	m.firstSlot = firstSlot
	m.hasSwaps = len(swaps) > 0
	for _, tf := range m.timeframes {
		m.series[tf] = candles.Build(swaps, tf)
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.archiveSwaps(ctx, swaps)

	for _, sw := range swaps {
		m.emitSwap(sw)
	}
	for _, sub := range m.subs {
		sub.OnHistoricalComplete(m.info.Mint, len(swaps), snapshot)
	}

	observability.RecordBackfill(m.now().Sub(started).Seconds(), len(swaps))
	m.logger.Printf("[market] %s backfilled %d swaps from %d transactions (%d skipped)",
		m.info.Mint, len(swaps), len(result.Transactions), result.Skipped)
	return nil
}

// handleNotification processes one live log notification. Failures here
// are per-event: the market logs and keeps going.
func (m *Market) handleNotification(ctx context.Context, notif solana.LogNotification) {
	observability.DefaultMetrics.LiveNotifications.Inc()

	if notif.Err != nil {
		return
	}

	m.mu.RLock()
	_, dup := m.seen[notif.Signature]
	m.mu.RUnlock()
	if dup {
		// Overlap with the backfill window, or a replay after reconnect.
		observability.DefaultMetrics.LiveDuplicates.Inc()
		return
	}

	tx, err := m.rpc.GetTransaction(ctx, notif.Signature)
	if err != nil {
		observability.DefaultMetrics.LiveFetchErrors.Inc()
		m.logger.Printf("[market] %s fetch %s: %v", m.info.Mint, notif.Signature, err)
		return
	}
	if tx == nil {
		return
	}

	sw := m.parser.Parse(tx, m.info.Mint, m.info.ReserveAccount)
	if sw == nil {
		observability.RecordSwapDiscarded("not_swap")
		return
	}
	observability.RecordSwapParsed("live")

	m.mu.Lock()
	isFirst := !m.hasSwaps
	if isFirst {
		m.firstSlot = sw.Slot
		m.hasSwaps = true
	}
	m.classifier.Tag(sw, m.firstSlot, isFirst)
	m.seen[sw.TxSignature] = struct{}{}
	m.swaps = append(m.swaps, sw)

	changed := make(map[int64][]*domain.Candle, len(m.series))
	for tf, s := range m.series {
		changed[tf] = s.Apply(sw)
	}
	m.mu.Unlock()

	m.archiveSwaps(ctx, []*domain.Swap{sw})
	m.emitSwap(sw)
	m.emitCandles(changed)
}

// fillCandles advances every series to the current wall-clock bucket so
// the open candle carries forward between trades.
func (m *Market) fillCandles() {
	ts := m.now().Unix()

	m.mu.Lock()
	changed := make(map[int64][]*domain.Candle, len(m.series))
	for tf, s := range m.series {
		if created := s.FillTo(ts); len(created) > 0 {
			changed[tf] = created
		}
	}
	m.mu.Unlock()

	m.emitCandles(changed)
}

// snapshotLocked copies every series. Callers hold m.mu.
func (m *Market) snapshotLocked() map[int64][]*domain.Candle {
	out := make(map[int64][]*domain.Candle, len(m.series))
	for tf, s := range m.series {
		out[tf] = s.Snapshot()
	}
	return out
}

// archiveSwaps writes swaps and their ticks to the optional stores.
// Archive failures are logged, never fatal: the in-memory log stays
// authoritative.
func (m *Market) archiveSwaps(ctx context.Context, swaps []*domain.Swap) {
	if len(swaps) == 0 {
		return
	}

	if m.swapStore != nil {
		started := m.now()
		err := m.swapStore.InsertBulk(ctx, m.info.Mint, swaps)
		observability.RecordStoreWrite("swaps", "insert_bulk", m.now().Sub(started).Seconds(), err)
		if err != nil {
			m.logger.Printf("[market] %s archive swaps: %v", m.info.Mint, err)
		}
	}

	if m.tickStore != nil {
		ticks := make([]*domain.Tick, len(swaps))
		for i, sw := range swaps {
			ticks[i] = &domain.Tick{
				Mint:        m.info.Mint,
				TxSignature: sw.TxSignature,
				Slot:        sw.Slot,
				Timestamp:   sw.Timestamp,
				Side:        string(sw.Direction),
				Price:       sw.Price,
				BaseAmount:  sw.BaseAmount,
				TokenAmount: sw.TokenAmount,
			}
		}
		started := m.now()
		err := m.tickStore.InsertBulk(ctx, ticks)
		observability.RecordStoreWrite("ticks", "insert_bulk", m.now().Sub(started).Seconds(), err)
		if err != nil {
			m.logger.Printf("[market] %s archive ticks: %v", m.info.Mint, err)
		}
	}
}

func (m *Market) emitSwap(sw *domain.Swap) {
	for _, sub := range m.subs {
		sub.OnSwap(m.info.Mint, sw)
	}
}

func (m *Market) emitCandles(changed map[int64][]*domain.Candle) {
	for _, tf := range m.timeframes {
		cs, ok := changed[tf]
		if !ok {
			continue
		}
		label := strconv.FormatInt(tf, 10)
		for _, c := range cs {
			observability.RecordCandleUpdate(label)
			for _, sub := range m.subs {
				sub.OnCandleUpdate(m.info.Mint, tf, c)
			}
		}
	}
}

// fail reports a fatal error and leaves the market stopped.
func (m *Market) fail(err error) {
	observability.DefaultMetrics.MarketsFailed.Inc()
	m.logger.Printf("[market] %s fatal: %v", m.info.Mint, err)
	for _, sub := range m.subs {
		sub.OnError(m.info.Mint, err)
	}
}
