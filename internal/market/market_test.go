package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"curvewatch/internal/curve"
	"curvewatch/internal/domain"
	"curvewatch/internal/solana"
	"curvewatch/internal/solana/stub"
)

const (
	testMint    = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	testReserve = "5KKsLVU6TcbVDK4BS6K1DGDxnh4Q9xjYJ8XaDCG5t8ht"
)

// Fixed clock: shortly after the test market's trading activity.
var testNow = time.Unix(1_700_000_600, 0)

// candleUpdate captures one OnCandleUpdate call.
type candleUpdate struct {
	timeframe int64
	candle    domain.Candle
}

// recorder collects subscriber callbacks and signals them on channels so
// tests can wait for the actor goroutine.
type recorder struct {
	mu          sync.Mutex
	histSwaps   int
	histCandles map[int64][]*domain.Candle
	swaps       []*domain.Swap
	updates     []candleUpdate
	errs        []error

	histCh chan struct{}
	swapCh chan *domain.Swap
	errCh  chan error
}

func newRecorder() *recorder {
	return &recorder{
		histCh: make(chan struct{}, 8),
		swapCh: make(chan *domain.Swap, 64),
		errCh:  make(chan error, 8),
	}
}

func (r *recorder) OnHistoricalComplete(_ string, swapCount int, candles map[int64][]*domain.Candle) {
	r.mu.Lock()
	r.histSwaps = swapCount
	r.histCandles = candles
	r.mu.Unlock()
	r.histCh <- struct{}{}
}

func (r *recorder) OnSwap(_ string, swap *domain.Swap) {
	r.mu.Lock()
	r.swaps = append(r.swaps, swap)
	r.mu.Unlock()
	r.swapCh <- swap
}

func (r *recorder) OnCandleUpdate(_ string, timeframe int64, candle *domain.Candle) {
	r.mu.Lock()
	r.updates = append(r.updates, candleUpdate{timeframe, *candle})
	r.mu.Unlock()
}

func (r *recorder) OnError(_ string, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.errCh <- err
}

func waitHist(t *testing.T, r *recorder) {
	t.Helper()
	select {
	case <-r.histCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnHistoricalComplete")
	}
}

func waitSwap(t *testing.T, r *recorder) *domain.Swap {
	t.Helper()
	select {
	case sw := <-r.swapCh:
		return sw
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnSwap")
		return nil
	}
}

func waitErr(t *testing.T, r *recorder) error {
	t.Helper()
	select {
	case err := <-r.errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnError")
		return nil
	}
}

func waitState(t *testing.T, m *Market, want domain.MarketState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("market state = %s, want %s", m.State(), want)
}

// tradeTx builds a trader transaction against the test market. The trader's
// token balance moves pre -> post; the reserve's lamports move by solDelta
// (positive on a buy). Account layout: 0 = trader, 1 = reserve, 2 = trader
// token account.
func tradeTx(sig string, slot, blockTime int64, tokenPre, tokenPost float64, solDelta int64) *solana.Transaction {
	reservePre := uint64(5_000_000_000)
	reservePost := uint64(int64(reservePre) + solDelta)

	var pre []solana.TokenBalance
	if tokenPre > 0 {
		pre = []solana.TokenBalance{{AccountIndex: 2, Mint: testMint, Owner: "trader", UIAmount: tokenPre}}
	}

	return &solana.Transaction{
		Signature: sig,
		Slot:      slot,
		BlockTime: blockTime,
		Message: &solana.TransactionMessage{
			AccountKeys: []string{"trader", testReserve, "tokacct-trader"},
		},
		Meta: &solana.TransactionMeta{
			Fee:               5000,
			PreBalances:       []uint64{10_000_000_000, reservePre, 2_039_280},
			PostBalances:      []uint64{10_000_000_000 - uint64(5000), reservePost, 2_039_280},
			PreTokenBalances:  pre,
			PostTokenBalances: []solana.TokenBalance{{AccountIndex: 2, Mint: testMint, Owner: "trader", UIAmount: tokenPost}},
		},
	}
}

func bt(v int64) *int64 { return &v }

// seedHistory loads three historical trades onto the stub node:
// the mint buy, a same-slot bundler buy, and a slot+2 sniper buy.
func seedHistory(rpc *stub.RPCClient) {
	mintTx := tradeTx("sig-1", 100, 1_700_000_000, 0, 1_000_000, 1_000_000_000)
	bundlerTx := tradeTx("sig-2", 100, 1_700_000_000, 0, 50_000, 500_000_000)
	// The bundler is a second trader; give it pre-state so only sig-1
	// detects as the mint.
	bundlerTx.Meta.PreTokenBalances = []solana.TokenBalance{
		{AccountIndex: 2, Mint: testMint, Owner: "trader", UIAmount: 1},
	}
	bundlerTx.Meta.PostTokenBalances[0].UIAmount = 50_001
	sniperTx := tradeTx("sig-3", 102, 1_700_000_060, 0, 20_000, 200_000_000)
	sniperTx.Meta.PreTokenBalances = []solana.TokenBalance{
		{AccountIndex: 2, Mint: testMint, Owner: "trader", UIAmount: 1},
	}
	sniperTx.Meta.PostTokenBalances[0].UIAmount = 20_001

	rpc.AddTransaction(mintTx)
	rpc.AddTransaction(bundlerTx)
	rpc.AddTransaction(sniperTx)

	// Newest first, as the node returns them.
	rpc.AddSignatures(testReserve, []solana.SignatureInfo{
		{Signature: "sig-3", Slot: 102, BlockTime: bt(1_700_000_060)},
		{Signature: "sig-2", Slot: 100, BlockTime: bt(1_700_000_000)},
		{Signature: "sig-1", Slot: 100, BlockTime: bt(1_700_000_000)},
	})
}

func newTestEngine(rpc *stub.RPCClient, ws solana.WSClient, rec *recorder) *Engine {
	cache := curve.NewCache()
	cache.Put(testMint, testReserve)

	return NewEngine(Options{
		RPC:     rpc,
		WS:      ws,
		Locator: curve.NewLocator(curve.LocatorOptions{RPC: rpc, Cache: cache}),
		Config: Config{
			Lookback:   time.Hour,
			Timeframes: []int64{60, 300},
		},
		Subscribers: []Subscriber{rec},
		Now:         func() time.Time { return testNow },
	})
}

func TestEngineBackfillToLive(t *testing.T) {
	rpc := stub.NewRPCClient()
	seedHistory(rpc)
	ws := stub.NewWSClient()
	rec := newRecorder()

	e := newTestEngine(rpc, ws, rec)
	defer e.StopAll()

	m, err := e.Track(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}

	waitHist(t, rec)
	waitState(t, m, domain.StateLive)

	if rec.histSwaps != 3 {
		t.Errorf("historical swap count = %d, want 3", rec.histSwaps)
	}

	swaps := m.Swaps()
	if len(swaps) != 3 {
		t.Fatalf("Swaps() = %d, want 3", len(swaps))
	}
	// Sorted order: mint first within the shared slot.
	if swaps[0].TxSignature != "sig-1" {
		t.Errorf("first sorted swap = %s, want sig-1 (mint)", swaps[0].TxSignature)
	}
	for _, tag := range []string{domain.TagMint, domain.TagDev, "BLOCK_0"} {
		if !swaps[0].Tags.Has(tag) {
			t.Errorf("mint swap missing tag %s: %v", tag, swaps[0].Tags.List())
		}
	}
	if !swaps[1].Tags.Has(domain.TagBundler) {
		t.Errorf("same-slot swap missing BUNDLER: %v", swaps[1].Tags.List())
	}
	if !swaps[2].Tags.Has(domain.TagEarlySniper) || !swaps[2].Tags.Has("BLOCK_2") {
		t.Errorf("slot+2 swap tags = %v, want EARLY_SNIPER and BLOCK_2", swaps[2].Tags.List())
	}

	// Two 60s buckets: trades at t=...000 and t=...060 are adjacent.
	cs := m.Candles(60)
	if len(cs) != 2 {
		t.Fatalf("Candles(60) = %d, want 2", len(cs))
	}
	if cs[1].Open != cs[0].Close {
		t.Errorf("candle continuity broken: open %v, previous close %v", cs[1].Open, cs[0].Close)
	}

	if m.Candles(900) != nil {
		t.Error("Candles() for an untracked timeframe should be nil")
	}
}

func TestEngineLiveSwap(t *testing.T) {
	rpc := stub.NewRPCClient()
	seedHistory(rpc)
	ws := stub.NewWSClient()
	rec := newRecorder()

	e := newTestEngine(rpc, ws, rec)
	defer e.StopAll()

	m, err := e.Track(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}
	waitState(t, m, domain.StateLive)

	// Drain the three historical OnSwap events.
	for i := 0; i < 3; i++ {
		waitSwap(t, rec)
	}

	// A later sell arrives over the subscription.
	sellTx := tradeTx("sig-4", 150, 1_700_000_120, 20_001, 1, -150_000_000)
	rpc.AddTransaction(sellTx)
	ws.Emit(solana.LogNotification{Signature: "sig-4", Slot: 150})

	sw := waitSwap(t, rec)
	if sw.TxSignature != "sig-4" {
		t.Fatalf("live swap = %s, want sig-4", sw.TxSignature)
	}
	if sw.Direction != domain.Sell {
		t.Errorf("Direction = %s, want sell", sw.Direction)
	}
	// Slot 150 is far past the early-sniper window.
	for _, tag := range []string{domain.TagMint, domain.TagBundler, domain.TagEarlySniper} {
		if sw.Tags.Has(tag) {
			t.Errorf("live swap carries positional tag %s", tag)
		}
	}

	if got := len(m.Swaps()); got != 4 {
		t.Errorf("swap log = %d entries, want 4", got)
	}

	// The live trade extended the candle state.
	cs := m.Candles(60)
	last := cs[len(cs)-1]
	if last.Close != sw.Price {
		t.Errorf("open candle close = %v, want live price %v", last.Close, sw.Price)
	}
}

func TestEngineLiveDedup(t *testing.T) {
	rpc := stub.NewRPCClient()
	seedHistory(rpc)
	ws := stub.NewWSClient()
	rec := newRecorder()

	e := newTestEngine(rpc, ws, rec)
	defer e.StopAll()

	m, err := e.Track(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}
	waitState(t, m, domain.StateLive)
	for i := 0; i < 3; i++ {
		waitSwap(t, rec)
	}

	// A backfilled signature replayed over the subscription must be dropped;
	// the fresh one right after it must come through. Ordering is guaranteed
	// because one actor goroutine consumes both.
	ws.Emit(solana.LogNotification{Signature: "sig-3", Slot: 102})
	freshTx := tradeTx("sig-5", 160, 1_700_000_180, 0, 500, 50_000_000)
	rpc.AddTransaction(freshTx)
	ws.Emit(solana.LogNotification{Signature: "sig-5", Slot: 160})

	sw := waitSwap(t, rec)
	if sw.TxSignature != "sig-5" {
		t.Errorf("got swap %s, want sig-5 (sig-3 should have been deduped)", sw.TxSignature)
	}
	if got := len(m.Swaps()); got != 4 {
		t.Errorf("swap log = %d entries, want 4", got)
	}
}

func TestEngineLiveSkipsFailedAndUnparseable(t *testing.T) {
	rpc := stub.NewRPCClient()
	seedHistory(rpc)
	ws := stub.NewWSClient()
	rec := newRecorder()

	e := newTestEngine(rpc, ws, rec)
	defer e.StopAll()

	m, err := e.Track(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}
	waitState(t, m, domain.StateLive)
	for i := 0; i < 3; i++ {
		waitSwap(t, rec)
	}

	// Failed transaction notification, an unfetchable signature, and a
	// fetchable transaction that is not a swap: all skipped, none fatal.
	ws.Emit(solana.LogNotification{Signature: "sig-failed", Slot: 170, Err: map[string]interface{}{"InstructionError": []interface{}{}}})
	rpc.Fail["sig-gone"] = errors.New("rpc call failed after 4 attempts")
	ws.Emit(solana.LogNotification{Signature: "sig-gone", Slot: 171})
	rpc.AddTransaction(&solana.Transaction{
		Signature: "sig-noise",
		Slot:      172,
		BlockTime: 1_700_000_200,
		Meta:      &solana.TransactionMeta{PreBalances: []uint64{1}, PostBalances: []uint64{1}},
	})
	ws.Emit(solana.LogNotification{Signature: "sig-noise", Slot: 172})

	freshTx := tradeTx("sig-6", 180, 1_700_000_240, 0, 100, 10_000_000)
	rpc.AddTransaction(freshTx)
	ws.Emit(solana.LogNotification{Signature: "sig-6", Slot: 180})

	sw := waitSwap(t, rec)
	if sw.TxSignature != "sig-6" {
		t.Errorf("got swap %s, want sig-6", sw.TxSignature)
	}
	if m.State() != domain.StateLive {
		t.Errorf("market state = %s, want LIVE after per-event failures", m.State())
	}
}

func TestEngineBackfillFatal(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Fail[testReserve] = errors.New("rpc call failed after 4 attempts")
	rec := newRecorder()

	e := newTestEngine(rpc, stub.NewWSClient(), rec)
	defer e.StopAll()

	m, err := e.Track(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}

	if waitErr(t, rec) == nil {
		t.Fatal("expected a fatal backfill error")
	}
	waitState(t, m, domain.StateStopped)
}

func TestEngineTrackUnresolvableMint(t *testing.T) {
	rpc := stub.NewRPCClient()
	rec := newRecorder()

	// Empty cache and a node that knows nothing about the mint.
	e := NewEngine(Options{
		RPC:         rpc,
		Config:      Config{Lookback: time.Hour},
		Subscribers: []Subscriber{rec},
		Now:         func() time.Time { return testNow },
	})

	_, err := e.Track(context.Background(), testMint)
	if !errors.Is(err, curve.ErrCurveNotFound) {
		t.Errorf("Track() error = %v, want ErrCurveNotFound", err)
	}
	if e.Market(testMint) != nil {
		t.Error("unresolvable mint should not be tracked")
	}
}

func TestEngineTrackDuplicate(t *testing.T) {
	rpc := stub.NewRPCClient()
	seedHistory(rpc)
	rec := newRecorder()

	e := newTestEngine(rpc, stub.NewWSClient(), rec)
	defer e.StopAll()

	if _, err := e.Track(context.Background(), testMint); err != nil {
		t.Fatalf("Track() error: %v", err)
	}
	if _, err := e.Track(context.Background(), testMint); !errors.Is(err, ErrAlreadyTracked) {
		t.Errorf("second Track() error = %v, want ErrAlreadyTracked", err)
	}
}

func TestEngineBackfillOnly(t *testing.T) {
	rpc := stub.NewRPCClient()
	seedHistory(rpc)
	rec := newRecorder()

	// No WS client: the market still goes live and forward-fills candles.
	e := newTestEngine(rpc, nil, rec)
	defer e.StopAll()

	m, err := e.Track(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}
	waitHist(t, rec)
	waitState(t, m, domain.StateLive)

	if got := len(m.Swaps()); got != 3 {
		t.Errorf("swap log = %d entries, want 3", got)
	}
}

func TestEngineStop(t *testing.T) {
	rpc := stub.NewRPCClient()
	seedHistory(rpc)
	rec := newRecorder()

	e := newTestEngine(rpc, stub.NewWSClient(), rec)

	m, err := e.Track(context.Background(), testMint)
	if err != nil {
		t.Fatalf("Track() error: %v", err)
	}
	waitState(t, m, domain.StateLive)

	e.Stop(testMint)
	waitState(t, m, domain.StateStopped)
	if e.Market(testMint) != nil {
		t.Error("stopped market still tracked")
	}

	// Stopping an unknown mint is a no-op.
	e.Stop("unknown")
}

func TestFillTickFor(t *testing.T) {
	cases := []struct {
		timeframes []int64
		want       time.Duration
	}{
		{[]int64{60, 300}, 15 * time.Second},
		{[]int64{10}, 5 * time.Second},
		{[]int64{1}, time.Second},
		{[]int64{300, 60, 900}, 15 * time.Second},
	}
	for _, c := range cases {
		if got := fillTickFor(c.timeframes); got != c.want {
			t.Errorf("fillTickFor(%v) = %v, want %v", c.timeframes, got, c.want)
		}
	}
}

func TestFillCandlesAdvancesOpenBucket(t *testing.T) {
	rec := newRecorder()
	clock := time.Unix(200, 0)

	m := newMarket(marketOptions{
		Info:        domain.TokenMarket{Mint: testMint, ReserveAccount: testReserve},
		Timeframes:  []int64{60},
		Subscribers: []Subscriber{rec},
		Now:         func() time.Time { return clock },
	})

	m.series[60].Apply(&domain.Swap{Timestamp: 10, Price: 1.5, BaseAmount: 1, TokenAmount: 1})
	m.fillCandles()

	// Wall clock at t=200 means buckets 60, 120 and 180 get flat candles.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.updates) != 3 {
		t.Fatalf("OnCandleUpdate fired %d times, want 3", len(rec.updates))
	}
	for _, u := range rec.updates {
		if u.candle.Open != 1.5 || u.candle.Close != 1.5 || u.candle.Volume != 0 {
			t.Errorf("filled candle = %+v, want flat at 1.5", u.candle)
		}
	}
}
