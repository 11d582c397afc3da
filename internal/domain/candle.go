package domain

// Default candle timeframes in seconds.
const (
	Timeframe1m  int64 = 60
	Timeframe5m  int64 = 300
	Timeframe15m int64 = 900
	Timeframe1h  int64 = 3600
)

// DefaultTimeframes returns the standard timeframe set, shortest first.
func DefaultTimeframes() []int64 {
	return []int64{Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h}
}

// Candle is one OHLCV bucket of a fixed timeframe.
// A gap-filled candle has Open == High == Low == Close and zero Volume.
type Candle struct {
	BucketStart int64   // bucket start, Unix seconds, aligned to the timeframe
	Open        float64 // price of the first swap in the bucket (or carried close)
	High        float64
	Low         float64
	Close       float64 // price of the last swap in sorted order
	Volume      float64 // sum of base-currency amounts
}

// Clone returns a copy of the candle.
func (c *Candle) Clone() *Candle {
	cp := *c
	return &cp
}

// Tick is a single per-swap price observation kept for offline analysis.
// Ticks are raw trades, not candles.
type Tick struct {
	Mint        string
	TxSignature string
	Slot        int64
	Timestamp   int64 // Unix seconds
	Side        string
	Price       float64
	BaseAmount  float64
	TokenAmount float64
}
