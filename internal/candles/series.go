// Package candles builds gap-free OHLCV series from ordered swap logs.
//
// A Series is a state machine folded over swaps: the historical build and
// the live feed apply the exact same transitions, so batch and incremental
// aggregation agree by construction.
package candles

import (
	"curvewatch/internal/domain"
)

// Series is one timeframe's candle sequence for a market. Buckets are
// aligned to the timeframe and contiguous: every bucket between the first
// and the last candle exists, synthesized flat when no trade occurred.
type Series struct {
	timeframe int64 // seconds
	candles   []*domain.Candle
}

// NewSeries creates an empty series for a timeframe in seconds.
func NewSeries(timeframe int64) *Series {
	return &Series{timeframe: timeframe}
}

// Build folds a sorted swap log into a fresh series.
func Build(swaps []*domain.Swap, timeframe int64) *Series {
	s := NewSeries(timeframe)
	for _, sw := range swaps {
		s.Apply(sw)
	}
	return s
}

// Timeframe returns the series timeframe in seconds.
func (s *Series) Timeframe() int64 {
	return s.timeframe
}

// Len returns the number of candles.
func (s *Series) Len() int {
	return len(s.candles)
}

// Last returns the current (open) candle, or nil before the first swap.
func (s *Series) Last() *domain.Candle {
	if len(s.candles) == 0 {
		return nil
	}
	return s.candles[len(s.candles)-1]
}

// Candles returns the full candle sequence. Callers must treat earlier
// candles as immutable; only the last one can still mutate.
func (s *Series) Candles() []*domain.Candle {
	return s.candles
}

// Snapshot returns an independent copy of the candle sequence.
func (s *Series) Snapshot() []*domain.Candle {
	out := make([]*domain.Candle, len(s.candles))
	for i, c := range s.candles {
		out[i] = c.Clone()
	}
	return out
}

// bucketStart aligns a timestamp to its bucket (inclusive lower bound).
func (s *Series) bucketStart(ts int64) int64 {
	return ts / s.timeframe * s.timeframe
}

// Apply folds one swap into the series and returns every candle it created
// or mutated, gap-filled candles included, in bucket order.
func (s *Series) Apply(sw *domain.Swap) []*domain.Candle {
	bucket := s.bucketStart(sw.Timestamp)

	// First swap opens the series.
	if len(s.candles) == 0 {
		c := &domain.Candle{
			BucketStart: bucket,
			Open:        sw.Price,
			High:        sw.Price,
			Low:         sw.Price,
			Close:       sw.Price,
			Volume:      sw.Volume(),
		}
		s.candles = append(s.candles, c)
		return []*domain.Candle{c}
	}

	last := s.Last()

	switch {
	case bucket == last.BucketStart:
		s.mergeIntoLast(sw, true)
		return []*domain.Candle{last}

	case bucket > last.BucketStart:
		// Forward-fill the gap, then open the new bucket with the
		// carry-forward open rule.
		changed := s.fillThrough(bucket - s.timeframe)
		prevClose := s.Last().Close
		c := &domain.Candle{
			BucketStart: bucket,
			Open:        prevClose,
			High:        maxf(prevClose, sw.Price),
			Low:         minf(prevClose, sw.Price),
			Close:       sw.Price,
			Volume:      sw.Volume(),
		}
		s.candles = append(s.candles, c)
		return append(changed, c)

	default:
		// Ordering is enforced upstream; a straggler folds into the open
		// candle without moving its close.
		s.mergeIntoLast(sw, false)
		return []*domain.Candle{last}
	}
}

// mergeIntoLast extends the open candle with a swap.
func (s *Series) mergeIntoLast(sw *domain.Swap, setClose bool) {
	last := s.Last()
	last.High = maxf(last.High, sw.Price)
	last.Low = minf(last.Low, sw.Price)
	last.Volume += sw.Volume()
	if setClose {
		last.Close = sw.Price
	}
}

// FillTo forward-fills flat candles for every empty bucket up to and
// including the bucket containing ts. Returns the candles it created.
// A series with no trades yet stays empty: there is no close to carry.
func (s *Series) FillTo(ts int64) []*domain.Candle {
	if len(s.candles) == 0 {
		return nil
	}
	return s.fillThrough(s.bucketStart(ts))
}

// fillThrough appends flat candles through the target bucket inclusive.
func (s *Series) fillThrough(target int64) []*domain.Candle {
	var created []*domain.Candle
	for last := s.Last(); last.BucketStart < target; last = s.Last() {
		c := &domain.Candle{
			BucketStart: last.BucketStart + s.timeframe,
			Open:        last.Close,
			High:        last.Close,
			Low:         last.Close,
			Close:       last.Close,
		}
		s.candles = append(s.candles, c)
		created = append(created, c)
	}
	return created
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
