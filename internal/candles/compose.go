package candles

import (
	"fmt"

	"curvewatch/internal/domain"
)

// Compose aggregates a finer series into a coarser timeframe using standard
// OHLC composition: first open, last close, max high, min low, summed
// volume. dstTimeframe must be a multiple of srcTimeframe.
//
// Composing gap-filled input is equivalent to building the coarse series
// from the raw swap log directly.
func Compose(src []*domain.Candle, srcTimeframe, dstTimeframe int64) ([]*domain.Candle, error) {
	if srcTimeframe <= 0 || dstTimeframe <= 0 || dstTimeframe%srcTimeframe != 0 {
		return nil, fmt.Errorf("timeframe %ds does not compose into %ds", srcTimeframe, dstTimeframe)
	}

	var out []*domain.Candle
	var cur *domain.Candle

	for _, c := range src {
		bucket := c.BucketStart / dstTimeframe * dstTimeframe

		if cur == nil || cur.BucketStart != bucket {
			cur = &domain.Candle{
				BucketStart: bucket,
				Open:        c.Open,
				High:        c.High,
				Low:         c.Low,
				Close:       c.Close,
				Volume:      c.Volume,
			}
			out = append(out, cur)
			continue
		}

		cur.High = maxf(cur.High, c.High)
		cur.Low = minf(cur.Low, c.Low)
		cur.Close = c.Close
		cur.Volume += c.Volume
	}

	return out, nil
}
