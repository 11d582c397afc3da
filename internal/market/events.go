// Package market runs one actor per tracked token market: historical
// backfill, then live streaming, with a single writer owning the swap log
// and candle state.
package market

import (
	"log"

	"curvewatch/internal/domain"
)

// Subscriber receives market events. Callbacks run on the market's actor
// goroutine; slow subscribers stall that market only.
type Subscriber interface {
	// OnHistoricalComplete fires once per market when the backfill phase
	// finishes, with the full candle state built so far.
	OnHistoricalComplete(mint string, swapCount int, candlesByTimeframe map[int64][]*domain.Candle)

	// OnSwap fires per newly classified swap, historical and live.
	OnSwap(mint string, swap *domain.Swap)

	// OnCandleUpdate fires per created or mutated candle.
	OnCandleUpdate(mint string, timeframe int64, candle *domain.Candle)

	// OnError fires on fatal market errors (curve not found, backfill
	// transport exhausted). The market stops after emitting it.
	OnError(mint string, err error)
}

// LogSubscriber writes market events to a logger. It is the default
// downstream consumer wired by the CLI.
type LogSubscriber struct {
	Logger *log.Logger
}

// NewLogSubscriber creates a LogSubscriber.
func NewLogSubscriber(logger *log.Logger) *LogSubscriber {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSubscriber{Logger: logger}
}

var _ Subscriber = (*LogSubscriber)(nil)

func (l *LogSubscriber) OnHistoricalComplete(mint string, swapCount int, candlesByTimeframe map[int64][]*domain.Candle) {
	for tf, cs := range candlesByTimeframe {
		l.Logger.Printf("[market] %s historical complete: %d swaps, %d candles @%ds", mint, swapCount, len(cs), tf)
	}
}

func (l *LogSubscriber) OnSwap(mint string, swap *domain.Swap) {
	l.Logger.Printf("[market] %s %s %s %.6f tokens @ %.9f (%.4f SOL) tags=%v",
		mint, swap.TxSignature, swap.Direction, swap.TokenAmount, swap.Price, swap.BaseAmount, swap.Tags.List())
}

func (l *LogSubscriber) OnCandleUpdate(mint string, timeframe int64, candle *domain.Candle) {
	l.Logger.Printf("[market] %s candle @%ds bucket=%d O=%.9f H=%.9f L=%.9f C=%.9f V=%.4f",
		mint, timeframe, candle.BucketStart, candle.Open, candle.High, candle.Low, candle.Close, candle.Volume)
}

func (l *LogSubscriber) OnError(mint string, err error) {
	l.Logger.Printf("[market] %s error: %v", mint, err)
}
