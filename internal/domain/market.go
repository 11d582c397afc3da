// Package domain defines the core types of the market-data engine:
// token markets, swaps, candles and classification tags.
package domain

// TokenMarket identifies one bonding-curve market under observation.
type TokenMarket struct {
	// Mint is the SPL token mint address (base58).
	Mint string

	// ReserveAccount is the curve's reserve account. All trades against the
	// market move lamports through this account, so it is the anchor for both
	// signature backfill and the live log subscription.
	ReserveAccount string

	// DiscoveredAt is when the engine started tracking the market (Unix seconds).
	DiscoveredAt int64
}

// MarketState describes the lifecycle of a tracked market.
type MarketState int32

const (
	// StateBackfilling means the historical swap log is still being built.
	StateBackfilling MarketState = iota
	// StateLive means backfill is complete and the market consumes the
	// real-time log subscription.
	StateLive
	// StateStopped means the market has been shut down or failed fatally.
	StateStopped
)

// String returns a human-readable state name.
func (s MarketState) String() string {
	switch s {
	case StateBackfilling:
		return "BACKFILLING"
	case StateLive:
		return "LIVE"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
