package domain

import "sort"

// Direction of a swap relative to the token.
type Direction string

const (
	// Buy means the trader paid base currency for tokens.
	Buy Direction = "buy"
	// Sell means the trader sold tokens for base currency.
	Sell Direction = "sell"
)

// Classification tags assigned to swaps by position in the market's history.
const (
	TagMint        = "MINT"
	TagDev         = "DEV"
	TagBundler     = "BUNDLER"
	TagEarlySniper = "EARLY_SNIPER"
	TagVolumeBot   = "VOLUME_BOT"
	TagLargeBuy    = "LARGE_BUY"
	TagLargeSell   = "LARGE_SELL"
)

// BlockTag returns the positional tag for a slot offset from the mint slot,
// e.g. BLOCK_0 for the mint slot itself.
func BlockTag(offset int64) string {
	if offset < 0 {
		offset = 0
	}
	const digits = "0123456789"
	if offset < 10 {
		return "BLOCK_" + string(digits[offset])
	}
	var buf []byte
	for offset > 0 {
		buf = append([]byte{digits[offset%10]}, buf...)
		offset /= 10
	}
	return "BLOCK_" + string(buf)
}

// Swap is a single classified trade derived from one transaction.
// Price is always base currency per token.
type Swap struct {
	TxSignature string    // Solana transaction signature (dedup key)
	Slot        int64     // Solana slot number
	Timestamp   int64     // block time, Unix seconds
	Direction   Direction // "buy" | "sell"
	TokenAmount float64   // absolute token quantity moved (UI units)
	BaseAmount  float64   // absolute base currency moved (SOL)
	Price       float64   // BaseAmount / TokenAmount

	// IsMint marks the transaction in which the token first appeared on
	// ledger: post-state balances exist for the mint, pre-state does not.
	IsMint bool

	// IsVolumeBot marks a transaction that both bought and sold the token,
	// even though a dominant direction was resolved.
	IsVolumeBot bool

	// Tags carries classification labels assigned after sorting.
	Tags TagSet
}

// Volume returns the swap's contribution to candle volume, in base currency.
func (s *Swap) Volume() float64 {
	return s.BaseAmount
}

// TagSet is an unordered set of classification tags.
type TagSet map[string]struct{}

// NewTagSet creates a TagSet from the given tags.
func NewTagSet(tags ...string) TagSet {
	ts := make(TagSet, len(tags))
	for _, t := range tags {
		ts[t] = struct{}{}
	}
	return ts
}

// Add inserts a tag, allocating the set if needed, and returns it.
func (ts TagSet) Add(tag string) TagSet {
	if ts == nil {
		ts = make(TagSet)
	}
	ts[tag] = struct{}{}
	return ts
}

// Has reports whether the tag is present.
func (ts TagSet) Has(tag string) bool {
	_, ok := ts[tag]
	return ok
}

// List returns the tags in lexical order for stable logging and storage.
func (ts TagSet) List() []string {
	if len(ts) == 0 {
		return nil
	}
	out := make([]string, 0, len(ts))
	for t := range ts {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (ts TagSet) Clone() TagSet {
	if ts == nil {
		return nil
	}
	out := make(TagSet, len(ts))
	for t := range ts {
		out[t] = struct{}{}
	}
	return out
}
