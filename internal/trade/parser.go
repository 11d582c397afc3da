// Package trade turns raw transactions into classified swaps: a pure
// balance-delta parser shared by the historical and live paths, and an
// ordering-dependent classifier.
package trade

import (
	"curvewatch/internal/domain"
	"curvewatch/internal/solana"
)

// lamportsPerSol converts native balance deltas to SOL.
const lamportsPerSol = 1e9

// Parser derives a Swap from a transaction's balance deltas. Parsing is a
// pure function of its inputs: the same record always yields the same swap.
type Parser struct {
	// KeepBalanced keeps transactions whose buy and sell amounts match
	// exactly (treated as buys) instead of discarding them. Zero-net-
	// direction volume is real volume, so the policy stays pluggable.
	KeepBalanced bool
}

// Parse extracts a swap for the given mint and reserve account.
// Returns nil when the transaction is not a swap against this market.
func (p *Parser) Parse(tx *solana.Transaction, mint, reserve string) *domain.Swap {
	if tx == nil || tx.Meta == nil || tx.Failed() {
		return nil
	}
	meta := tx.Meta

	var accountKeys []string
	if tx.Message != nil {
		accountKeys = tx.Message.AccountKeys
	}

	isReserve := func(tb solana.TokenBalance) bool {
		if tb.Owner == reserve {
			return true
		}
		return tb.AccountIndex < len(accountKeys) && accountKeys[tb.AccountIndex] == reserve
	}

	// Token-balance delta per account for the mint, traders only.
	pre := make(map[int]float64)
	for _, tb := range meta.PreTokenBalances {
		if tb.Mint == mint && !isReserve(tb) {
			pre[tb.AccountIndex] = tb.UIAmount
		}
	}

	var buyAmount, sellAmount float64
	post := make(map[int]struct{})
	for _, tb := range meta.PostTokenBalances {
		if tb.Mint != mint || isReserve(tb) {
			continue
		}
		post[tb.AccountIndex] = struct{}{}
		delta := tb.UIAmount - pre[tb.AccountIndex]
		if delta > 0 {
			buyAmount += delta
		} else if delta < 0 {
			sellAmount += -delta
		}
	}
	// Accounts emptied and dropped from post-state still sold their balance.
	for idx, amount := range pre {
		if _, ok := post[idx]; !ok && amount > 0 {
			sellAmount += amount
		}
	}

	// Trader-level deltas can net to zero on routed round-trips; the
	// reserve's own delta still shows the trade. Reserve gaining tokens
	// means traders net-sold.
	if buyAmount == 0 && sellAmount == 0 {
		delta := reserveTokenDelta(meta, mint, isReserve)
		if delta > 0 {
			sellAmount = delta
		} else if delta < 0 {
			buyAmount = -delta
		}
	}

	if buyAmount == 0 && sellAmount == 0 {
		return nil
	}

	direction := domain.Buy
	tokenAmount := buyAmount
	switch {
	case buyAmount > sellAmount:
	case sellAmount > buyAmount:
		direction = domain.Sell
		tokenAmount = sellAmount
	default:
		// Perfectly balanced within one transaction.
		if !p.KeepBalanced {
			return nil
		}
	}

	baseAmount := baseCurrencyDelta(tx, reserve, accountKeys)
	if baseAmount == 0 {
		return nil
	}

	return &domain.Swap{
		TxSignature: tx.Signature,
		Slot:        tx.Slot,
		Timestamp:   tx.BlockTime,
		Direction:   direction,
		TokenAmount: tokenAmount,
		BaseAmount:  baseAmount,
		Price:       baseAmount / tokenAmount,
		IsMint:      detectMint(meta, mint),
		IsVolumeBot: buyAmount > 0 && sellAmount > 0,
	}
}

// reserveTokenDelta returns the reserve account's own token-balance change
// for the mint.
func reserveTokenDelta(meta *solana.TransactionMeta, mint string, isReserve func(solana.TokenBalance) bool) float64 {
	var preAmount, postAmount float64
	var seen bool
	for _, tb := range meta.PreTokenBalances {
		if tb.Mint == mint && isReserve(tb) {
			preAmount += tb.UIAmount
			seen = true
		}
	}
	for _, tb := range meta.PostTokenBalances {
		if tb.Mint == mint && isReserve(tb) {
			postAmount += tb.UIAmount
			seen = true
		}
	}
	if !seen {
		return 0
	}
	return postAmount - preAmount
}

// baseCurrencyDelta returns the trade's base-currency size in SOL: the
// reserve account's lamport delta, or the fee payer's as a lower-fidelity
// fallback (includes fees).
func baseCurrencyDelta(tx *solana.Transaction, reserve string, accountKeys []string) float64 {
	meta := tx.Meta
	if len(meta.PreBalances) == 0 || len(meta.PreBalances) != len(meta.PostBalances) {
		return 0
	}

	for i, key := range accountKeys {
		if key != reserve || i >= len(meta.PreBalances) {
			continue
		}
		if d := lamportDelta(meta.PreBalances[i], meta.PostBalances[i]); d != 0 {
			return d
		}
	}

	// Fee payer is always account index 0.
	return lamportDelta(meta.PreBalances[0], meta.PostBalances[0])
}

func lamportDelta(pre, post uint64) float64 {
	var diff uint64
	if post > pre {
		diff = post - pre
	} else {
		diff = pre - post
	}
	return float64(diff) / lamportsPerSol
}

// detectMint reports the token's first on-ledger appearance: the mint shows
// up in post-state balances while no account held it in pre-state. A merely
// new token account for one trader does not qualify.
func detectMint(meta *solana.TransactionMeta, mint string) bool {
	for _, tb := range meta.PreTokenBalances {
		if tb.Mint == mint && tb.UIAmount > 0 {
			return false
		}
	}
	for _, tb := range meta.PostTokenBalances {
		if tb.Mint == mint && tb.UIAmount > 0 {
			return true
		}
	}
	return false
}
