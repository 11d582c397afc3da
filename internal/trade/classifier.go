package trade

import (
	"sort"

	"curvewatch/internal/domain"
)

// Classifier assigns ordering-dependent tags to swaps. Tags describe a
// swap's position relative to the market's creation, plus per-swap traits
// (volume bot, large trade).
type Classifier struct {
	// LargeTradeThreshold is the base-currency size above which a swap is
	// tagged LARGE_BUY or LARGE_SELL. Zero disables the tag.
	LargeTradeThreshold float64
}

// NewClassifier creates a Classifier.
func NewClassifier(largeTradeThreshold float64) *Classifier {
	return &Classifier{LargeTradeThreshold: largeTradeThreshold}
}

// Sort orders swaps for classification and aggregation: slot ascending;
// within a slot the mint transaction first; then timestamp ascending, with
// the signature as the final deterministic tie-break.
func (c *Classifier) Sort(swaps []*domain.Swap) {
	sort.SliceStable(swaps, func(i, j int) bool {
		a, b := swaps[i], swaps[j]
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		if a.IsMint != b.IsMint {
			return a.IsMint
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.TxSignature < b.TxSignature
	})
}

// Classify sorts the swap log in place and assigns every swap its tags.
// It returns the slot of the first sorted swap, which live tagging needs.
func (c *Classifier) Classify(swaps []*domain.Swap) int64 {
	if len(swaps) == 0 {
		return 0
	}

	c.Sort(swaps)
	firstSlot := swaps[0].Slot

	for i, s := range swaps {
		c.Tag(s, firstSlot, i == 0)
	}
	return firstSlot
}

// Tag assigns tags to a single swap given the market's first slot. The live
// path calls this per event against the running log; isFirst is true only
// for the first swap the market has ever seen.
func (c *Classifier) Tag(s *domain.Swap, firstSlot int64, isFirst bool) {
	s.Tags = domain.TagSet{}

	switch {
	case isFirst:
		s.Tags.Add(domain.TagMint)
		s.Tags.Add(domain.BlockTag(0))
		s.Tags.Add(domain.TagDev)
	case s.Slot == firstSlot:
		s.Tags.Add(domain.TagBundler)
		s.Tags.Add(domain.BlockTag(0))
	case s.Slot == firstSlot+1 || s.Slot == firstSlot+2:
		s.Tags.Add(domain.TagEarlySniper)
		s.Tags.Add(domain.BlockTag(s.Slot - firstSlot))
	}

	if s.IsVolumeBot {
		s.Tags.Add(domain.TagVolumeBot)
	}

	if c.LargeTradeThreshold > 0 && s.BaseAmount > c.LargeTradeThreshold {
		if s.Direction == domain.Buy {
			s.Tags.Add(domain.TagLargeBuy)
		} else {
			s.Tags.Add(domain.TagLargeSell)
		}
	}
}
