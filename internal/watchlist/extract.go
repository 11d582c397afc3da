// Package watchlist turns free-text token mentions into tracked markets:
// base58 mint extraction from chat text and a Redis stream consumer that
// feeds detections into the engine.
package watchlist

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mr-tron/base58"
)

// Detection forms, in extraction priority order.
const (
	FormStandard   = "standard"
	FormObfuscated = "obfuscated"
	FormSplit      = "split"
)

// Mint address extraction patterns. A Solana pubkey is 32 bytes, base58.
var (
	// A plain address: one base58 word of plausible length.
	standardPattern = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{32,44}\b`)

	// An address hidden behind 1-2 separator characters between fragments,
	// e.g. "9xQeWvG8...-...PusVFin" or chunks joined by dots or spaces.
	obfuscatedPattern = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{8,}[-_.\s]{1,2}[1-9A-HJ-NP-Za-km-z]{8,}(?:[-_.\s]{1,2}[1-9A-HJ-NP-Za-km-z]{8,})*`)

	// A fragment that could be part of an address split across lines.
	fragmentPattern = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{8,}`)

	separatorPattern = regexp.MustCompile(`[-_.\s]`)
)

// Match is one extracted mint address.
type Match struct {
	Address string // cleaned base58 address
	Raw     string // the text form it was found in
	Form    string // standard, obfuscated or split
}

// ValidMint reports whether s is a well-formed mint address: base58 text
// decoding to exactly 32 bytes.
func ValidMint(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	decoded, err := base58.Decode(s)
	return err == nil && len(decoded) == 32
}

// ExtractMints finds mint addresses in free text. Plain addresses are found
// first, then obfuscated ones; reassembly of addresses split into fragments
// is attempted only when neither form matched. Results are deduplicated in
// order of appearance.
func ExtractMints(text string) []Match {
	var results []Match
	found := make(map[string]struct{})

	add := func(address, raw, form string) {
		if !ValidMint(address) {
			return
		}
		if _, dup := found[address]; dup {
			return
		}
		found[address] = struct{}{}
		results = append(results, Match{Address: address, Raw: raw, Form: form})
	}

	for _, m := range standardPattern.FindAllString(text, -1) {
		add(m, m, FormStandard)
	}

	for _, m := range obfuscatedPattern.FindAllString(text, -1) {
		cleaned := separatorPattern.ReplaceAllString(m, "")
		add(cleaned, m, FormObfuscated)
	}

	if len(results) == 0 {
		for _, combined := range reassembleSplit(text) {
			add(combined, combined, FormSplit)
		}
	}

	return results
}

type fragment struct {
	text string
	pos  int
}

// reassembleSplit tries to rebuild an address broken into 2 or 3 base58
// fragments across the text, e.g. one half per line. Fragments ending in
// "pump" (the launchpad's vanity suffix) or immediately followed by a pump
// mention are pinned to the last position; otherwise text order decides.
func reassembleSplit(text string) []string {
	locs := fragmentPattern.FindAllStringIndex(text, -1)

	var fragments []fragment
	seen := make(map[string]struct{})
	for _, loc := range locs {
		frag := text[loc[0]:loc[1]]
		if _, dup := seen[frag]; dup {
			continue
		}
		seen[frag] = struct{}{}
		fragments = append(fragments, fragment{frag, loc[0]})
	}
	if len(fragments) < 2 {
		return nil
	}

	ending := make(map[string]bool)
	lower := strings.ToLower(text)
	for _, f := range fragments {
		if strings.HasSuffix(strings.ToLower(f.text), "pump") {
			ending[f.text] = true
			continue
		}
		after := lower[f.pos+len(f.text):min(len(lower), f.pos+len(f.text)+20)]
		if strings.Contains(after, "pump") {
			ending[f.text] = true
		}
	}

	var out []string
	emit := func(combined string) {
		for _, existing := range out {
			if existing == combined {
				return
			}
		}
		if ValidMint(combined) {
			out = append(out, combined)
		}
	}

	// Pairs: the ending fragment goes last; without a marker, text order.
	for i := range fragments {
		for j := range fragments {
			if i == j {
				continue
			}
			a, b := fragments[i], fragments[j]
			switch {
			case ending[a.text] && !ending[b.text]:
				emit(b.text + a.text)
			case ending[b.text] && !ending[a.text]:
				emit(a.text + b.text)
			case a.pos < b.pos:
				emit(a.text + b.text)
			}
		}
	}

	// Triples: non-ending fragments in text order, ending fragment last.
	if len(fragments) >= 3 {
		for i := range fragments {
			for j := range fragments {
				for k := range fragments {
					if i == j || i == k || j == k {
						continue
					}
					trio := []fragment{fragments[i], fragments[j], fragments[k]}
					ordered := orderTrio(trio, ending)
					emit(ordered[0].text + ordered[1].text + ordered[2].text)
				}
			}
		}
	}

	return out
}

// orderTrio places non-ending fragments in text order and pins any
// ending-marked fragments to the back.
func orderTrio(trio []fragment, ending map[string]bool) []fragment {
	var rest, last []fragment
	for _, f := range trio {
		if ending[f.text] {
			last = append(last, f)
		} else {
			rest = append(rest, f)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].pos < rest[j].pos })
	return append(rest, last...)
}
