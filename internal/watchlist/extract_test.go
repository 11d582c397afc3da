package watchlist

import (
	"context"
	"encoding/json"
	"testing"
)

// Valid 32-byte base58 pubkeys.
const (
	mintA = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	mintB = "5KKsLVU6TcbVDK4BS6K1DGDxnh4Q9xjYJ8XaDCG5t8ht"
)

func TestValidMint(t *testing.T) {
	if !ValidMint(mintA) {
		t.Errorf("ValidMint(%s) = false, want true", mintA)
	}
	if ValidMint("") {
		t.Error("ValidMint of empty string = true")
	}
	if ValidMint("tooshort") {
		t.Error("ValidMint of short string = true")
	}
	// Right length for the pattern, wrong decoded size.
	if ValidMint("abcdefghjkmnpqrstuvwxyz123456789") {
		t.Error("ValidMint accepted base58 that does not decode to 32 bytes")
	}
	// Contains 'l', not a base58 character.
	if ValidMint("l" + mintA[1:]) {
		t.Error("ValidMint accepted non-base58 input")
	}
}

func TestExtractStandard(t *testing.T) {
	text := "new launch!! " + mintA + " get in early"

	got := ExtractMints(text)
	if len(got) != 1 {
		t.Fatalf("ExtractMints returned %d matches, want 1", len(got))
	}
	if got[0].Address != mintA || got[0].Form != FormStandard {
		t.Errorf("match = %+v, want %s as standard", got[0], mintA)
	}
}

func TestExtractMultipleAndDedup(t *testing.T) {
	text := mintA + " fire, also " + mintB + ", again: " + mintA

	got := ExtractMints(text)
	if len(got) != 2 {
		t.Fatalf("ExtractMints returned %d matches, want 2", len(got))
	}
	if got[0].Address != mintA || got[1].Address != mintB {
		t.Errorf("matches = %v, %v; want appearance order %s, %s",
			got[0].Address, got[1].Address, mintA, mintB)
	}
}

func TestExtractObfuscated(t *testing.T) {
	// The address with a dash wedged into the middle.
	raw := mintA[:22] + "-" + mintA[22:]
	text := "ca: " + raw + " dyor"

	got := ExtractMints(text)
	if len(got) != 1 {
		t.Fatalf("ExtractMints returned %d matches, want 1", len(got))
	}
	if got[0].Address != mintA {
		t.Errorf("cleaned address = %s, want %s", got[0].Address, mintA)
	}
	if got[0].Form != FormObfuscated {
		t.Errorf("form = %s, want obfuscated", got[0].Form)
	}
	if got[0].Raw != raw {
		t.Errorf("raw = %s, want the separator form %s", got[0].Raw, raw)
	}
}

func TestExtractObfuscatedTwoSeparators(t *testing.T) {
	raw := mintA[:15] + ".." + mintA[15:30] + "_" + mintA[30:]

	got := ExtractMints("get " + raw + " now")
	if len(got) != 1 || got[0].Address != mintA {
		t.Fatalf("ExtractMints(%q) = %+v, want %s", raw, got, mintA)
	}
}

func TestExtractSplitAcrossText(t *testing.T) {
	// The address broken in two, with prose in between. The second half is
	// followed by a pump mention, pinning it to the end.
	text := "first: " + mintA[:20] + " then later " + mintA[20:] + " on pump dot fun"

	got := ExtractMints(text)
	if len(got) != 1 {
		t.Fatalf("ExtractMints returned %d matches, want 1: %+v", len(got), got)
	}
	if got[0].Address != mintA || got[0].Form != FormSplit {
		t.Errorf("match = %+v, want %s as split", got[0], mintA)
	}
}

func TestExtractSplitSkippedWhenStandardPresent(t *testing.T) {
	// A whole address present means no reassembly attempt.
	text := mintA + "\nleftover fragments " + mintB[:20] + " and " + mintB[20:]

	got := ExtractMints(text)
	for _, m := range got {
		if m.Form == FormSplit {
			t.Errorf("split reassembly ran despite a standard match: %+v", m)
		}
	}
}

func TestExtractNothing(t *testing.T) {
	if got := ExtractMints("gm gm no alpha today"); len(got) != 0 {
		t.Errorf("ExtractMints of plain chatter = %+v, want none", got)
	}
}

func TestConsumerHandleEntry(t *testing.T) {
	var tracked []string
	c := NewConsumer(ConsumerOptions{
		Track: func(_ context.Context, mint string) error {
			tracked = append(tracked, mint)
			return nil
		},
	})

	payload, _ := json.Marshal(Detection{
		SchemaVersion: "1.0",
		Contract:      mintA,
		Type:          FormStandard,
		Message:       "buy " + mintA,
	})
	entry := map[string]interface{}{"data": string(payload)}

	c.handleEntry(context.Background(), entry)
	// The same detection replayed must not re-track.
	c.handleEntry(context.Background(), entry)

	if len(tracked) != 1 || tracked[0] != mintA {
		t.Errorf("tracked = %v, want exactly one %s", tracked, mintA)
	}
}

func TestConsumerHandleEntryExtractsFromMessage(t *testing.T) {
	var tracked []string
	c := NewConsumer(ConsumerOptions{
		Track: func(_ context.Context, mint string) error {
			tracked = append(tracked, mint)
			return nil
		},
	})

	// No pre-extracted contract; the consumer falls back to the text.
	payload, _ := json.Marshal(Detection{
		SchemaVersion: "1.0",
		Message:       "stealth launch " + mintB,
	})
	c.handleEntry(context.Background(), map[string]interface{}{"data": string(payload)})

	if len(tracked) != 1 || tracked[0] != mintB {
		t.Errorf("tracked = %v, want %s", tracked, mintB)
	}
}

func TestConsumerHandleEntryMalformed(t *testing.T) {
	c := NewConsumer(ConsumerOptions{
		Track: func(context.Context, string) error {
			t.Fatal("track called for malformed entry")
			return nil
		},
	})

	c.handleEntry(context.Background(), map[string]interface{}{"data": "{not json"})
	c.handleEntry(context.Background(), map[string]interface{}{"other": "field"})
}
