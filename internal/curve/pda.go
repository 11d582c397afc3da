// Package curve resolves the reserve account behind a token's bonding-curve
// market and decodes its on-chain state.
package curve

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ProgramID is the bonding-curve exchange program.
const ProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// reserveSeed is the PDA seed prefix the program uses for reserve accounts.
const reserveSeed = "bonding-curve"

// DeriveReserveAddress derives the canonical reserve account address for a
// mint from the program's PDA seeds. This is the fast path: when the account
// at the derived address decodes as a reserve account, no transaction scan
// is needed.
func DeriveReserveAddress(mint string) (string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}
	if len(mintBytes) != 32 {
		return "", fmt.Errorf("mint is not a 32-byte pubkey: %d bytes", len(mintBytes))
	}

	programBytes, err := base58.Decode(ProgramID)
	if err != nil {
		return "", fmt.Errorf("decode program id: %w", err)
	}

	addr := findProgramAddress([][]byte{[]byte(reserveSeed), mintBytes}, programBytes)
	if addr == "" {
		return "", fmt.Errorf("no valid bump seed for mint %s", mint)
	}
	return addr, nil
}

// findProgramAddress implements Solana PDA derivation:
// seeds + bump + program ID + "ProgramDerivedAddress" marker, SHA256 hashed,
// searching bump seeds downward for an off-curve point.
func findProgramAddress(seeds [][]byte, programID []byte) string {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0, 96)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}
	return ""
}

// isOnCurve reports whether the point is a valid ed25519 curve point.
// PDAs must be off-curve so no private key can exist for them.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
