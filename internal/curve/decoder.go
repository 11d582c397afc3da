package curve

import (
	"encoding/binary"

	"curvewatch/internal/solana"
)

// Reserve account layout: 8-byte discriminator, five u64 fields, one bool.
const reserveAccountSize = 49

// reserveDiscriminator is the anchor discriminator of the program's
// reserve (bonding curve) account type.
var reserveDiscriminator = [8]byte{23, 183, 248, 55, 96, 216, 172, 96}

// ReserveState is the decoded on-chain state of a reserve account.
type ReserveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool // true once the market graduated off the curve
}

// DecodeResult is the tagged outcome of a structural decode attempt.
// Recognized is true only when owner, length and discriminator all match;
// callers must not guess on Unrecognized data.
type DecodeResult struct {
	Recognized bool
	State      ReserveState
}

// DecodeReserveAccount structurally validates account data as a reserve
// account: owning program, exact data length, and discriminator. Anything
// else is Unrecognized.
func DecodeReserveAccount(info *solana.AccountInfo) DecodeResult {
	if info == nil || info.Owner != ProgramID {
		return DecodeResult{}
	}
	if len(info.Data) != reserveAccountSize {
		return DecodeResult{}
	}

	var disc [8]byte
	copy(disc[:], info.Data[:8])
	if disc != reserveDiscriminator {
		return DecodeResult{}
	}

	d := info.Data[8:]
	return DecodeResult{
		Recognized: true,
		State: ReserveState{
			VirtualTokenReserves: binary.LittleEndian.Uint64(d[0:8]),
			VirtualSolReserves:   binary.LittleEndian.Uint64(d[8:16]),
			RealTokenReserves:    binary.LittleEndian.Uint64(d[16:24]),
			RealSolReserves:      binary.LittleEndian.Uint64(d[24:32]),
			TokenTotalSupply:     binary.LittleEndian.Uint64(d[32:40]),
			Complete:             d[40] != 0,
		},
	}
}
