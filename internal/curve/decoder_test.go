package curve

import (
	"encoding/binary"
	"testing"

	"curvewatch/internal/solana"
)

// reserveAccountData builds valid reserve account bytes.
func reserveAccountData(virtualToken, virtualSol, realToken, realSol, supply uint64, complete bool) []byte {
	data := make([]byte, reserveAccountSize)
	copy(data[:8], reserveDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], virtualToken)
	binary.LittleEndian.PutUint64(data[16:24], virtualSol)
	binary.LittleEndian.PutUint64(data[24:32], realToken)
	binary.LittleEndian.PutUint64(data[32:40], realSol)
	binary.LittleEndian.PutUint64(data[40:48], supply)
	if complete {
		data[48] = 1
	}
	return data
}

func TestDecodeReserveAccount(t *testing.T) {
	info := &solana.AccountInfo{
		Owner: ProgramID,
		Data:  reserveAccountData(1_000_000, 30_000, 800_000, 25_000, 1_000_000_000, false),
	}

	res := DecodeReserveAccount(info)
	if !res.Recognized {
		t.Fatal("valid reserve account not recognized")
	}
	if res.State.VirtualTokenReserves != 1_000_000 {
		t.Errorf("VirtualTokenReserves = %d, want 1000000", res.State.VirtualTokenReserves)
	}
	if res.State.VirtualSolReserves != 30_000 {
		t.Errorf("VirtualSolReserves = %d, want 30000", res.State.VirtualSolReserves)
	}
	if res.State.RealTokenReserves != 800_000 {
		t.Errorf("RealTokenReserves = %d, want 800000", res.State.RealTokenReserves)
	}
	if res.State.RealSolReserves != 25_000 {
		t.Errorf("RealSolReserves = %d, want 25000", res.State.RealSolReserves)
	}
	if res.State.TokenTotalSupply != 1_000_000_000 {
		t.Errorf("TokenTotalSupply = %d, want 1000000000", res.State.TokenTotalSupply)
	}
	if res.State.Complete {
		t.Error("Complete = true, want false")
	}
}

func TestDecodeReserveAccountComplete(t *testing.T) {
	info := &solana.AccountInfo{
		Owner: ProgramID,
		Data:  reserveAccountData(0, 0, 0, 0, 0, true),
	}
	res := DecodeReserveAccount(info)
	if !res.Recognized {
		t.Fatal("valid reserve account not recognized")
	}
	if !res.State.Complete {
		t.Error("Complete = false, want true")
	}
}

func TestDecodeReserveAccountUnrecognized(t *testing.T) {
	valid := reserveAccountData(1, 2, 3, 4, 5, false)

	tests := []struct {
		name string
		info *solana.AccountInfo
	}{
		{"nil account", nil},
		{"wrong owner", &solana.AccountInfo{Owner: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", Data: valid}},
		{"short data", &solana.AccountInfo{Owner: ProgramID, Data: valid[:20]}},
		{"long data", &solana.AccountInfo{Owner: ProgramID, Data: append(valid, 0)}},
		{"wrong discriminator", &solana.AccountInfo{Owner: ProgramID, Data: func() []byte {
			d := make([]byte, reserveAccountSize)
			copy(d, valid)
			d[0] ^= 0xFF
			return d
		}()}},
		{"empty data", &solana.AccountInfo{Owner: ProgramID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if DecodeReserveAccount(tt.info).Recognized {
				t.Error("unexpectedly recognized")
			}
		})
	}
}
