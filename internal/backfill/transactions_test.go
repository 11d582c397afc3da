package backfill

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"curvewatch/internal/solana"
	"curvewatch/internal/solana/stub"
)

func TestFetchAllPreservesOrder(t *testing.T) {
	rpc := stub.NewRPCClient()

	var sigs []solana.SignatureInfo
	for i := 0; i < 25; i++ {
		sig := fmt.Sprintf("sig%02d", i)
		sigs = append(sigs, solana.SignatureInfo{Signature: sig, Slot: int64(100 + i)})
		rpc.AddTransaction(&solana.Transaction{Signature: sig, Slot: int64(100 + i), BlockTime: int64(1000 + i)})
	}

	// Small batches and real concurrency so completion order could differ.
	f := NewTransactionFetcher(TransactionFetcherOptions{
		RPC:         rpc,
		BatchSize:   3,
		Concurrency: 4,
	})

	res, err := f.FetchAll(context.Background(), sigs)
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if res.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", res.Skipped)
	}
	if len(res.Transactions) != 25 {
		t.Fatalf("got %d transactions, want 25", len(res.Transactions))
	}
	for i, tx := range res.Transactions {
		if want := fmt.Sprintf("sig%02d", i); tx.Signature != want {
			t.Errorf("Transactions[%d] = %s, want %s", i, tx.Signature, want)
		}
	}
}

func TestFetchAllSkipsUnresolvable(t *testing.T) {
	rpc := stub.NewRPCClient()

	rpc.AddTransaction(&solana.Transaction{Signature: "present1", Slot: 100, BlockTime: 1000})
	rpc.AddTransaction(&solana.Transaction{Signature: "present2", Slot: 102, BlockTime: 1002})

	sigs := []solana.SignatureInfo{
		{Signature: "present1", Slot: 100},
		{Signature: "pruned", Slot: 101},
		{Signature: "present2", Slot: 102},
	}

	f := NewTransactionFetcher(TransactionFetcherOptions{RPC: rpc})

	res, err := f.FetchAll(context.Background(), sigs)
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(res.Transactions))
	}
	if res.Transactions[0].Signature != "present1" || res.Transactions[1].Signature != "present2" {
		t.Errorf("unexpected transactions: %s, %s",
			res.Transactions[0].Signature, res.Transactions[1].Signature)
	}
}

func TestFetchAllTransportErrorIsFatal(t *testing.T) {
	rpc := stub.NewRPCClient()

	transportErr := errors.New("max retries exceeded")
	rpc.AddTransaction(&solana.Transaction{Signature: "ok", Slot: 100, BlockTime: 1000})
	rpc.Fail["broken"] = transportErr

	sigs := []solana.SignatureInfo{
		{Signature: "ok", Slot: 100},
		{Signature: "broken", Slot: 101},
	}

	f := NewTransactionFetcher(TransactionFetcherOptions{RPC: rpc})

	_, err := f.FetchAll(context.Background(), sigs)
	if !errors.Is(err, transportErr) {
		t.Errorf("FetchAll() error = %v, want wrapped transport error", err)
	}
}

func TestFetchAllEmptyInput(t *testing.T) {
	f := NewTransactionFetcher(TransactionFetcherOptions{RPC: stub.NewRPCClient()})

	res, err := f.FetchAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if len(res.Transactions) != 0 || res.Skipped != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}
