package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryFundTransferMerge(t *testing.T) {
	client := NewInMemory()
	ctx := context.Background()

	address, seed, err := client.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	destination, _, err := client.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate destination: %v", err)
	}
	SeedFunds(client, destination, "native", "1.0000000")

	ref, err := client.FundNewAccount(ctx, address, "100.0000000", "native", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if ref == "" {
		t.Fatalf("missing funding reference")
	}

	balance, err := client.BalanceOf(ctx, address, "native")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != "100.0000000" {
		t.Fatalf("expected 100.0000000 got %s", balance)
	}

	result, err := client.Transfer(ctx, seed, destination, "100.0000000", "native")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !result.Confirmed || result.Reference == "" {
		t.Fatalf("unexpected transfer result: %+v", result)
	}

	if _, err := client.MergeInto(ctx, seed, destination); err != nil {
		t.Fatalf("merge: %v", err)
	}

	// Merged account is gone from the ledger.
	if _, err := client.BalanceOf(ctx, address, "native"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound after merge, got %v", err)
	}

	got, err := client.BalanceOf(ctx, destination, "native")
	if err != nil {
		t.Fatalf("destination balance: %v", err)
	}
	if got != "101.0000000" {
		t.Fatalf("expected 101.0000000 got %s", got)
	}
}

func TestInMemoryTransferInsufficient(t *testing.T) {
	client := NewInMemory()
	ctx := context.Background()

	address, seed, _ := client.GenerateIdentity()
	destination, _, _ := client.GenerateIdentity()
	SeedFunds(client, destination, "native", "1.0000000")

	if _, err := client.FundNewAccount(ctx, address, "1.0000000", "native", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("fund: %v", err)
	}

	if _, err := client.Transfer(ctx, seed, destination, "2.0000000", "native"); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
}

func TestInMemoryMergeRefusesOpenSubEntries(t *testing.T) {
	client := NewInMemory()
	ctx := context.Background()

	address, seed, _ := client.GenerateIdentity()
	destination, _, _ := client.GenerateIdentity()
	SeedFunds(client, destination, "native", "1.0000000")
	SeedFunds(client, address, "native", "1.0000000")
	SeedFunds(client, address, "USD:"+destination, "5.0000000")

	if _, err := client.MergeInto(ctx, seed, destination); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected merge to fail with credit balance, got %v", err)
	}
}

func TestInMemoryFailureInjection(t *testing.T) {
	client := NewInMemory()
	ctx := context.Background()

	address, seed, _ := client.GenerateIdentity()
	destination, _, _ := client.GenerateIdentity()
	SeedFunds(client, destination, "native", "1.0000000")
	if _, err := client.FundNewAccount(ctx, address, "10.0000000", "native", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("fund: %v", err)
	}

	boom := errors.New("boom")
	FailNextTransfer(client, boom)
	if _, err := client.Transfer(ctx, seed, destination, "10.0000000", "native"); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	// The injection is one-shot.
	if _, err := client.Transfer(ctx, seed, destination, "10.0000000", "native"); err != nil {
		t.Fatalf("second transfer should succeed: %v", err)
	}
}
