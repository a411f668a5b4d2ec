package solana

import (
	"context"
	"testing"

	"github.com/mr-tron/base58"
)

func TestSyntheticIssuer_Issue(t *testing.T) {
	t.Parallel()

	iss := NewSyntheticIssuer()
	a, err := iss.Issue(context.Background())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, err := iss.Issue(context.Background())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if !IsBase58Address(a.TokenID) || !IsBase58Address(a.ContractAddress) {
		t.Fatalf("identifiers = %+v, want base58 public keys", a)
	}
	sig, err := base58.Decode(a.TransactionHash)
	if err != nil || len(sig) != 64 {
		t.Fatalf("transaction hash %q decodes to %d bytes (err=%v), want 64", a.TransactionHash, len(sig), err)
	}
	if a.TokenID == b.TokenID || a.TransactionHash == b.TransactionHash {
		t.Fatalf("two issues returned the same identifiers: %+v", a)
	}
}

func TestSyntheticIssuer_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSyntheticIssuer().Issue(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
