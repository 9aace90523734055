package custody

import (
	"errors"
	"math/big"
	"testing"
)

func TestCapacityGuardExactCapAccepted(t *testing.T) {
	guard, err := NewCapacityGuard(big.NewInt(100))
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	// Vault already received the incoming 40 on top of 60 held before.
	if err := guard.Check(big.NewInt(100), big.NewInt(40)); err != nil {
		t.Fatalf("check at cap: %v", err)
	}
}

func TestCapacityGuardOverCapRejected(t *testing.T) {
	guard, _ := NewCapacityGuard(big.NewInt(100))
	if err := guard.Check(big.NewInt(101), big.NewInt(41)); !errors.Is(err, ErrBankCapacityExceeded) {
		t.Fatalf("check error = %v, want ErrBankCapacityExceeded", err)
	}
}

func TestCapacityGuardRemaining(t *testing.T) {
	guard, _ := NewCapacityGuard(big.NewInt(100))
	if remaining := guard.Remaining(big.NewInt(60)); remaining.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("remaining = %s, want 40", remaining)
	}
	if remaining := guard.Remaining(big.NewInt(150)); remaining.Sign() != 0 {
		t.Fatalf("remaining over cap = %s, want 0", remaining)
	}
	if remaining := guard.Remaining(nil); remaining.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("remaining empty = %s, want 100", remaining)
	}
}

func TestCapacityGuardRejectsZeroCap(t *testing.T) {
	if _, err := NewCapacityGuard(big.NewInt(0)); err == nil {
		t.Fatalf("expected zero cap to be rejected")
	}
	if _, err := NewCapacityGuard(nil); err == nil {
		t.Fatalf("expected nil cap to be rejected")
	}
}
