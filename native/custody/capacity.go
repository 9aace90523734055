package custody

import (
	"fmt"
	"math/big"
)

// CapacityGuard enforces the immutable ceiling on total native holdings. The
// cap is fixed at construction and covers holdings, not any single deposit, so
// the available headroom shrinks as the vault fills.
type CapacityGuard struct {
	bankCap *big.Int
}

// NewCapacityGuard constructs a guard with the supplied cap in wei. A zero or
// negative cap is a configuration error, not an unlimited vault.
func NewCapacityGuard(bankCapWei *big.Int) (*CapacityGuard, error) {
	if bankCapWei == nil || bankCapWei.Sign() <= 0 {
		return nil, fmt.Errorf("custody: bank cap must be positive")
	}
	return &CapacityGuard{bankCap: new(big.Int).Set(bankCapWei)}, nil
}

// Cap returns the configured ceiling.
func (g *CapacityGuard) Cap() *big.Int {
	if g == nil || g.bankCap == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(g.bankCap)
}

// Check validates an incoming native amount against the cap. currentHeld is
// the vault balance after the incoming value has already arrived, so the
// pre-deposit level is reconstructed by subtracting the incoming amount. A
// deposit landing exactly on the cap is accepted.
func (g *CapacityGuard) Check(currentHeld, incoming *big.Int) error {
	if g == nil || g.bankCap == nil {
		return fmt.Errorf("custody: capacity guard not initialised")
	}
	if incoming == nil || incoming.Sign() <= 0 {
		return ErrAmountZero
	}
	held := big.NewInt(0)
	if currentHeld != nil {
		held = new(big.Int).Set(currentHeld)
	}
	prior := new(big.Int).Sub(held, incoming)
	if prior.Sign() < 0 {
		prior.SetInt64(0)
	}
	projected := new(big.Int).Add(prior, incoming)
	if projected.Cmp(g.bankCap) > 0 {
		return fmt.Errorf("%w: holdings %s + deposit %s over cap %s",
			ErrBankCapacityExceeded, prior.String(), incoming.String(), g.bankCap.String())
	}
	return nil
}

// Remaining reports how much additional native value the vault can accept,
// floored at zero.
func (g *CapacityGuard) Remaining(currentHeld *big.Int) *big.Int {
	if g == nil || g.bankCap == nil {
		return big.NewInt(0)
	}
	held := big.NewInt(0)
	if currentHeld != nil {
		held = currentHeld
	}
	remaining := new(big.Int).Sub(g.bankCap, held)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	return remaining
}
