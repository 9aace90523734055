package events

import (
	"encoding/hex"
	"math/big"
	"strings"

	"custodia/core/types"
)

const (
	// TypeCustodyDeposited is emitted whenever a deposit credits an account.
	TypeCustodyDeposited = "custody.deposited"
	// TypeCustodyWithdrawn is emitted whenever a withdrawal debits an account
	// and value has left the bank.
	TypeCustodyWithdrawn = "custody.withdrawn"
	// TypeCustodyFundsRecovered is emitted when a manager overwrites a balance.
	TypeCustodyFundsRecovered = "custody.fundsRecovered"
	// TypeCustodyPerTxCapUpdated is emitted when the per-transaction native cap changes.
	TypeCustodyPerTxCapUpdated = "custody.perTxCapUpdated"
)

// CustodyDeposited records a successful deposit.
type CustodyDeposited struct {
	Account    [20]byte
	Asset      string
	Amount     *big.Int
	NewBalance *big.Int
}

func (CustodyDeposited) EventType() string { return TypeCustodyDeposited }

func (e CustodyDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeCustodyDeposited,
		Attributes: map[string]string{
			"account":    renderAddress(e.Account),
			"asset":      strings.TrimSpace(e.Asset),
			"amount":     bigString(e.Amount),
			"newBalance": bigString(e.NewBalance),
		},
	}
}

// CustodyWithdrawn records a successful withdrawal. USDValue carries the
// oracle valuation for native withdrawals and is empty otherwise.
type CustodyWithdrawn struct {
	Account    [20]byte
	Asset      string
	Amount     *big.Int
	USDValue   string
	NewBalance *big.Int
}

func (CustodyWithdrawn) EventType() string { return TypeCustodyWithdrawn }

func (e CustodyWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeCustodyWithdrawn,
		Attributes: map[string]string{
			"account":    renderAddress(e.Account),
			"asset":      strings.TrimSpace(e.Asset),
			"amount":     bigString(e.Amount),
			"usdValue":   strings.TrimSpace(e.USDValue),
			"newBalance": bigString(e.NewBalance),
		},
	}
}

// CustodyFundsRecovered records a manager overwriting an account balance.
type CustodyFundsRecovered struct {
	Manager    [20]byte
	Account    [20]byte
	Asset      string
	OldBalance *big.Int
	NewBalance *big.Int
}

func (CustodyFundsRecovered) EventType() string { return TypeCustodyFundsRecovered }

func (e CustodyFundsRecovered) Event() *types.Event {
	return &types.Event{
		Type: TypeCustodyFundsRecovered,
		Attributes: map[string]string{
			"manager":    renderAddress(e.Manager),
			"account":    renderAddress(e.Account),
			"asset":      strings.TrimSpace(e.Asset),
			"oldBalance": bigString(e.OldBalance),
			"newBalance": bigString(e.NewBalance),
		},
	}
}

// CustodyPerTxCapUpdated records a change to the per-transaction native cap.
type CustodyPerTxCapUpdated struct {
	OldCap *big.Int
	NewCap *big.Int
}

func (CustodyPerTxCapUpdated) EventType() string { return TypeCustodyPerTxCapUpdated }

func (e CustodyPerTxCapUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeCustodyPerTxCapUpdated,
		Attributes: map[string]string{
			"oldCap": bigString(e.OldCap),
			"newCap": bigString(e.NewCap),
		},
	}
}

func renderAddress(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return "0x" + hex.EncodeToString(addr[:])
}

func bigString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
