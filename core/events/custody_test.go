package events

import (
	"math/big"
	"testing"
)

func TestCustodyDepositedAttributes(t *testing.T) {
	var account [20]byte
	account[19] = 0x42
	evt := CustodyDeposited{
		Account:    account,
		Asset:      "NATIVE",
		Amount:     big.NewInt(500),
		NewBalance: big.NewInt(1500),
	}.Event()
	if evt.Type != TypeCustodyDeposited {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if got := evt.Attribute("account"); got != "0x0000000000000000000000000000000000000042" {
		t.Fatalf("unexpected account %s", got)
	}
	if got := evt.Attribute("amount"); got != "500" {
		t.Fatalf("unexpected amount %s", got)
	}
	if got := evt.Attribute("newBalance"); got != "1500" {
		t.Fatalf("unexpected balance %s", got)
	}
}

func TestCustodyEventsTolerateNilAmounts(t *testing.T) {
	withdrawn := CustodyWithdrawn{Asset: "NATIVE"}.Event()
	if got := withdrawn.Attribute("amount"); got != "0" {
		t.Fatalf("expected zero amount, got %s", got)
	}
	capEvt := CustodyPerTxCapUpdated{NewCap: big.NewInt(7)}.Event()
	if got := capEvt.Attribute("oldCap"); got != "0" {
		t.Fatalf("expected zero old cap, got %s", got)
	}
	if got := capEvt.Attribute("newCap"); got != "7" {
		t.Fatalf("unexpected new cap %s", got)
	}
}

func TestEmitterFunc(t *testing.T) {
	var seen []string
	emitter := EmitterFunc(func(evt Event) { seen = append(seen, evt.EventType()) })
	emitter.Emit(CustodyDeposited{})
	emitter.Emit(CustodyWithdrawn{})
	if len(seen) != 2 || seen[0] != TypeCustodyDeposited || seen[1] != TypeCustodyWithdrawn {
		t.Fatalf("unexpected events: %v", seen)
	}
}
