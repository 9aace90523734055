package custody

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

type memStorage struct {
	data map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte)}
}

func (m *memStorage) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *memStorage) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func testAddr(b byte) [20]byte {
	var addr [20]byte
	addr[19] = b
	return addr
}

func TestLedgerCreditDebitRoundTrip(t *testing.T) {
	ledger, err := NewLedger(newMemStorage())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	owner := testAddr(1)

	balance, err := ledger.Credit(owner, AssetNative, big.NewInt(500))
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("balance after credit = %s, want 500", balance)
	}
	balance, err = ledger.Debit(owner, AssetNative, big.NewInt(200))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if balance.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("balance after debit = %s, want 300", balance)
	}

	deposits, err := ledger.DepositCount()
	if err != nil {
		t.Fatalf("deposit count: %v", err)
	}
	withdrawals, err := ledger.WithdrawCount()
	if err != nil {
		t.Fatalf("withdraw count: %v", err)
	}
	if deposits != 1 || withdrawals != 1 {
		t.Fatalf("counters = %d/%d, want 1/1", deposits, withdrawals)
	}
	tracked, err := ledger.TrackedNativeTotal()
	if err != nil {
		t.Fatalf("tracked total: %v", err)
	}
	if tracked.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("tracked total = %s, want 300", tracked)
	}
}

func TestLedgerDebitInsufficient(t *testing.T) {
	ledger, _ := NewLedger(newMemStorage())
	owner := testAddr(2)
	if _, err := ledger.Credit(owner, AssetNative, big.NewInt(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := ledger.Debit(owner, AssetNative, big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("debit error = %v, want ErrInsufficientBalance", err)
	}
	balance, err := ledger.Balance(owner, AssetNative)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("balance after failed debit = %s, want 10", balance)
	}
}

func TestLedgerZeroAmountsRejected(t *testing.T) {
	ledger, _ := NewLedger(newMemStorage())
	owner := testAddr(3)
	if _, err := ledger.Credit(owner, AssetNative, big.NewInt(0)); !errors.Is(err, ErrAmountZero) {
		t.Fatalf("credit zero error = %v, want ErrAmountZero", err)
	}
	if _, err := ledger.Debit(owner, AssetNative, nil); !errors.Is(err, ErrAmountZero) {
		t.Fatalf("debit nil error = %v, want ErrAmountZero", err)
	}
}

func TestLedgerUnknownAccountIsZero(t *testing.T) {
	ledger, _ := NewLedger(newMemStorage())
	balance, err := ledger.Balance(testAddr(4), AssetNative)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("balance = %s, want 0", balance)
	}
}

func TestLedgerBalancesIsolatedPerAsset(t *testing.T) {
	ledger, _ := NewLedger(newMemStorage())
	owner := testAddr(5)
	token := Asset("0x00000000000000000000000000000000000000aa")
	if _, err := ledger.Credit(owner, AssetNative, big.NewInt(100)); err != nil {
		t.Fatalf("credit native: %v", err)
	}
	if _, err := ledger.Credit(owner, token, big.NewInt(7)); err != nil {
		t.Fatalf("credit token: %v", err)
	}
	native, _ := ledger.Balance(owner, AssetNative)
	tok, _ := ledger.Balance(owner, token)
	if native.Cmp(big.NewInt(100)) != 0 || tok.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("balances = %s/%s, want 100/7", native, tok)
	}
	tracked, _ := ledger.TrackedNativeTotal()
	if tracked.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("tracked total = %s, want 100 (token credits excluded)", tracked)
	}
}

func TestLedgerRevertDebitRestoresState(t *testing.T) {
	ledger, _ := NewLedger(newMemStorage())
	owner := testAddr(6)
	if _, err := ledger.Credit(owner, AssetNative, big.NewInt(50)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := ledger.Debit(owner, AssetNative, big.NewInt(30)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := ledger.revertDebit(owner, AssetNative, big.NewInt(30)); err != nil {
		t.Fatalf("revert debit: %v", err)
	}
	balance, _ := ledger.Balance(owner, AssetNative)
	if balance.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("balance after revert = %s, want 50", balance)
	}
	withdrawals, _ := ledger.WithdrawCount()
	if withdrawals != 0 {
		t.Fatalf("withdraw count after revert = %d, want 0", withdrawals)
	}
	tracked, _ := ledger.TrackedNativeTotal()
	if tracked.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("tracked total after revert = %s, want 50", tracked)
	}
}

func TestLedgerOverwriteAdjustsTracked(t *testing.T) {
	ledger, _ := NewLedger(newMemStorage())
	owner := testAddr(7)
	if _, err := ledger.Credit(owner, AssetNative, big.NewInt(80)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	old, err := ledger.Overwrite(owner, AssetNative, big.NewInt(30))
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if old.Cmp(big.NewInt(80)) != 0 {
		t.Fatalf("old balance = %s, want 80", old)
	}
	tracked, _ := ledger.TrackedNativeTotal()
	if tracked.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("tracked total = %s, want 30", tracked)
	}
	if _, err := ledger.Overwrite(owner, AssetNative, big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative overwrite to fail")
	}
	if _, err := ledger.Overwrite(owner, AssetNative, big.NewInt(0)); err != nil {
		t.Fatalf("overwrite to zero: %v", err)
	}
}
