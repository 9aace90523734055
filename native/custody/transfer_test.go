package custody

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

type mockVault struct {
	held    *big.Int
	sendErr error
	sent    []*big.Int
}

func newMockVault() *mockVault {
	return &mockVault{held: big.NewInt(0)}
}

func (v *mockVault) Held() (*big.Int, error) {
	return new(big.Int).Set(v.held), nil
}

func (v *mockVault) Receive(amount *big.Int) error {
	v.held.Add(v.held, amount)
	return nil
}

func (v *mockVault) Send(to [20]byte, amount *big.Int) error {
	if v.sendErr != nil {
		return v.sendErr
	}
	if v.held.Cmp(amount) < 0 {
		return fmt.Errorf("vault underflow")
	}
	v.held.Sub(v.held, amount)
	v.sent = append(v.sent, new(big.Int).Set(amount))
	return nil
}

type mockToken struct {
	balances    map[[20]byte]*big.Int
	feeBps      int64
	transferErr error
}

func newMockToken() *mockToken {
	return &mockToken{balances: make(map[[20]byte]*big.Int)}
}

func (tok *mockToken) balance(holder [20]byte) *big.Int {
	if b, ok := tok.balances[holder]; ok {
		return b
	}
	b := big.NewInt(0)
	tok.balances[holder] = b
	return b
}

func (tok *mockToken) BalanceOf(holder [20]byte) (*big.Int, error) {
	return new(big.Int).Set(tok.balance(holder)), nil
}

func (tok *mockToken) TransferFrom(from, to [20]byte, amount *big.Int) error {
	if tok.transferErr != nil {
		return tok.transferErr
	}
	src := tok.balance(from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("token balance too low")
	}
	delivered := new(big.Int).Set(amount)
	if tok.feeBps > 0 {
		fee := new(big.Int).Mul(amount, big.NewInt(tok.feeBps))
		fee.Div(fee, big.NewInt(10_000))
		delivered.Sub(delivered, fee)
	}
	src.Sub(src, amount)
	tok.balance(to).Add(tok.balance(to), delivered)
	return nil
}

func (tok *mockToken) Transfer(to [20]byte, amount *big.Int) error {
	if tok.transferErr != nil {
		return tok.transferErr
	}
	tok.balance(to).Add(tok.balance(to), amount)
	return nil
}

const testTokenAsset = Asset("0x00000000000000000000000000000000000000aa")

func TestTransferAdapterNativeDeposit(t *testing.T) {
	vault := newMockVault()
	adapter, err := NewTransferAdapter(vault, testAddr(0xff))
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	received, err := adapter.ReceiveDeposit(testAddr(1), AssetNative, big.NewInt(100), big.NewInt(100))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if received.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("received = %s, want 100", received)
	}
	held, _ := adapter.Holdings()
	if held.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("holdings = %s, want 100", held)
	}
}

func TestTransferAdapterNativeValueMismatch(t *testing.T) {
	adapter, _ := NewTransferAdapter(newMockVault(), testAddr(0xff))
	if _, err := adapter.ReceiveDeposit(testAddr(1), AssetNative, big.NewInt(100), big.NewInt(99)); !errors.Is(err, ErrValueMismatch) {
		t.Fatalf("error = %v, want ErrValueMismatch", err)
	}
	if _, err := adapter.ReceiveDeposit(testAddr(1), AssetNative, big.NewInt(100), nil); !errors.Is(err, ErrValueMismatch) {
		t.Fatalf("error = %v, want ErrValueMismatch", err)
	}
}

func TestTransferAdapterTokenDepositMeasuresDelta(t *testing.T) {
	vaultAddr := testAddr(0xff)
	adapter, _ := NewTransferAdapter(newMockVault(), vaultAddr)
	token := newMockToken()
	token.feeBps = 100 // 1% skimmed in transit
	token.balances[testAddr(1)] = big.NewInt(10_000)
	if err := adapter.RegisterToken(testTokenAsset, token); err != nil {
		t.Fatalf("register token: %v", err)
	}
	received, err := adapter.ReceiveDeposit(testAddr(1), testTokenAsset, big.NewInt(10_000), nil)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if received.Cmp(big.NewInt(9_900)) != 0 {
		t.Fatalf("received = %s, want 9900 after fee", received)
	}
}

func TestTransferAdapterTokenDepositRejectsAttachedValue(t *testing.T) {
	adapter, _ := NewTransferAdapter(newMockVault(), testAddr(0xff))
	token := newMockToken()
	if err := adapter.RegisterToken(testTokenAsset, token); err != nil {
		t.Fatalf("register token: %v", err)
	}
	if _, err := adapter.ReceiveDeposit(testAddr(1), testTokenAsset, big.NewInt(10), big.NewInt(10)); !errors.Is(err, ErrValueMismatch) {
		t.Fatalf("error = %v, want ErrValueMismatch", err)
	}
}

func TestTransferAdapterUnknownAsset(t *testing.T) {
	adapter, _ := NewTransferAdapter(newMockVault(), testAddr(0xff))
	if _, err := adapter.ReceiveDeposit(testAddr(1), testTokenAsset, big.NewInt(10), nil); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("error = %v, want ErrUnknownAsset", err)
	}
	if err := adapter.Send(testAddr(1), testTokenAsset, big.NewInt(10)); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("send error = %v, want ErrUnknownAsset", err)
	}
}

func TestTransferAdapterSendFailuresWrapped(t *testing.T) {
	vault := newMockVault()
	vault.sendErr = fmt.Errorf("link down")
	adapter, _ := NewTransferAdapter(vault, testAddr(0xff))
	if err := adapter.Send(testAddr(1), AssetNative, big.NewInt(10)); !errors.Is(err, ErrNativeTransferFailed) {
		t.Fatalf("error = %v, want ErrNativeTransferFailed", err)
	}
	token := newMockToken()
	token.transferErr = fmt.Errorf("token reverted")
	if err := adapter.RegisterToken(testTokenAsset, token); err != nil {
		t.Fatalf("register token: %v", err)
	}
	if err := adapter.Send(testAddr(1), testTokenAsset, big.NewInt(10)); !errors.Is(err, ErrTokenTransferFailed) {
		t.Fatalf("error = %v, want ErrTokenTransferFailed", err)
	}
}

func TestLocalVaultRoundTrip(t *testing.T) {
	vault, err := NewLocalVault(newMemStorage())
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	if err := vault.Receive(big.NewInt(500)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := vault.Send(testAddr(1), big.NewInt(200)); err != nil {
		t.Fatalf("send: %v", err)
	}
	held, err := vault.Held()
	if err != nil {
		t.Fatalf("held: %v", err)
	}
	if held.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("held = %s, want 300", held)
	}
	if err := vault.Send(testAddr(1), big.NewInt(301)); err == nil {
		t.Fatalf("expected overdraw to fail")
	}
}
