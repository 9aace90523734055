package custody

import (
	"fmt"
	"math/big"
	"sync"
)

// NativeVault moves the native settlement asset in and out of the module's
// own holdings.
type NativeVault interface {
	Held() (*big.Int, error)
	Receive(amount *big.Int) error
	Send(to [20]byte, amount *big.Int) error
}

// TokenBackend moves an external fungible asset. Implementations may skim
// fees in transit, so the adapter measures the received amount rather than
// trusting the declared one.
type TokenBackend interface {
	BalanceOf(holder [20]byte) (*big.Int, error)
	TransferFrom(from, to [20]byte, amount *big.Int) error
	Transfer(to [20]byte, amount *big.Int) error
}

// TransferAdapter routes value movement per asset: the native vault for the
// settlement asset and a registered token backend for everything else.
type TransferAdapter struct {
	mu        sync.RWMutex
	vault     NativeVault
	vaultAddr [20]byte
	tokens    map[Asset]TokenBackend
}

// NewTransferAdapter constructs an adapter over the supplied vault. vaultAddr
// is the module's own address, used as the destination of token pulls.
func NewTransferAdapter(vault NativeVault, vaultAddr [20]byte) (*TransferAdapter, error) {
	if vault == nil {
		return nil, fmt.Errorf("custody: native vault required")
	}
	return &TransferAdapter{
		vault:     vault,
		vaultAddr: vaultAddr,
		tokens:    make(map[Asset]TokenBackend),
	}, nil
}

// RegisterToken binds a backend to an external asset. Re-registering an asset
// replaces the previous backend.
func (a *TransferAdapter) RegisterToken(asset Asset, backend TokenBackend) error {
	if a == nil {
		return fmt.Errorf("custody: transfer adapter not initialised")
	}
	if asset.IsNative() {
		return fmt.Errorf("custody: native asset uses the vault, not a token backend")
	}
	if backend == nil {
		return fmt.Errorf("custody: token backend required")
	}
	a.mu.Lock()
	a.tokens[asset] = backend
	a.mu.Unlock()
	return nil
}

func (a *TransferAdapter) backend(asset Asset) (TokenBackend, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	backend, ok := a.tokens[asset]
	return backend, ok
}

// ReceiveDeposit pulls declared value in from the depositor and returns the
// amount actually received. Native deposits require the attached value to
// equal the declared amount; token deposits must attach no native value and
// are measured by the balance delta so fee-skimming tokens credit only what
// arrived.
func (a *TransferAdapter) ReceiveDeposit(from [20]byte, asset Asset, declared, attached *big.Int) (*big.Int, error) {
	if a == nil {
		return nil, fmt.Errorf("custody: transfer adapter not initialised")
	}
	if declared == nil || declared.Sign() <= 0 {
		return nil, ErrAmountZero
	}
	if asset.IsNative() {
		if attached == nil || attached.Cmp(declared) != 0 {
			return nil, ErrValueMismatch
		}
		if err := a.vault.Receive(declared); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNativeTransferFailed, err)
		}
		return new(big.Int).Set(declared), nil
	}
	if attached != nil && attached.Sign() != 0 {
		return nil, ErrValueMismatch
	}
	backend, ok := a.backend(asset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	before, err := backend.BalanceOf(a.vaultAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: balance query: %v", ErrTokenTransferFailed, err)
	}
	if err := backend.TransferFrom(from, a.vaultAddr, declared); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenTransferFailed, err)
	}
	after, err := backend.BalanceOf(a.vaultAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: balance query: %v", ErrTokenTransferFailed, err)
	}
	received := new(big.Int).Sub(after, before)
	if received.Sign() <= 0 {
		return nil, fmt.Errorf("%w: no value received", ErrTokenTransferFailed)
	}
	return received, nil
}

// Send pushes value out to the recipient.
func (a *TransferAdapter) Send(to [20]byte, asset Asset, amount *big.Int) error {
	if a == nil {
		return fmt.Errorf("custody: transfer adapter not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountZero
	}
	if asset.IsNative() {
		if err := a.vault.Send(to, amount); err != nil {
			return fmt.Errorf("%w: %v", ErrNativeTransferFailed, err)
		}
		return nil
	}
	backend, ok := a.backend(asset)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if err := backend.Transfer(to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenTransferFailed, err)
	}
	return nil
}

// Holdings reports the vault's current native balance.
func (a *TransferAdapter) Holdings() (*big.Int, error) {
	if a == nil || a.vault == nil {
		return nil, fmt.Errorf("custody: transfer adapter not initialised")
	}
	return a.vault.Held()
}
