package custody

import (
	"fmt"
	"math/big"
	"sync"
)

var nativeHeldKey = []byte("custody/native/held")

// LocalVault is a NativeVault that keeps the held total in module storage. It
// models the module's own native holdings when no external settlement layer is
// wired in.
type LocalVault struct {
	mu    sync.Mutex
	store Storage
}

// NewLocalVault constructs a vault over the supplied storage.
func NewLocalVault(store Storage) (*LocalVault, error) {
	if store == nil {
		return nil, fmt.Errorf("custody: storage required")
	}
	return &LocalVault{store: store}, nil
}

func (v *LocalVault) load() (*big.Int, error) {
	var record balanceRecord
	ok, err := v.store.KVGet(nativeHeldKey, &record)
	if err != nil {
		return nil, fmt.Errorf("custody: load held total: %w", err)
	}
	if !ok {
		return big.NewInt(0), nil
	}
	held, valid := new(big.Int).SetString(record.Amount, 10)
	if !valid {
		return nil, fmt.Errorf("custody: corrupt held total %q", record.Amount)
	}
	return held, nil
}

func (v *LocalVault) persist(held *big.Int) error {
	if err := v.store.KVPut(nativeHeldKey, balanceRecord{Amount: held.String()}); err != nil {
		return fmt.Errorf("custody: persist held total: %w", err)
	}
	return nil
}

// Held returns the vault's current native balance.
func (v *LocalVault) Held() (*big.Int, error) {
	if v == nil || v.store == nil {
		return nil, fmt.Errorf("custody: vault not initialised")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.load()
}

// Receive adds incoming native value to the held total.
func (v *LocalVault) Receive(amount *big.Int) error {
	if v == nil || v.store == nil {
		return fmt.Errorf("custody: vault not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountZero
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	held, err := v.load()
	if err != nil {
		return err
	}
	held.Add(held, amount)
	return v.persist(held)
}

// Send releases native value from the held total. Sends beyond the held total
// are rejected.
func (v *LocalVault) Send(to [20]byte, amount *big.Int) error {
	if v == nil || v.store == nil {
		return fmt.Errorf("custody: vault not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountZero
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	held, err := v.load()
	if err != nil {
		return err
	}
	if held.Cmp(amount) < 0 {
		return fmt.Errorf("custody: vault holds %s, cannot send %s", held.String(), amount.String())
	}
	held.Sub(held, amount)
	return v.persist(held)
}
