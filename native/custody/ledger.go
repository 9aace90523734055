package custody

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// Storage is the narrow persistence surface the custody module depends on.
// The concrete implementation encodes values with RLP and keys by hash.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	balancePrefix    = []byte("custody/balance/")
	depositCountKey  = []byte("custody/counter/deposits")
	withdrawCountKey = []byte("custody/counter/withdrawals")
	nativeTrackedKey = []byte("custody/native/tracked")
)

type balanceRecord struct {
	Amount string
}

type counterRecord struct {
	Count uint64
}

// Ledger owns the per-account, per-asset balance table plus the monotonic
// operation counters and the running total of tracked native deposits.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger over the supplied storage.
func NewLedger(store Storage) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("custody: storage required")
	}
	return &Ledger{store: store}, nil
}

func balanceKey(owner [20]byte, asset Asset) []byte {
	key := append([]byte(nil), balancePrefix...)
	key = append(key, hex.EncodeToString(owner[:])...)
	key = append(key, '/')
	key = append(key, asset...)
	return key
}

// Balance returns the recorded balance for the account and asset. Accounts
// with no record hold zero.
func (l *Ledger) Balance(owner [20]byte, asset Asset) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("custody: ledger not initialised")
	}
	var record balanceRecord
	ok, err := l.store.KVGet(balanceKey(owner, asset), &record)
	if err != nil {
		return nil, fmt.Errorf("custody: load balance: %w", err)
	}
	if !ok {
		return big.NewInt(0), nil
	}
	amount, valid := new(big.Int).SetString(record.Amount, 10)
	if !valid {
		return nil, fmt.Errorf("custody: corrupt balance record %q", record.Amount)
	}
	return amount, nil
}

func (l *Ledger) putBalance(owner [20]byte, asset Asset, amount *big.Int) error {
	return l.store.KVPut(balanceKey(owner, asset), balanceRecord{Amount: amount.String()})
}

// Credit increases the account's balance by amount, bumps the deposit counter,
// and for the native asset grows the tracked deposit total. The new balance is
// returned.
func (l *Ledger) Credit(owner [20]byte, asset Asset, amount *big.Int) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("custody: ledger not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrAmountZero
	}
	balance, err := l.Balance(owner, asset)
	if err != nil {
		return nil, err
	}
	balance = balance.Add(balance, amount)
	if err := l.putBalance(owner, asset, balance); err != nil {
		return nil, fmt.Errorf("custody: persist balance: %w", err)
	}
	if err := l.bumpCounter(depositCountKey, 1); err != nil {
		return nil, err
	}
	if asset.IsNative() {
		if err := l.adjustTracked(amount); err != nil {
			return nil, err
		}
	}
	return new(big.Int).Set(balance), nil
}

// Debit reduces the account's balance by amount, bumps the withdrawal counter,
// and for the native asset shrinks the tracked deposit total. Debits larger
// than the balance are rejected.
func (l *Ledger) Debit(owner [20]byte, asset Asset, amount *big.Int) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("custody: ledger not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrAmountZero
	}
	balance, err := l.Balance(owner, asset)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientBalance, balance.String(), amount.String())
	}
	balance = balance.Sub(balance, amount)
	if err := l.putBalance(owner, asset, balance); err != nil {
		return nil, fmt.Errorf("custody: persist balance: %w", err)
	}
	if err := l.bumpCounter(withdrawCountKey, 1); err != nil {
		return nil, err
	}
	if asset.IsNative() {
		if err := l.adjustTracked(new(big.Int).Neg(amount)); err != nil {
			return nil, err
		}
	}
	return new(big.Int).Set(balance), nil
}

// revertDebit compensates a Debit whose outbound transfer failed. The amount
// is re-credited and the withdrawal counter rolled back so the failed attempt
// leaves no trace.
func (l *Ledger) revertDebit(owner [20]byte, asset Asset, amount *big.Int) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("custody: ledger not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountZero
	}
	balance, err := l.Balance(owner, asset)
	if err != nil {
		return err
	}
	balance = balance.Add(balance, amount)
	if err := l.putBalance(owner, asset, balance); err != nil {
		return fmt.Errorf("custody: persist balance: %w", err)
	}
	if err := l.bumpCounter(withdrawCountKey, -1); err != nil {
		return err
	}
	if asset.IsNative() {
		if err := l.adjustTracked(amount); err != nil {
			return err
		}
	}
	return nil
}

// Overwrite replaces the account's recorded balance without moving funds and
// returns the prior balance. For the native asset the tracked total is
// adjusted by the delta so reconciliation stays meaningful after a recovery.
func (l *Ledger) Overwrite(owner [20]byte, asset Asset, newBalance *big.Int) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("custody: ledger not initialised")
	}
	if newBalance == nil || newBalance.Sign() < 0 {
		return nil, fmt.Errorf("custody: recovered balance must not be negative")
	}
	old, err := l.Balance(owner, asset)
	if err != nil {
		return nil, err
	}
	if err := l.putBalance(owner, asset, newBalance); err != nil {
		return nil, fmt.Errorf("custody: persist balance: %w", err)
	}
	if asset.IsNative() {
		delta := new(big.Int).Sub(newBalance, old)
		if delta.Sign() != 0 {
			if err := l.adjustTracked(delta); err != nil {
				return nil, err
			}
		}
	}
	return old, nil
}

func (l *Ledger) bumpCounter(key []byte, delta int64) error {
	var record counterRecord
	if _, err := l.store.KVGet(key, &record); err != nil {
		return fmt.Errorf("custody: load counter: %w", err)
	}
	if delta < 0 && record.Count == 0 {
		return fmt.Errorf("custody: counter underflow")
	}
	record.Count = uint64(int64(record.Count) + delta)
	if err := l.store.KVPut(key, record); err != nil {
		return fmt.Errorf("custody: persist counter: %w", err)
	}
	return nil
}

func (l *Ledger) counter(key []byte) (uint64, error) {
	if l == nil || l.store == nil {
		return 0, fmt.Errorf("custody: ledger not initialised")
	}
	var record counterRecord
	if _, err := l.store.KVGet(key, &record); err != nil {
		return 0, fmt.Errorf("custody: load counter: %w", err)
	}
	return record.Count, nil
}

// DepositCount returns how many deposits the ledger has recorded.
func (l *Ledger) DepositCount() (uint64, error) {
	return l.counter(depositCountKey)
}

// WithdrawCount returns how many withdrawals the ledger has recorded.
func (l *Ledger) WithdrawCount() (uint64, error) {
	return l.counter(withdrawCountKey)
}

func (l *Ledger) adjustTracked(delta *big.Int) error {
	total, err := l.TrackedNativeTotal()
	if err != nil {
		return err
	}
	total = total.Add(total, delta)
	if total.Sign() < 0 {
		return fmt.Errorf("custody: tracked native total underflow")
	}
	if err := l.store.KVPut(nativeTrackedKey, balanceRecord{Amount: total.String()}); err != nil {
		return fmt.Errorf("custody: persist tracked total: %w", err)
	}
	return nil
}

// TrackedNativeTotal returns the sum of native balances recorded through
// deposits, withdrawals, and recoveries.
func (l *Ledger) TrackedNativeTotal() (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("custody: ledger not initialised")
	}
	var record balanceRecord
	ok, err := l.store.KVGet(nativeTrackedKey, &record)
	if err != nil {
		return nil, fmt.Errorf("custody: load tracked total: %w", err)
	}
	if !ok {
		return big.NewInt(0), nil
	}
	total, valid := new(big.Int).SetString(record.Amount, 10)
	if !valid {
		return nil, fmt.Errorf("custody: corrupt tracked total %q", record.Amount)
	}
	return total, nil
}
