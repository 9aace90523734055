package custody

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"custodia/core/events"
)

var perTxCapKey = []byte("custody/params/perTxCapWei")

type capRecord struct {
	Cap string
}

// Engine coordinates deposits, withdrawals, and recovery across the ledger,
// capacity guard, withdrawal limiter, transfer adapter, and access registry.
// Mutating operations hold the reentrancy guard for their full duration; a
// transfer hook calling back in is rejected, not queued.
type Engine struct {
	guard     *ReentrancyGuard
	ledger    *Ledger
	capacity  *CapacityGuard
	limiter   *WithdrawalLimiter
	transfers *TransferAdapter
	acl       *AccessControlRegistry
	store     Storage
	emitter   events.Emitter

	// capMu guards perTxCapWei: cap reads are served without the reentrancy
	// guard, so updates and reads need their own lock.
	capMu       sync.RWMutex
	perTxCapWei *big.Int
}

// NewEngine wires the engine's collaborators and restores the persisted
// per-transaction cap. A cap recorded by a previous run wins over the
// configured value; otherwise the configured value is persisted as the
// starting point.
func NewEngine(store Storage, ledger *Ledger, capacity *CapacityGuard, limiter *WithdrawalLimiter, transfers *TransferAdapter, acl *AccessControlRegistry, params Parameters) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("custody: storage required")
	}
	if ledger == nil || capacity == nil || limiter == nil || transfers == nil || acl == nil {
		return nil, fmt.Errorf("custody: engine collaborators required")
	}
	engine := &Engine{
		guard:     NewReentrancyGuard(),
		ledger:    ledger,
		capacity:  capacity,
		limiter:   limiter,
		transfers: transfers,
		acl:       acl,
		store:     store,
		emitter:   events.NoopEmitter{},
	}
	var record capRecord
	ok, err := store.KVGet(perTxCapKey, &record)
	if err != nil {
		return nil, fmt.Errorf("custody: load per-tx cap: %w", err)
	}
	if ok {
		cap, valid := new(big.Int).SetString(record.Cap, 10)
		if !valid {
			return nil, fmt.Errorf("custody: corrupt per-tx cap record %q", record.Cap)
		}
		engine.perTxCapWei = cap
	} else {
		cap := big.NewInt(0)
		if params.NativePerTxCapWei != nil {
			cap = new(big.Int).Set(params.NativePerTxCapWei)
		}
		if err := store.KVPut(perTxCapKey, capRecord{Cap: cap.String()}); err != nil {
			return nil, fmt.Errorf("custody: persist per-tx cap: %w", err)
		}
		engine.perTxCapWei = cap
	}
	return engine, nil
}

// SetEmitter overrides the engine's event emitter. A nil emitter restores the
// no-op default.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// Deposit receives declared value from the caller and credits the ledger.
// Native deposits require the attached value to equal the declared amount and
// are checked against the bank cap after the value has arrived; a deposit that
// would overflow the cap is refunded in full before the error is returned.
func (e *Engine) Deposit(caller [20]byte, asset string, amount, attached *big.Int) (*big.Int, error) {
	if e == nil {
		return nil, fmt.Errorf("custody: engine not initialised")
	}
	if caller == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	canonical, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	if err := e.guard.Acquire(); err != nil {
		return nil, err
	}
	defer e.guard.Release()

	received, err := e.transfers.ReceiveDeposit(caller, canonical, amount, attached)
	if err != nil {
		return nil, err
	}
	if canonical.IsNative() {
		held, err := e.transfers.Holdings()
		if err != nil {
			return nil, err
		}
		if err := e.capacity.Check(held, received); err != nil {
			if refundErr := e.transfers.Send(caller, canonical, received); refundErr != nil {
				return nil, fmt.Errorf("custody: refund after capacity rejection failed: %v (original: %w)", refundErr, err)
			}
			return nil, err
		}
	}
	newBalance, err := e.ledger.Credit(caller, canonical, received)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(events.CustodyDeposited{
		Account:    caller,
		Asset:      string(canonical),
		Amount:     new(big.Int).Set(received),
		NewBalance: new(big.Int).Set(newBalance),
	})
	return newBalance, nil
}

// DepositNative credits a plain native transfer carrying no call data. The
// attached value is both the declared and the received amount.
func (e *Engine) DepositNative(caller [20]byte, value *big.Int) (*big.Int, error) {
	return e.Deposit(caller, string(AssetNative), value, value)
}

// Withdraw debits the caller's balance and sends the value out. Balance
// sufficiency is checked before the limits so an account can never be blocked
// by limits on funds it does not have. Native withdrawals pass the USD ceiling
// and the per-transaction cap; external assets are limited only by balance. A
// failed outbound send rolls the debit back.
func (e *Engine) Withdraw(caller [20]byte, asset string, amount *big.Int) (*big.Int, error) {
	if e == nil {
		return nil, fmt.Errorf("custody: engine not initialised")
	}
	if caller == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	canonical, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	if err := e.guard.Acquire(); err != nil {
		return nil, err
	}
	defer e.guard.Release()

	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrAmountZero
	}
	balance, err := e.ledger.Balance(caller, canonical)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientBalance, balance.String(), amount.String())
	}
	var usd USDValue
	if canonical.IsNative() {
		usd, err = e.limiter.Check(amount, e.NativePerTxCap())
		if err != nil {
			return nil, err
		}
	}
	newBalance, err := e.ledger.Debit(caller, canonical, amount)
	if err != nil {
		return nil, err
	}
	if err := e.transfers.Send(caller, canonical, amount); err != nil {
		if revertErr := e.ledger.revertDebit(caller, canonical, amount); revertErr != nil {
			return nil, fmt.Errorf("custody: rollback after failed send failed: %v (original: %w)", revertErr, err)
		}
		return nil, err
	}
	e.emitter.Emit(events.CustodyWithdrawn{
		Account:    caller,
		Asset:      string(canonical),
		Amount:     new(big.Int).Set(amount),
		USDValue:   usd.String(),
		NewBalance: new(big.Int).Set(newBalance),
	})
	return newBalance, nil
}

// RecoverFunds overwrites a user's recorded balance without moving value. The
// caller must hold the manager role. The prior balance is returned.
func (e *Engine) RecoverFunds(caller, user [20]byte, asset string, newBalance *big.Int) (*big.Int, error) {
	if e == nil {
		return nil, fmt.Errorf("custody: engine not initialised")
	}
	canonical, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	if err := e.guard.Acquire(); err != nil {
		return nil, err
	}
	defer e.guard.Release()

	if err := e.acl.RequireRole(RoleManager, caller); err != nil {
		return nil, err
	}
	if user == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	old, err := e.ledger.Overwrite(user, canonical, newBalance)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(events.CustodyFundsRecovered{
		Manager:    caller,
		Account:    user,
		Asset:      string(canonical),
		OldBalance: new(big.Int).Set(old),
		NewBalance: new(big.Int).Set(newBalance),
	})
	return old, nil
}

// SetNativePerTxCap updates the per-transaction native withdrawal cap. A zero
// cap disables the check. The caller must hold the manager role.
func (e *Engine) SetNativePerTxCap(caller [20]byte, cap *big.Int) error {
	if e == nil {
		return fmt.Errorf("custody: engine not initialised")
	}
	if err := e.guard.Acquire(); err != nil {
		return err
	}
	defer e.guard.Release()

	if err := e.acl.RequireRole(RoleManager, caller); err != nil {
		return err
	}
	next := big.NewInt(0)
	if cap != nil {
		if cap.Sign() < 0 {
			return fmt.Errorf("custody: per-transaction cap must not be negative")
		}
		next = new(big.Int).Set(cap)
	}
	if err := e.store.KVPut(perTxCapKey, capRecord{Cap: next.String()}); err != nil {
		return fmt.Errorf("custody: persist per-tx cap: %w", err)
	}
	e.capMu.Lock()
	old := e.perTxCapWei
	e.perTxCapWei = next
	e.capMu.Unlock()
	e.emitter.Emit(events.CustodyPerTxCapUpdated{
		OldCap: new(big.Int).Set(old),
		NewCap: new(big.Int).Set(next),
	})
	return nil
}

// NativePerTxCap returns the active per-transaction cap. Zero means disabled.
func (e *Engine) NativePerTxCap() *big.Int {
	if e == nil {
		return big.NewInt(0)
	}
	e.capMu.RLock()
	defer e.capMu.RUnlock()
	if e.perTxCapWei == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(e.perTxCapWei)
}

// BankBalance reports the vault's current native holdings.
func (e *Engine) BankBalance() (*big.Int, error) {
	if e == nil {
		return nil, fmt.Errorf("custody: engine not initialised")
	}
	return e.transfers.Holdings()
}

// RemainingCapacity reports how much more native value the vault can accept.
func (e *Engine) RemainingCapacity() (*big.Int, error) {
	if e == nil {
		return nil, fmt.Errorf("custody: engine not initialised")
	}
	held, err := e.transfers.Holdings()
	if err != nil {
		return nil, err
	}
	return e.capacity.Remaining(held), nil
}

// Balance returns the recorded balance for the account and asset.
func (e *Engine) Balance(owner [20]byte, asset string) (*big.Int, error) {
	if e == nil {
		return nil, fmt.Errorf("custody: engine not initialised")
	}
	canonical, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	return e.ledger.Balance(owner, canonical)
}

// BalanceInAccountingUnits returns the balance rescaled to the 6-decimal
// accounting precision, truncated toward zero.
func (e *Engine) BalanceInAccountingUnits(owner [20]byte, asset string) (AccountingAmount, error) {
	balance, err := e.Balance(owner, asset)
	if err != nil {
		return AccountingAmount{}, err
	}
	return ToAccountingUnits(balance), nil
}

// DepositCount returns the total number of recorded deposits.
func (e *Engine) DepositCount() (uint64, error) {
	if e == nil {
		return 0, fmt.Errorf("custody: engine not initialised")
	}
	return e.ledger.DepositCount()
}

// WithdrawCount returns the total number of recorded withdrawals.
func (e *Engine) WithdrawCount() (uint64, error) {
	if e == nil {
		return 0, fmt.Errorf("custody: engine not initialised")
	}
	return e.ledger.WithdrawCount()
}

// Roles exposes the access registry for role administration.
func (e *Engine) Roles() *AccessControlRegistry {
	if e == nil {
		return nil
	}
	return e.acl
}

// ReconciliationReport compares the vault's native holdings against the sum
// of tracked ledger balances. Delta is holdings minus tracked; untracked
// direct transfers or recoveries show up here instead of failing operations.
type ReconciliationReport struct {
	Holdings     *big.Int
	TrackedTotal *big.Int
	Delta        *big.Int
}

// Reconcile produces the current reconciliation report.
func (e *Engine) Reconcile() (ReconciliationReport, error) {
	if e == nil {
		return ReconciliationReport{}, fmt.Errorf("custody: engine not initialised")
	}
	held, err := e.transfers.Holdings()
	if err != nil {
		return ReconciliationReport{}, err
	}
	tracked, err := e.ledger.TrackedNativeTotal()
	if err != nil {
		return ReconciliationReport{}, err
	}
	return ReconciliationReport{
		Holdings:     new(big.Int).Set(held),
		TrackedTotal: new(big.Int).Set(tracked),
		Delta:        new(big.Int).Sub(held, tracked),
	}, nil
}

// IsLimitViolation reports whether the error is a withdrawal limit rejection
// and, when it is, returns the violation detail.
func IsLimitViolation(err error) (*LimitViolation, bool) {
	var violation *LimitViolation
	if errors.As(err, &violation) {
		return violation, true
	}
	return nil, false
}
