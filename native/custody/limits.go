package custody

import (
	"fmt"
	"math/big"
)

// LimitCode names which withdrawal limit a violation tripped.
type LimitCode string

const (
	// LimitUSDCeiling is the oracle-valued USD ceiling on a single withdrawal.
	LimitUSDCeiling LimitCode = "usd_ceiling"
	// LimitPerTxCap is the optional native-denominated per-transaction cap.
	LimitPerTxCap LimitCode = "per_tx_cap"
)

// LimitViolation describes a rejected withdrawal together with the limit and
// the value that breached it. It unwraps to ErrWithdrawLimitExceeded so
// callers can match the class with errors.Is while keeping the detail.
type LimitViolation struct {
	Code    LimitCode
	Message string
	Limit   *big.Int
	Current *big.Int
}

func (v *LimitViolation) Error() string {
	return fmt.Sprintf("custody: %s (limit %s, requested %s)", v.Message, bigLimitString(v.Limit), bigLimitString(v.Current))
}

// Unwrap lets errors.Is treat every violation as ErrWithdrawLimitExceeded.
func (v *LimitViolation) Unwrap() error {
	return ErrWithdrawLimitExceeded
}

func bigLimitString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

// WithdrawalLimiter enforces the native withdrawal limits. The USD ceiling is
// always active; the per-transaction native cap only applies when the engine
// passes a positive cap.
type WithdrawalLimiter struct {
	oracle         *OracleAdapter
	maxWithdrawUSD *big.Int
}

// NewWithdrawalLimiter constructs a limiter with the supplied USD ceiling
// expressed at oracle precision.
func NewWithdrawalLimiter(oracle *OracleAdapter, maxWithdrawUSD *big.Int) (*WithdrawalLimiter, error) {
	if oracle == nil {
		return nil, fmt.Errorf("custody: oracle adapter required")
	}
	if maxWithdrawUSD == nil || maxWithdrawUSD.Sign() <= 0 {
		return nil, fmt.Errorf("custody: max withdrawal ceiling must be positive")
	}
	return &WithdrawalLimiter{
		oracle:         oracle,
		maxWithdrawUSD: new(big.Int).Set(maxWithdrawUSD),
	}, nil
}

// MaxWithdrawUSD returns the configured ceiling.
func (l *WithdrawalLimiter) MaxWithdrawUSD() USDValue {
	if l == nil {
		return NewUSDValue(nil)
	}
	return NewUSDValue(l.maxWithdrawUSD)
}

// Check validates a native withdrawal against the USD ceiling and, when
// positive, the per-transaction cap. The USD valuation is returned so the
// engine can record it without a second oracle fetch. Any oracle failure
// rejects the withdrawal.
func (l *WithdrawalLimiter) Check(amountWei, perTxCapWei *big.Int) (USDValue, error) {
	if l == nil || l.oracle == nil {
		return USDValue{}, fmt.Errorf("custody: withdrawal limiter not initialised")
	}
	if amountWei == nil || amountWei.Sign() <= 0 {
		return USDValue{}, ErrAmountZero
	}
	usd, err := l.oracle.ConvertToUSD(amountWei)
	if err != nil {
		return USDValue{}, err
	}
	if usd.BigInt().Cmp(l.maxWithdrawUSD) > 0 {
		return USDValue{}, &LimitViolation{
			Code:    LimitUSDCeiling,
			Message: "withdrawal exceeds USD ceiling",
			Limit:   new(big.Int).Set(l.maxWithdrawUSD),
			Current: usd.BigInt(),
		}
	}
	if perTxCapWei != nil && perTxCapWei.Sign() > 0 && amountWei.Cmp(perTxCapWei) > 0 {
		return USDValue{}, &LimitViolation{
			Code:    LimitPerTxCap,
			Message: "withdrawal exceeds per-transaction cap",
			Limit:   new(big.Int).Set(perTxCapWei),
			Current: new(big.Int).Set(amountWei),
		}
	}
	return usd, nil
}
