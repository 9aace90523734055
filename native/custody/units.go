package custody

import "math/big"

// Decimal precisions used across the custody engine. Native amounts are wei at
// 18 decimals, oracle prices and USD valuations carry 8 decimals, and the
// accounting view rescales balances to 6 decimals.
const (
	NativeDecimals     = 18
	OracleDecimals     = 8
	AccountingDecimals = 6
)

var (
	nativeUnit     = pow10(NativeDecimals)
	accountingUnit = pow10(NativeDecimals - AccountingDecimals)
)

func pow10(exp int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
}

// USDValue is a USD amount at the oracle's 8-decimal precision. The wrapper
// keeps USD figures from being mixed into wei arithmetic by accident.
type USDValue struct {
	amount *big.Int
}

// NewUSDValue wraps the supplied 8-decimal integer amount in a defensive copy.
func NewUSDValue(amount *big.Int) USDValue {
	if amount == nil {
		return USDValue{amount: big.NewInt(0)}
	}
	return USDValue{amount: new(big.Int).Set(amount)}
}

// BigInt returns a defensive copy of the underlying 8-decimal integer.
func (v USDValue) BigInt() *big.Int {
	if v.amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v.amount)
}

// Cmp compares two USD values like big.Int.Cmp.
func (v USDValue) Cmp(other USDValue) int {
	return v.BigInt().Cmp(other.BigInt())
}

// String renders the value as a decimal USD figure.
func (v USDValue) String() string {
	return formatScaled(v.amount, OracleDecimals)
}

// AccountingAmount is a balance rescaled to the fixed 6-decimal accounting
// precision.
type AccountingAmount struct {
	amount *big.Int
}

// BigInt returns a defensive copy of the underlying 6-decimal integer.
func (v AccountingAmount) BigInt() *big.Int {
	if v.amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v.amount)
}

// String renders the amount as a decimal figure at accounting precision.
func (v AccountingAmount) String() string {
	return formatScaled(v.amount, AccountingDecimals)
}

// ToAccountingUnits rescales an 18-decimal balance down to the accounting
// precision, truncating toward zero.
func ToAccountingUnits(amount *big.Int) AccountingAmount {
	if amount == nil {
		return AccountingAmount{amount: big.NewInt(0)}
	}
	return AccountingAmount{amount: new(big.Int).Quo(amount, accountingUnit)}
}

func formatScaled(amount *big.Int, decimals int64) string {
	if amount == nil {
		amount = big.NewInt(0)
	}
	rat := new(big.Rat).SetFrac(amount, pow10(decimals))
	return rat.FloatString(int(decimals))
}
