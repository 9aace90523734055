package custody

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// DefaultMaxWithdrawUSD is the fallback single-withdrawal ceiling when the
// configuration leaves it unset: 50,000 USD at oracle precision.
var DefaultMaxWithdrawUSD = new(big.Int).Mul(big.NewInt(50_000), pow10(OracleDecimals))

// Config is the operator-facing custody parameter block. Amounts are decimal
// strings so configuration files never lose precision to floats.
type Config struct {
	BankCapWei        string `toml:"bankCapWei"`
	MaxWithdrawUSD    string `toml:"maxWithdrawUsd"`
	NativePerTxCapWei string `toml:"nativePerTxCapWei"`
}

// Parameters is the parsed form consumed by the engine.
type Parameters struct {
	BankCapWei        *big.Int
	MaxWithdrawUSD    *big.Int
	NativePerTxCapWei *big.Int
}

// Normalise trims whitespace from every field in place.
func (c *Config) Normalise() {
	if c == nil {
		return
	}
	c.BankCapWei = strings.TrimSpace(c.BankCapWei)
	c.MaxWithdrawUSD = strings.TrimSpace(c.MaxWithdrawUSD)
	c.NativePerTxCapWei = strings.TrimSpace(c.NativePerTxCapWei)
}

// Parameters parses and validates the configuration. The bank cap is
// mandatory and positive; the USD ceiling falls back to the default; an unset
// per-transaction cap parses to zero, which disables it.
func (c Config) Parameters() (Parameters, error) {
	c.Normalise()
	if c.BankCapWei == "" {
		return Parameters{}, fmt.Errorf("custody: bankCapWei is required")
	}
	bankCap, err := parseScaledAmount(c.BankCapWei, 0)
	if err != nil {
		return Parameters{}, fmt.Errorf("custody: parse bankCapWei: %w", err)
	}
	if bankCap.Sign() <= 0 {
		return Parameters{}, fmt.Errorf("custody: bankCapWei must be positive")
	}
	maxUSD := new(big.Int).Set(DefaultMaxWithdrawUSD)
	if c.MaxWithdrawUSD != "" {
		maxUSD, err = parseScaledAmount(c.MaxWithdrawUSD, OracleDecimals)
		if err != nil {
			return Parameters{}, fmt.Errorf("custody: parse maxWithdrawUsd: %w", err)
		}
		if maxUSD.Sign() <= 0 {
			return Parameters{}, fmt.Errorf("custody: maxWithdrawUsd must be positive")
		}
	}
	perTxCap := big.NewInt(0)
	if c.NativePerTxCapWei != "" {
		perTxCap, err = parseScaledAmount(c.NativePerTxCapWei, 0)
		if err != nil {
			return Parameters{}, fmt.Errorf("custody: parse nativePerTxCapWei: %w", err)
		}
		if perTxCap.Sign() < 0 {
			return Parameters{}, fmt.Errorf("custody: nativePerTxCapWei must not be negative")
		}
	}
	return Parameters{
		BankCapWei:        bankCap,
		MaxWithdrawUSD:    maxUSD,
		NativePerTxCapWei: perTxCap,
	}, nil
}

// parseScaledAmount parses a decimal string, optionally in scientific
// notation, into an integer scaled by 10^decimals. Underscore separators are
// allowed. Values with more fractional digits than the scale can hold are
// rejected rather than rounded.
func parseScaledAmount(value string, decimals int) (*big.Int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if cleaned == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(cleaned, "-") {
		return nil, fmt.Errorf("amount must not be negative")
	}
	mantissa := cleaned
	exponent := 0
	if idx := strings.IndexAny(cleaned, "eE"); idx >= 0 {
		mantissa = cleaned[:idx]
		parsed, err := strconv.Atoi(cleaned[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid exponent %q", cleaned[idx+1:])
		}
		exponent = parsed
	}
	intPart := mantissa
	fracPart := ""
	if idx := strings.Index(mantissa, "."); idx >= 0 {
		intPart = mantissa[:idx]
		fracPart = mantissa[idx+1:]
	}
	digits := intPart + fracPart
	if digits == "" {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	totalExponent := exponent - len(fracPart) + decimals
	if totalExponent < 0 {
		return nil, fmt.Errorf("amount %q has too much precision", value)
	}
	if totalExponent > 0 {
		amount.Mul(amount, pow10(int64(totalExponent)))
	}
	return amount, nil
}
