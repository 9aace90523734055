package custody

import (
	"errors"
	"math/big"
	"testing"
)

func testLimiter(t *testing.T, priceUSD int64, ceilingUSD int64) *WithdrawalLimiter {
	t.Helper()
	feed := NewManualFeed()
	feed.SetRound(healthyRound(priceUSD * 100_000_000))
	adapter, err := NewOracleAdapter(feed)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	ceiling := new(big.Int).Mul(big.NewInt(ceilingUSD), pow10(OracleDecimals))
	limiter, err := NewWithdrawalLimiter(adapter, ceiling)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter
}

func TestWithdrawalLimiterExactCeilingPasses(t *testing.T) {
	// 2000 USD per unit, 50k ceiling: exactly 25 units is allowed.
	limiter := testLimiter(t, 2000, 50_000)
	amount := new(big.Int).Mul(big.NewInt(25), nativeUnit)
	usd, err := limiter.Check(amount, nil)
	if err != nil {
		t.Fatalf("check at ceiling: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(50_000), pow10(OracleDecimals))
	if usd.BigInt().Cmp(want) != 0 {
		t.Fatalf("usd = %s, want %s", usd.BigInt(), want)
	}
}

func TestWithdrawalLimiterOverCeilingRejected(t *testing.T) {
	limiter := testLimiter(t, 2000, 50_000)
	amount := new(big.Int).Mul(big.NewInt(25), nativeUnit)
	amount.Add(amount, big.NewInt(1))
	_, err := limiter.Check(amount, nil)
	if !errors.Is(err, ErrWithdrawLimitExceeded) {
		t.Fatalf("check error = %v, want ErrWithdrawLimitExceeded", err)
	}
	violation, ok := IsLimitViolation(err)
	if !ok {
		t.Fatalf("expected limit violation detail")
	}
	if violation.Code != LimitUSDCeiling {
		t.Fatalf("violation code = %s, want %s", violation.Code, LimitUSDCeiling)
	}
}

func TestWithdrawalLimiterPerTxCap(t *testing.T) {
	limiter := testLimiter(t, 1, 1_000_000)
	cap := new(big.Int).Mul(big.NewInt(10), nativeUnit)
	within := new(big.Int).Set(cap)
	if _, err := limiter.Check(within, cap); err != nil {
		t.Fatalf("check at cap: %v", err)
	}
	over := new(big.Int).Add(cap, big.NewInt(1))
	_, err := limiter.Check(over, cap)
	if !errors.Is(err, ErrWithdrawLimitExceeded) {
		t.Fatalf("check error = %v, want ErrWithdrawLimitExceeded", err)
	}
	violation, ok := IsLimitViolation(err)
	if !ok || violation.Code != LimitPerTxCap {
		t.Fatalf("violation = %+v, want per-tx cap code", violation)
	}
}

func TestWithdrawalLimiterZeroCapDisablesCheck(t *testing.T) {
	limiter := testLimiter(t, 1, 1_000_000)
	amount := new(big.Int).Mul(big.NewInt(100), nativeUnit)
	if _, err := limiter.Check(amount, big.NewInt(0)); err != nil {
		t.Fatalf("check with zero cap: %v", err)
	}
	if _, err := limiter.Check(amount, nil); err != nil {
		t.Fatalf("check with nil cap: %v", err)
	}
}

func TestWithdrawalLimiterUSDCheckedBeforePerTxCap(t *testing.T) {
	// An amount over both limits reports the USD ceiling first.
	limiter := testLimiter(t, 2000, 50_000)
	cap := new(big.Int).Set(nativeUnit)
	amount := new(big.Int).Mul(big.NewInt(30), nativeUnit)
	_, err := limiter.Check(amount, cap)
	violation, ok := IsLimitViolation(err)
	if !ok || violation.Code != LimitUSDCeiling {
		t.Fatalf("violation = %+v, want usd ceiling first", violation)
	}
}

func TestWithdrawalLimiterOracleFailureRejects(t *testing.T) {
	feed := NewManualFeed()
	round := healthyRound(200_000_000_000)
	round.AnsweredInRound = round.RoundID - 1
	feed.SetRound(round)
	adapter, _ := NewOracleAdapter(feed)
	limiter, _ := NewWithdrawalLimiter(adapter, DefaultMaxWithdrawUSD)
	if _, err := limiter.Check(big.NewInt(1), nil); !errors.Is(err, ErrStaleOracleData) {
		t.Fatalf("check error = %v, want ErrStaleOracleData", err)
	}
}
