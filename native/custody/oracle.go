package custody

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RoundData is one observation fetched from an external price feed. Readings
// are transient: the adapter fetches a fresh round on every valuation and
// never persists the result.
type RoundData struct {
	RoundID         uint64
	Price           *big.Int
	StartedAt       int64
	UpdatedAt       int64
	AnsweredInRound uint64
	Decimals        uint8
}

// PriceFeed resolves the latest round from an external oracle.
type PriceFeed interface {
	LatestRound() (RoundData, error)
}

// OracleAdapter validates feed rounds before any price is trusted. All checks
// fail closed: a bad reading aborts the enclosing withdrawal with no state
// change, never a fallback to a stale or default price.
type OracleAdapter struct {
	feed PriceFeed
}

// NewOracleAdapter constructs an adapter bound to the supplied feed.
func NewOracleAdapter(feed PriceFeed) (*OracleAdapter, error) {
	if feed == nil {
		return nil, fmt.Errorf("custody: price feed required")
	}
	return &OracleAdapter{feed: feed}, nil
}

// LatestPrice fetches the freshest round and validates it. Validation order:
// positive price, answered-in-round not behind the round id, then the expected
// decimal precision.
func (o *OracleAdapter) LatestPrice() (*big.Int, error) {
	if o == nil || o.feed == nil {
		return nil, fmt.Errorf("custody: oracle adapter not initialised")
	}
	round, err := o.feed.LatestRound()
	if err != nil {
		return nil, fmt.Errorf("custody: fetch oracle round: %w", err)
	}
	if round.Price == nil || round.Price.Sign() <= 0 {
		return nil, ErrInvalidOraclePrice
	}
	if round.AnsweredInRound < round.RoundID {
		return nil, ErrStaleOracleData
	}
	if round.Decimals != OracleDecimals {
		return nil, ErrInvalidOracleDecimals
	}
	return new(big.Int).Set(round.Price), nil
}

// ConvertToUSD values the supplied wei amount at the latest validated price.
// The result carries the oracle's 8-decimal precision. Pure arithmetic over
// the validated price; no side effects.
func (o *OracleAdapter) ConvertToUSD(amountWei *big.Int) (USDValue, error) {
	if amountWei == nil || amountWei.Sign() < 0 {
		return USDValue{}, fmt.Errorf("custody: amount must not be negative")
	}
	price, err := o.LatestPrice()
	if err != nil {
		return USDValue{}, err
	}
	value := new(big.Int).Mul(amountWei, price)
	value.Quo(value, nativeUnit)
	return NewUSDValue(value), nil
}

// ManualFeed is an operator-settable feed used in tests and as the price
// source when no upstream endpoint is configured.
type ManualFeed struct {
	mu    sync.RWMutex
	round RoundData
	set   bool
}

// NewManualFeed constructs a feed with no recorded round.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{}
}

// SetRound records the round returned by subsequent LatestRound calls.
func (f *ManualFeed) SetRound(round RoundData) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.round = round
	if round.Price != nil {
		f.round.Price = new(big.Int).Set(round.Price)
	}
	f.set = true
	f.mu.Unlock()
}

// LatestRound returns the recorded round or an error when none has been set.
func (f *ManualFeed) LatestRound() (RoundData, error) {
	if f == nil {
		return RoundData{}, fmt.Errorf("custody: manual feed not initialised")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.set {
		return RoundData{}, fmt.Errorf("custody: no oracle round recorded")
	}
	round := f.round
	if round.Price != nil {
		round.Price = new(big.Int).Set(round.Price)
	}
	return round, nil
}

// HTTPFeed fetches rounds from a JSON endpoint exposing the latest oracle
// observation at GET <baseURL>/latest.
type HTTPFeed struct {
	client  *http.Client
	baseURL string
}

// NewHTTPFeed constructs a feed for the given endpoint. A nil client falls
// back to a default with a 10 second timeout.
func NewHTTPFeed(client *http.Client, baseURL string) *HTTPFeed {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFeed{client: client, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

type httpRoundPayload struct {
	RoundID         uint64 `json:"roundId"`
	Price           string `json:"price"`
	StartedAt       int64  `json:"startedAt"`
	UpdatedAt       int64  `json:"updatedAt"`
	AnsweredInRound uint64 `json:"answeredInRound"`
	Decimals        uint8  `json:"decimals"`
}

// LatestRound fetches and decodes the latest observation from the endpoint.
func (f *HTTPFeed) LatestRound() (RoundData, error) {
	if f == nil || f.baseURL == "" {
		return RoundData{}, fmt.Errorf("custody: http feed not configured")
	}
	resp, err := f.client.Get(f.baseURL + "/latest")
	if err != nil {
		return RoundData{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RoundData{}, fmt.Errorf("custody: oracle endpoint returned status %d", resp.StatusCode)
	}
	var payload httpRoundPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return RoundData{}, err
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(payload.Price), 10)
	if !ok {
		return RoundData{}, fmt.Errorf("custody: invalid oracle price %q", payload.Price)
	}
	return RoundData{
		RoundID:         payload.RoundID,
		Price:           price,
		StartedAt:       payload.StartedAt,
		UpdatedAt:       payload.UpdatedAt,
		AnsweredInRound: payload.AnsweredInRound,
		Decimals:        payload.Decimals,
	}, nil
}
