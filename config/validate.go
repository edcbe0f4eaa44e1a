package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nftlend/native/auction"
	"nftlend/native/lending"
	"nftlend/native/wadray"
)

// ErrUnknownMarket is returned when a symbol or auction name has no table entry.
var ErrUnknownMarket = errors.New("config: unknown market")

// RateMarket is a compiled rate strategy together with its reserve factor.
type RateMarket struct {
	Symbol           string
	Strategy         *lending.RateStrategy
	ReserveFactorBps uint64
	Address          *common.Address
	Reserve          common.Address
}

// AuctionMarket is a compiled auction curve.
type AuctionMarket struct {
	Name     string
	Strategy *auction.Strategy
	Address  *common.Address
}

// Tables holds the constructed strategies keyed by symbol and auction name.
// Tables is read only after Compile and safe for concurrent use.
type Tables struct {
	Network  string
	rates    map[string]RateMarket
	auctions map[string]AuctionMarket
}

// Validate constructs every strategy once and reports the first failure.
func (m *Markets) Validate() error {
	_, err := m.Compile()
	return err
}

// Compile parses and constructs every configured strategy.
func (m *Markets) Compile() (*Tables, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil markets", lending.ErrInvalidConfig)
	}
	t := &Tables{
		Network:  m.Network,
		rates:    make(map[string]RateMarket, len(m.RateStrategies)),
		auctions: make(map[string]AuctionMarket, len(m.AuctionStrategies)),
	}
	for symbol, cfg := range m.RateStrategies {
		market, err := cfg.build(normalizeSymbol(symbol))
		if err != nil {
			return nil, fmt.Errorf("rate strategy %s: %w", symbol, err)
		}
		t.rates[market.Symbol] = market
	}
	for name, cfg := range m.AuctionStrategies {
		market, err := cfg.build(normalizeName(name))
		if err != nil {
			return nil, fmt.Errorf("auction strategy %s: %w", name, err)
		}
		t.auctions[market.Name] = market
	}
	if m.Service.RateLimitPerSecond < 0 || m.Service.RateLimitBurst < 0 {
		return nil, fmt.Errorf("%w: service rate limit must not be negative", lending.ErrInvalidConfig)
	}
	return t, nil
}

func (r RateStrategy) build(symbol string) (RateMarket, error) {
	values := make([]*uint256.Int, 0, 4)
	for _, field := range []struct{ name, value string }{
		{"OptimalUsageRatio", r.OptimalUsageRatio},
		{"BaseVariableBorrowRate", r.BaseVariableBorrowRate},
		{"VariableRateSlope1", r.VariableRateSlope1},
		{"VariableRateSlope2", r.VariableRateSlope2},
	} {
		v, err := wadray.ParseRay(field.value)
		if err != nil {
			return RateMarket{}, fmt.Errorf("%s: %w", field.name, err)
		}
		values = append(values, v)
	}
	if r.ReserveFactorBps > wadray.PercentageFactor {
		return RateMarket{}, fmt.Errorf("%w: reserve factor %d exceeds %d bps", lending.ErrInvalidConfig, r.ReserveFactorBps, wadray.PercentageFactor)
	}
	strategy, err := lending.NewRateStrategy(values[0], values[1], values[2], values[3])
	if err != nil {
		return RateMarket{}, err
	}
	addr, err := parseAddress(r.Address)
	if err != nil {
		return RateMarket{}, err
	}
	market := RateMarket{Symbol: symbol, Strategy: strategy, ReserveFactorBps: r.ReserveFactorBps, Address: addr}
	reserve, err := parseAddress(r.Reserve)
	if err != nil {
		return RateMarket{}, err
	}
	if reserve != nil {
		market.Reserve = *reserve
	}
	return market, nil
}

func (a AuctionStrategy) build(name string) (AuctionMarket, error) {
	params := auction.Params{TickLength: a.TickLength}
	for _, field := range []struct {
		name  string
		value string
		dst   **uint256.Int
	}{
		{"MaxPriceMultiplier", a.MaxPriceMultiplier, &params.MaxPriceMultiplier},
		{"MinExpPriceMultiplier", a.MinExpPriceMultiplier, &params.MinExpPriceMultiplier},
		{"MinPriceMultiplier", a.MinPriceMultiplier, &params.MinPriceMultiplier},
		{"StepLinear", a.StepLinear, &params.StepLinear},
		{"StepExp", a.StepExp, &params.StepExp},
	} {
		value := field.value
		if field.name == "StepExp" && strings.TrimSpace(value) == "" {
			value = "0"
		}
		v, err := wadray.ParseWad(value)
		if err != nil {
			return AuctionMarket{}, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.dst = v
	}
	strategy, err := auction.NewStrategy(params)
	if err != nil {
		return AuctionMarket{}, err
	}
	addr, err := parseAddress(a.Address)
	if err != nil {
		return AuctionMarket{}, err
	}
	return AuctionMarket{Name: name, Strategy: strategy, Address: addr}, nil
}

func parseAddress(raw string) (*common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	if !common.IsHexAddress(trimmed) {
		return nil, fmt.Errorf("%w: invalid contract address %q", lending.ErrInvalidConfig, raw)
	}
	addr := common.HexToAddress(trimmed)
	return &addr, nil
}

// Rate returns the rate market for symbol.
func (t *Tables) Rate(symbol string) (RateMarket, error) {
	market, ok := t.rates[normalizeSymbol(symbol)]
	if !ok {
		return RateMarket{}, fmt.Errorf("%w: rate strategy %q", ErrUnknownMarket, symbol)
	}
	return market, nil
}

// Auction returns the auction curve registered under name.
func (t *Tables) Auction(name string) (AuctionMarket, error) {
	market, ok := t.auctions[normalizeName(name)]
	if !ok {
		return AuctionMarket{}, fmt.Errorf("%w: auction strategy %q", ErrUnknownMarket, name)
	}
	return market, nil
}

// Symbols lists the configured rate markets in sorted order.
func (t *Tables) Symbols() []string {
	out := make([]string, 0, len(t.rates))
	for symbol := range t.rates {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// AuctionNames lists the configured auction curves in sorted order.
func (t *Tables) AuctionNames() []string {
	out := make([]string, 0, len(t.auctions))
	for name := range t.auctions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
