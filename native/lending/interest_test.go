package lending

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"

	"nftlend/native/wadray"
)

func mustRay(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := wadray.ParseRay(s)
	if err != nil {
		t.Fatalf("parse ray %q: %v", s, err)
	}
	return v
}

func daiStrategy(t *testing.T) *RateStrategy {
	t.Helper()
	s, err := NewRateStrategy(mustRay(t, "0.8"), mustRay(t, "0"), mustRay(t, "0.04"), mustRay(t, "0.75"))
	if err != nil {
		t.Fatalf("new strategy: %v", err)
	}
	return s
}

func TestNewRateStrategyRejectsOptimalOutOfRange(t *testing.T) {
	for _, optimal := range []string{"0", "1", "1.5"} {
		_, err := NewRateStrategy(mustRay(t, optimal), mustRay(t, "0"), mustRay(t, "0.04"), mustRay(t, "0.75"))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("optimal %s: expected ErrInvalidConfig, got %v", optimal, err)
		}
	}
}

func TestCalculateRatesAtKnownUtilisation(t *testing.T) {
	s := daiStrategy(t)
	cases := []struct {
		utilization string
		borrow      string
		liquidity   string
	}{
		{utilization: "0.8", borrow: "0.04", liquidity: "0.0288"},
		{utilization: "1", borrow: "0.79", liquidity: "0.711"},
		{utilization: "0.4", borrow: "0.02", liquidity: "0.0072"},
		{utilization: "0.9", borrow: "0.415", liquidity: "0.33615"},
	}
	for _, tc := range cases {
		rates, err := s.CalculateRates(mustRay(t, tc.utilization), 1000)
		if err != nil {
			t.Fatalf("utilisation %s: %v", tc.utilization, err)
		}
		if want := mustRay(t, tc.borrow); !rates.VariableBorrowRate.Eq(want) {
			t.Fatalf("utilisation %s: borrow rate got %s want %s", tc.utilization, rates.VariableBorrowRate.Dec(), want.Dec())
		}
		if want := mustRay(t, tc.liquidity); !rates.LiquidityRate.Eq(want) {
			t.Fatalf("utilisation %s: liquidity rate got %s want %s", tc.utilization, rates.LiquidityRate.Dec(), want.Dec())
		}
	}
}

func TestCalculateRatesZeroUtilisation(t *testing.T) {
	s, err := NewRateStrategy(mustRay(t, "0.65"), mustRay(t, "0.02"), mustRay(t, "0.07"), mustRay(t, "1"))
	if err != nil {
		t.Fatalf("new strategy: %v", err)
	}
	rates, err := s.CalculateRates(new(uint256.Int), 2000)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !rates.LiquidityRate.IsZero() {
		t.Fatalf("expected zero liquidity rate, got %s", rates.LiquidityRate.Dec())
	}
	if !rates.VariableBorrowRate.Eq(mustRay(t, "0.02")) {
		t.Fatalf("expected base rate, got %s", rates.VariableBorrowRate.Dec())
	}
}

func TestCalculateRatesContinuousAtKink(t *testing.T) {
	s := daiStrategy(t)
	below, err := s.variableBorrowRate(mustRay(t, "0.8"))
	if err != nil {
		t.Fatalf("below: %v", err)
	}
	// The upper branch evaluated at the kink: base + slope1 + slope2*0.
	above, err := wadray.Add(s.baseVariableBorrowRate, s.variableRateSlope1)
	if err != nil {
		t.Fatalf("above: %v", err)
	}
	if !below.Eq(above) {
		t.Fatalf("discontinuity at kink: %s vs %s", below.Dec(), above.Dec())
	}
}

func TestCalculateRatesMonotonic(t *testing.T) {
	s := daiStrategy(t)
	rng := rand.New(rand.NewSource(7))
	ray := wadray.Ray()
	prev := new(uint256.Int)
	step := new(uint256.Int).Div(ray, uint256.NewInt(500))
	for u := new(uint256.Int); !u.Gt(ray); u.Add(u, step) {
		jitter := uint256.NewInt(uint64(rng.Int63n(1_000_000)))
		probe := new(uint256.Int).Add(u, jitter)
		if probe.Gt(ray) {
			probe.Set(ray)
		}
		rates, err := s.CalculateRates(probe, uint64(rng.Intn(10_001)))
		if err != nil {
			t.Fatalf("utilisation %s: %v", probe.Dec(), err)
		}
		if rates.VariableBorrowRate.Lt(prev) {
			t.Fatalf("borrow rate decreased at %s: %s < %s", probe.Dec(), rates.VariableBorrowRate.Dec(), prev.Dec())
		}
		prev = rates.VariableBorrowRate
	}
}

func TestCalculateRatesValidation(t *testing.T) {
	s := daiStrategy(t)
	if _, err := s.CalculateRates(mustRay(t, "0.5"), 10_001); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for reserve factor, got %v", err)
	}
	if _, err := s.CalculateRates(mustRay(t, "1.01"), 1000); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for utilisation, got %v", err)
	}
	if _, err := s.CalculateRates(mustRay(t, "1"), 10_000); err != nil {
		t.Fatalf("full reserve factor must be accepted: %v", err)
	}
}

func TestCalculateUtilization(t *testing.T) {
	wei := func(v uint64) *uint256.Int { return uint256.NewInt(v) }
	util, err := CalculateUtilization(ReserveSnapshot{TotalVariableDebt: wei(800), AvailableLiquidity: wei(200)})
	if err != nil {
		t.Fatalf("utilisation: %v", err)
	}
	if !util.Eq(mustRay(t, "0.8")) {
		t.Fatalf("unexpected utilisation %s", util.Dec())
	}

	e18 := uint256.NewInt(1e18)
	snapshot := ReserveSnapshot{
		TotalVariableDebt:  new(uint256.Int).Mul(uint256.NewInt(3), e18),
		AvailableLiquidity: new(uint256.Int).Mul(uint256.NewInt(7), e18),
		LiquidityAdded:     uint256.NewInt(5e17),
		LiquidityTaken:     new(uint256.Int).Set(e18),
	}
	util, err = CalculateUtilization(snapshot)
	if err != nil {
		t.Fatalf("utilisation with flows: %v", err)
	}
	if want := uint256.MustFromDecimal("315789473684210526315789474"); !util.Eq(want) {
		t.Fatalf("unexpected utilisation %s want %s", util.Dec(), want.Dec())
	}

	util, err = CalculateUtilization(ReserveSnapshot{AvailableLiquidity: wei(1000)})
	if err != nil || !util.IsZero() {
		t.Fatalf("expected zero utilisation without debt, got %v %v", util, err)
	}

	_, err = CalculateUtilization(ReserveSnapshot{TotalVariableDebt: wei(1), AvailableLiquidity: wei(1), LiquidityTaken: wei(2)})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig when taken exceeds available, got %v", err)
	}
}

func TestCalculateInterestRatesFromSnapshot(t *testing.T) {
	s := daiStrategy(t)
	rates, err := s.CalculateInterestRates(ReserveSnapshot{
		TotalVariableDebt:  uint256.NewInt(800),
		AvailableLiquidity: uint256.NewInt(200),
		ReserveFactor:      1000,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !rates.VariableBorrowRate.Eq(mustRay(t, "0.04")) || !rates.LiquidityRate.Eq(mustRay(t, "0.0288")) {
		t.Fatalf("unexpected rates %+v", rates)
	}
}
