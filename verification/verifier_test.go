package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"nftlend/config"
	"nftlend/native/auction"
	"nftlend/native/lending"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	tables, err := config.Default().Compile()
	if err != nil {
		t.Fatalf("compile presets: %v", err)
	}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	v, err := New(tables,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func TestReferenceVectorsPass(t *testing.T) {
	vectors, err := LoadVectors("testdata/vectors.yaml")
	if err != nil {
		t.Fatalf("load vectors: %v", err)
	}
	report, err := newTestVerifier(t).Run(context.Background(), vectors)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Checks) != len(vectors) {
		t.Fatalf("expected %d checks, got %d", len(vectors), len(report.Checks))
	}
	for _, check := range report.Checks {
		if !check.Passed {
			t.Errorf("%s failed: expected %q actual %q error %q", check.Name, check.Expected, check.Actual, check.Error)
		}
	}
	if report.ID == "" || !report.Finished.After(report.Started) {
		t.Fatalf("unexpected report header %+v", report)
	}
}

func TestMismatchIsReported(t *testing.T) {
	vectors, err := ParseVectors([]byte(`
- name: wrong
  kind: rates
  strategy: DAI
  inputs:
    utilization: 0.8 ray
  expected:
    variableBorrowRate: 0.05 ray
- name: missing-error
  kind: auction
  strategy: exp
  inputs: {start: 0, now: 10}
  expectError: invalid_time_range
- name: unknown-market
  kind: rates
  strategy: DOGE
  inputs:
    utilization: "0"
  expected:
    liquidityRate: "0"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	report, err := newTestVerifier(t).Run(context.Background(), vectors)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Failures() != 3 {
		t.Fatalf("expected 3 failures, got %+v", report.Checks)
	}
	wrong := report.Checks[0]
	if !strings.Contains(wrong.Actual, "variableBorrowRate=40000000000000000000000000") {
		t.Fatalf("unexpected actual %q", wrong.Actual)
	}
	if !strings.Contains(report.Checks[2].Error, "unknown market") {
		t.Fatalf("unexpected error %q", report.Checks[2].Error)
	}
}

func TestParseVectorsRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"unknown kind":   "- {name: a, kind: liquidation}",
		"duplicate name": "- {name: a, kind: accrual}\n- {name: a, kind: accrual}",
		"no strategy":    "- {name: a, kind: rates}",
		"unknown error":  "- {name: a, kind: accrual, expectError: boom}",
	}
	for name, doc := range cases {
		if _, err := ParseVectors([]byte(doc)); !errors.Is(err, ErrInvalidVector) {
			t.Fatalf("%s: expected ErrInvalidVector, got %v", name, err)
		}
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestVerifier(t).Run(ctx, []Vector{{Name: "a", Kind: KindAccrual}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type stubObserver struct {
	rates      lending.Rates
	multiplier *uint256.Int
	err        error
}

func (s stubObserver) ObserveRates(context.Context, config.RateMarket, lending.ReserveSnapshot) (lending.Rates, error) {
	return s.rates, s.err
}

func (s stubObserver) ObserveMultiplier(context.Context, config.AuctionMarket, auction.State) (*uint256.Int, error) {
	return s.multiplier, s.err
}

func TestRunLiveComparesObservedValues(t *testing.T) {
	v := newTestVerifier(t)
	observer := stubObserver{
		rates: lending.Rates{
			LiquidityRate:      uint256.MustFromDecimal("28800000000000000000000000"),
			VariableBorrowRate: uint256.MustFromDecimal("40000000000000000000000000"),
		},
		multiplier: uint256.MustFromDecimal("2769349039159907350"),
	}
	targets := []Target{
		{
			Kind:   KindRates,
			Market: "dai",
			Snapshot: lending.ReserveSnapshot{
				TotalVariableDebt:  uint256.NewInt(800),
				AvailableLiquidity: uint256.NewInt(200),
			},
		},
		{Kind: KindAuction, Market: "exp", Auction: auction.State{StartTimestamp: 0, CurrentTimestamp: 900}},
	}
	report, err := v.RunLive(context.Background(), observer, targets)
	if err != nil {
		t.Fatalf("run live: %v", err)
	}
	if !report.Checks[0].Passed {
		t.Fatalf("rates check failed: %+v", report.Checks[0])
	}
	// Off by one wei on chain must be flagged.
	if report.Checks[1].Passed {
		t.Fatalf("auction check should fail: %+v", report.Checks[1])
	}
	if report.Source != "live" || report.Checks[0].Name != "rates-dai-0" {
		t.Fatalf("unexpected report %+v", report)
	}

	failing := stubObserver{err: errors.New("rpc down")}
	report, err = v.RunLive(context.Background(), failing, targets[:1])
	if err != nil {
		t.Fatalf("run live: %v", err)
	}
	if report.Passed() || !strings.Contains(report.Checks[0].Error, "rpc down") {
		t.Fatalf("expected observer error, got %+v", report.Checks[0])
	}
}

func TestErrorCode(t *testing.T) {
	if got := ErrorCode(lending.ErrIndexOverflow); got != "index_overflow" {
		t.Fatalf("unexpected code %q", got)
	}
	if got := ErrorCode(errors.New("other")); got != "" {
		t.Fatalf("unexpected code %q", got)
	}
}

func TestSnapshotReserveFactorPrecedence(t *testing.T) {
	vectors, err := ParseVectors([]byte(`
- name: input-overrides-snapshot
  kind: rates
  strategy: DAI
  inputs:
    reserveFactorBps: 0
    snapshot: {totalVariableDebt: "800", availableLiquidity: "200", reserveFactorBps: 2000}
  expected:
    liquidityRate: 0.032 ray
- name: snapshot-factor
  kind: rates
  strategy: DAI
  inputs:
    snapshot: {totalVariableDebt: "800", availableLiquidity: "200", reserveFactorBps: 2000}
  expected:
    liquidityRate: 0.0256 ray
- name: market-factor
  kind: rates
  strategy: DAI
  inputs:
    snapshot: {totalVariableDebt: "800", availableLiquidity: "200"}
  expected:
    liquidityRate: 0.0288 ray
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	report, err := newTestVerifier(t).Run(context.Background(), vectors)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, check := range report.Checks {
		if !check.Passed {
			t.Errorf("%s failed: expected %q actual %q error %q", check.Name, check.Expected, check.Actual, check.Error)
		}
	}
}
