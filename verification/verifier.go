package verification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftlend/config"
	"nftlend/native/lending"
	"nftlend/observability"
	telemetry "nftlend/observability/otel"
)

// Verifier evaluates vectors against compiled market tables. It is safe for
// concurrent use once constructed.
type Verifier struct {
	tables  *config.Tables
	logger  *slog.Logger
	metrics *observability.VerificationMetrics
	tracer  trace.Tracer
	now     func() time.Time
}

// Option customises a Verifier.
type Option func(*Verifier)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithMetrics records check outcomes in Prometheus.
func WithMetrics(m *observability.VerificationMetrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// WithClock replaces time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// New constructs a Verifier over tables.
func New(tables *config.Tables, opts ...Option) (*Verifier, error) {
	if tables == nil {
		return nil, fmt.Errorf("verification: tables required")
	}
	v := &Verifier{
		tables: tables,
		logger: slog.Default(),
		tracer: telemetry.Tracer(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Run evaluates every vector and returns the report. It stops early only when
// ctx is cancelled.
func (v *Verifier) Run(ctx context.Context, vectors []Vector) (*Report, error) {
	ctx, span := v.tracer.Start(ctx, "verification.Run", trace.WithAttributes(attribute.Int("vectors", len(vectors))))
	defer span.End()

	report := v.newReport("vectors")
	for _, vec := range vectors {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		var result CheckResult
		switch vec.Kind {
		case KindRates:
			result = v.CheckRates(ctx, vec)
		case KindAccrual:
			result = v.CheckIndex(ctx, vec)
		case KindAuction:
			result = v.CheckAuction(ctx, vec)
		default:
			result = CheckResult{Name: vec.Name, Kind: vec.Kind, Error: fmt.Sprintf("unknown kind %q", vec.Kind)}
		}
		v.record(result)
		report.Checks = append(report.Checks, result)
	}
	v.finish(report)
	if !report.Passed() {
		span.SetStatus(codes.Error, fmt.Sprintf("%d checks failed", report.Failures()))
	}
	return report, nil
}

// CheckRates evaluates a rates vector.
func (v *Verifier) CheckRates(ctx context.Context, vec Vector) CheckResult {
	_, span := v.tracer.Start(ctx, "verification.CheckRates", trace.WithAttributes(attribute.String("vector", vec.Name)))
	defer span.End()

	result := CheckResult{Name: vec.Name, Kind: KindRates, Market: vec.Strategy}
	market, err := v.tables.Rate(vec.Strategy)
	if err != nil {
		return failed(result, err)
	}
	result.Market = market.Symbol

	var (
		utilization *uint256.Int
		rates       lending.Rates
	)
	if vec.Inputs.Snapshot != nil {
		snapshot, err := vec.Inputs.Snapshot.toReserve()
		if err != nil {
			return failed(result, err)
		}
		switch {
		case vec.Inputs.ReserveFactorBps != nil:
			snapshot.ReserveFactor = *vec.Inputs.ReserveFactorBps
		case vec.Inputs.Snapshot.ReserveFactorBps == 0:
			snapshot.ReserveFactor = market.ReserveFactorBps
		}
		utilization, err = lending.CalculateUtilization(snapshot)
		if err == nil {
			rates, err = market.Strategy.CalculateInterestRates(snapshot)
		}
		if err != nil {
			return v.engineError(result, vec, err)
		}
	} else {
		utilization, err = parseInt("utilization", vec.Inputs.Utilization)
		if err != nil {
			return failed(result, err)
		}
		rf := market.ReserveFactorBps
		if vec.Inputs.ReserveFactorBps != nil {
			rf = *vec.Inputs.ReserveFactorBps
		}
		rates, err = market.Strategy.CalculateRates(utilization, rf)
		if err != nil {
			return v.engineError(result, vec, err)
		}
	}
	return compare(result, vec, []comparison{
		{"utilization", vec.Expected.Utilization, utilization},
		{"liquidityRate", vec.Expected.LiquidityRate, rates.LiquidityRate},
		{"variableBorrowRate", vec.Expected.VariableBorrowRate, rates.VariableBorrowRate},
	})
}

// CheckIndex evaluates an accrual vector: the cumulated interest factor, or
// the updated index when Inputs.Index is set.
func (v *Verifier) CheckIndex(ctx context.Context, vec Vector) CheckResult {
	_, span := v.tracer.Start(ctx, "verification.CheckIndex", trace.WithAttributes(attribute.String("vector", vec.Name)))
	defer span.End()

	result := CheckResult{Name: vec.Name, Kind: KindAccrual, Market: vec.Strategy}
	rate, err := parseInt("rate", vec.Inputs.Rate)
	if err != nil {
		return failed(result, err)
	}
	mode := lending.InterestModeCompounded
	if vec.Inputs.Mode != "" {
		if mode, err = lending.ParseInterestMode(vec.Inputs.Mode); err != nil {
			return failed(result, err)
		}
	}
	var got *uint256.Int
	if vec.Inputs.Index == "" {
		got, err = lending.CumulatedInterest(rate, vec.Inputs.Dt, mode)
	} else {
		var previous *uint256.Int
		if previous, err = parseInt("index", vec.Inputs.Index); err != nil {
			return failed(result, err)
		}
		got, err = lending.UpdateIndex(previous, rate, vec.Inputs.Dt, mode)
	}
	if err != nil {
		return v.engineError(result, vec, err)
	}
	return compare(result, vec, []comparison{{"index", vec.Expected.Index, got}})
}

// CheckAuction evaluates an auction vector.
func (v *Verifier) CheckAuction(ctx context.Context, vec Vector) CheckResult {
	_, span := v.tracer.Start(ctx, "verification.CheckAuction", trace.WithAttributes(attribute.String("vector", vec.Name)))
	defer span.End()

	result := CheckResult{Name: vec.Name, Kind: KindAuction, Market: vec.Strategy}
	market, err := v.tables.Auction(vec.Strategy)
	if err != nil {
		return failed(result, err)
	}
	result.Market = market.Name
	got, err := market.Strategy.PriceMultiplier(vec.Inputs.Start, vec.Inputs.Now)
	if err != nil {
		return v.engineError(result, vec, err)
	}
	return compare(result, vec, []comparison{{"multiplier", vec.Expected.Multiplier, got}})
}

func (v *Verifier) newReport(source string) *Report {
	return &Report{
		ID:      uuid.NewString(),
		Network: v.tables.Network,
		Source:  source,
		Started: v.now().UTC(),
	}
}

func (v *Verifier) finish(report *Report) {
	report.Finished = v.now().UTC()
	v.metrics.ObserveRun(report.Finished.Sub(report.Started))
	level := slog.LevelInfo
	if !report.Passed() {
		level = slog.LevelWarn
	}
	v.logger.Log(context.Background(), level, "verification run complete",
		slog.String("report_id", report.ID),
		slog.String("source", report.Source),
		slog.Int("checks", len(report.Checks)),
		slog.Int("failures", report.Failures()))
}

func (v *Verifier) record(result CheckResult) {
	v.metrics.RecordCheck(string(result.Kind), result.Market, result.Passed)
	if !result.Passed {
		v.logger.Warn("verification mismatch",
			slog.String("check", result.Name),
			slog.String("market", result.Market),
			slog.String("expected", result.Expected),
			slog.String("actual", result.Actual),
			slog.String("error", result.Error))
	}
}

// engineError turns an engine failure into a passing check when the vector
// declared it.
func (v *Verifier) engineError(result CheckResult, vec Vector, err error) CheckResult {
	code := ErrorCode(err)
	result.Actual = "error=" + code
	if vec.ExpectError != "" {
		result.Expected = "error=" + vec.ExpectError
		if code == vec.ExpectError {
			result.Passed = true
			return result
		}
	}
	result.Error = err.Error()
	return result
}

type comparison struct {
	name     string
	expected string
	actual   *uint256.Int
}

func compare(result CheckResult, vec Vector, comparisons []comparison) CheckResult {
	if vec.ExpectError != "" {
		result.Expected = "error=" + vec.ExpectError
		result.Actual = "ok"
		result.Error = "expected an error, engine succeeded"
		return result
	}
	var expected, actual []field
	passed := true
	for _, c := range comparisons {
		if c.expected == "" {
			continue
		}
		want, err := parseInt(c.name, c.expected)
		if err != nil {
			return failed(result, err)
		}
		expected = append(expected, field{c.name, want.Dec()})
		actual = append(actual, field{c.name, c.actual.Dec()})
		if !want.Eq(c.actual) {
			passed = false
		}
	}
	if len(expected) == 0 {
		return failed(result, fmt.Errorf("%w: %s: nothing to compare", ErrInvalidVector, vec.Name))
	}
	result.Expected = formatFields(expected)
	result.Actual = formatFields(actual)
	result.Passed = passed
	return result
}

func failed(result CheckResult, err error) CheckResult {
	result.Passed = false
	result.Error = err.Error()
	return result
}
