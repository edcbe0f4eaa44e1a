package verification

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftlend/config"
	"nftlend/native/auction"
	"nftlend/native/lending"
)

// Observer supplies values computed by deployed strategy contracts.
type Observer interface {
	ObserveRates(ctx context.Context, market config.RateMarket, snapshot lending.ReserveSnapshot) (lending.Rates, error)
	ObserveMultiplier(ctx context.Context, market config.AuctionMarket, state auction.State) (*uint256.Int, error)
}

// Target is one live comparison. Rates targets carry a Snapshot, auction
// targets an auction State.
type Target struct {
	Name     string
	Kind     Kind
	Market   string
	Snapshot lending.ReserveSnapshot
	Auction  auction.State
}

// RunLive compares engine output with observed values for every target.
func (v *Verifier) RunLive(ctx context.Context, observer Observer, targets []Target) (*Report, error) {
	if observer == nil {
		return nil, fmt.Errorf("verification: observer required")
	}
	ctx, span := v.tracer.Start(ctx, "verification.RunLive", trace.WithAttributes(attribute.Int("targets", len(targets))))
	defer span.End()

	report := v.newReport("live")
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if target.Name == "" {
			target.Name = fmt.Sprintf("%s-%s-%d", target.Kind, target.Market, i)
		}
		var result CheckResult
		switch target.Kind {
		case KindRates:
			result = v.checkLiveRates(ctx, observer, target)
		case KindAuction:
			result = v.checkLiveAuction(ctx, observer, target)
		default:
			result = CheckResult{Name: target.Name, Kind: target.Kind, Market: target.Market,
				Error: fmt.Sprintf("live checks do not support kind %q", target.Kind)}
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

func (v *Verifier) checkLiveRates(ctx context.Context, observer Observer, target Target) CheckResult {
	ctx, span := v.tracer.Start(ctx, "verification.LiveRates", trace.WithAttributes(attribute.String("market", target.Market)))
	defer span.End()

	result := CheckResult{Name: target.Name, Kind: KindRates, Market: target.Market}
	market, err := v.tables.Rate(target.Market)
	if err != nil {
		return failed(result, err)
	}
	result.Market = market.Symbol
	snapshot := target.Snapshot.Clone()
	if snapshot.ReserveFactor == 0 {
		snapshot.ReserveFactor = market.ReserveFactorBps
	}
	want, err := market.Strategy.CalculateInterestRates(snapshot)
	if err != nil {
		return failed(result, fmt.Errorf("engine: %w", err))
	}
	got, err := observer.ObserveRates(ctx, market, snapshot)
	if err != nil {
		return failed(result, fmt.Errorf("observe: %w", err))
	}
	result.Expected = formatFields([]field{
		{"liquidityRate", want.LiquidityRate.Dec()},
		{"variableBorrowRate", want.VariableBorrowRate.Dec()},
	})
	result.Actual = formatFields([]field{
		{"liquidityRate", got.LiquidityRate.Dec()},
		{"variableBorrowRate", got.VariableBorrowRate.Dec()},
	})
	result.Passed = want.LiquidityRate.Eq(got.LiquidityRate) && want.VariableBorrowRate.Eq(got.VariableBorrowRate)
	return result
}

func (v *Verifier) checkLiveAuction(ctx context.Context, observer Observer, target Target) CheckResult {
	ctx, span := v.tracer.Start(ctx, "verification.LiveAuction", trace.WithAttributes(attribute.String("market", target.Market)))
	defer span.End()

	result := CheckResult{Name: target.Name, Kind: KindAuction, Market: target.Market}
	market, err := v.tables.Auction(target.Market)
	if err != nil {
		return failed(result, err)
	}
	result.Market = market.Name
	want, err := market.Strategy.PriceMultiplierAt(target.Auction)
	if err != nil {
		return failed(result, fmt.Errorf("engine: %w", err))
	}
	got, err := observer.ObserveMultiplier(ctx, market, target.Auction)
	if err != nil {
		return failed(result, fmt.Errorf("observe: %w", err))
	}
	result.Expected = formatFields([]field{{"multiplier", want.Dec()}})
	result.Actual = formatFields([]field{{"multiplier", got.Dec()}})
	result.Passed = want.Eq(got)
	return result
}
