package auction

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	nativecommon "nftlend/native/common"
	"nftlend/native/wadray"
)

// MaxExponentialTicks bounds the exponential phase so the per-tick decay table
// stays small. Auctions are time boxed; curves that would decay for longer are
// rejected at construction.
const MaxExponentialTicks = 10_000

var (
	ErrInvalidConfig    = nativecommon.ErrInvalidConfig
	ErrInvalidTimeRange = nativecommon.ErrInvalidTimeRange
)

// Params holds the wad-scaled parameters of an auction curve.
type Params struct {
	MaxPriceMultiplier    *uint256.Int
	MinExpPriceMultiplier *uint256.Int
	MinPriceMultiplier    *uint256.Int
	StepLinear            *uint256.Int
	StepExp               *uint256.Int
	// TickLength is the quantisation step in seconds.
	TickLength uint64
}

// State is the caller-supplied auction clock.
type State struct {
	StartTimestamp   uint64
	CurrentTimestamp uint64
}

// Strategy prices NFT collateral during a liquidation auction. The multiplier
// starts at MaxPriceMultiplier, decays exponentially tick by tick until it
// reaches MinExpPriceMultiplier, then falls linearly by StepLinear per tick
// and finally rests at MinPriceMultiplier.
//
// A Strategy is immutable and safe for concurrent use.
type Strategy struct {
	params Params

	// expCurve[k] is the multiplier after k whole ticks of exponential decay,
	// for k up to the last tick that is still inside the exponential phase.
	expCurve []*uint256.Int
	// handoffTicks is the wad-scaled tick where the exponential curve meets
	// MinExpPriceMultiplier; zero when there is no exponential phase.
	handoffTicks *uint256.Int
	// handoffPrice is the multiplier at handoffTicks.
	handoffPrice *uint256.Int
}

// NewStrategy validates the parameters and precomputes the exponential phase.
func NewStrategy(p Params) (*Strategy, error) {
	p = p.clone()
	if p.TickLength == 0 {
		return nil, fmt.Errorf("%w: tick length must be positive", ErrInvalidConfig)
	}
	if p.MaxPriceMultiplier.Lt(p.MinExpPriceMultiplier) || p.MinExpPriceMultiplier.Lt(p.MinPriceMultiplier) {
		return nil, fmt.Errorf("%w: multipliers must satisfy max >= minExp >= min", ErrInvalidConfig)
	}
	if !p.StepExp.Lt(maxStepExp) {
		return nil, fmt.Errorf("%w: exponential step too large", ErrInvalidConfig)
	}

	s := &Strategy{
		params:       p,
		expCurve:     []*uint256.Int{new(uint256.Int).Set(p.MaxPriceMultiplier)},
		handoffTicks: new(uint256.Int),
		handoffPrice: new(uint256.Int).Set(p.MaxPriceMultiplier),
	}
	if p.StepExp.IsZero() || p.MaxPriceMultiplier.Eq(p.MinExpPriceMultiplier) {
		return s, nil
	}
	if p.MinExpPriceMultiplier.IsZero() {
		return nil, fmt.Errorf("%w: exponential decay never reaches a zero minExp multiplier", ErrInvalidConfig)
	}
	if err := s.buildExponentialPhase(); err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: exponential phase: %v", ErrInvalidConfig, err)
	}
	return s, nil
}

// maxStepExp keeps the per-tick decay factor well inside WadExp's domain.
var maxStepExp = new(uint256.Int).Mul(uint256.NewInt(100), wadray.Wad())

func (s *Strategy) buildExponentialPhase() error {
	p := s.params
	ratio, err := wadray.WadDiv(p.MaxPriceMultiplier, p.MinExpPriceMultiplier)
	if err != nil {
		return err
	}
	logRatio, err := wadray.WadLn(ratio)
	if err != nil {
		return err
	}
	handoff, err := wadray.WadDiv(logRatio, p.StepExp)
	if err != nil {
		return err
	}
	wholeTicks := new(uint256.Int).Div(handoff, wadray.Wad())
	if wholeTicks.GtUint64(MaxExponentialTicks) {
		return fmt.Errorf("%w: exponential phase lasts %s ticks, limit %d", ErrInvalidConfig, wholeTicks.Dec(), MaxExponentialTicks)
	}

	exponent, err := wadray.WadMul(p.StepExp, handoff)
	if err != nil {
		return err
	}
	growth, err := wadray.WadExp(exponent)
	if err != nil {
		return err
	}
	handoffPrice, err := wadray.WadDiv(p.MaxPriceMultiplier, growth)
	if err != nil {
		return err
	}

	stepGrowth, err := wadray.WadExp(p.StepExp)
	if err != nil {
		return err
	}
	decay, err := wadray.WadDiv(wadray.Wad(), stepGrowth)
	if err != nil {
		return err
	}

	n := wholeTicks.Uint64()
	curve := make([]*uint256.Int, 1, n+1)
	curve[0] = new(uint256.Int).Set(p.MaxPriceMultiplier)
	price := curve[0]
	for k := uint64(1); k <= n; k++ {
		if price, err = wadray.WadMul(price, decay); err != nil {
			return err
		}
		curve = append(curve, price)
	}

	s.expCurve = curve
	s.handoffTicks = handoff
	s.handoffPrice = handoffPrice
	return nil
}

// Params returns a copy of the curve parameters.
func (s *Strategy) Params() Params { return s.params.clone() }

// TickLength returns the tick length in seconds.
func (s *Strategy) TickLength() uint64 { return s.params.TickLength }

// HandoffTicks returns the wad-scaled tick at which linear decay takes over.
func (s *Strategy) HandoffTicks() *uint256.Int { return new(uint256.Int).Set(s.handoffTicks) }

// PriceMultiplier returns the wad multiplier applied to the collateral price
// at nowTs for an auction started at startTs.
func (s *Strategy) PriceMultiplier(startTs, nowTs uint64) (*uint256.Int, error) {
	if nowTs < startTs {
		return nil, fmt.Errorf("%w: now %d before auction start %d", ErrInvalidTimeRange, nowTs, startTs)
	}
	return s.MultiplierAtTick((nowTs - startTs) / s.params.TickLength)
}

// PriceMultiplierAt is PriceMultiplier over a State.
func (s *Strategy) PriceMultiplierAt(st State) (*uint256.Int, error) {
	return s.PriceMultiplier(st.StartTimestamp, st.CurrentTimestamp)
}

// MultiplierAtTick returns the multiplier after the given number of whole ticks.
func (s *Strategy) MultiplierAtTick(ticks uint64) (*uint256.Int, error) {
	if ticks < uint64(len(s.expCurve)) {
		return s.floor(s.expCurve[ticks]), nil
	}

	elapsed, err := wadray.Mul(uint256.NewInt(ticks), wadray.Wad())
	if err != nil {
		return nil, err
	}
	elapsed.Sub(elapsed, s.handoffTicks)
	drop, err := wadray.WadMul(s.params.StepLinear, elapsed)
	if err != nil {
		// A drop too large to represent is far below any floor.
		return new(uint256.Int).Set(s.params.MinPriceMultiplier), nil
	}
	if !drop.Lt(s.handoffPrice) {
		return new(uint256.Int).Set(s.params.MinPriceMultiplier), nil
	}
	price := new(uint256.Int).Sub(s.handoffPrice, drop)

	// Rounding in the hand-off must never lift the price above the last
	// exponential tick.
	if last := s.expCurve[len(s.expCurve)-1]; price.Gt(last) {
		price.Set(last)
	}
	return s.floor(price), nil
}

// Schedule returns the multipliers for ticks 0..ticks inclusive.
func (s *Strategy) Schedule(ticks uint64) ([]*uint256.Int, error) {
	if ticks > MaxScheduleTicks {
		return nil, fmt.Errorf("%w: schedule of %d ticks exceeds %d", ErrInvalidConfig, ticks, MaxScheduleTicks)
	}
	out := make([]*uint256.Int, 0, ticks+1)
	for k := uint64(0); k <= ticks; k++ {
		m, err := s.MultiplierAtTick(k)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// MaxScheduleTicks caps Schedule output.
const MaxScheduleTicks = 100_000

func (s *Strategy) floor(price *uint256.Int) *uint256.Int {
	if price.Lt(s.params.MinPriceMultiplier) {
		return new(uint256.Int).Set(s.params.MinPriceMultiplier)
	}
	return new(uint256.Int).Set(price)
}

func (p Params) clone() Params {
	return Params{
		MaxPriceMultiplier:    cloneInt(p.MaxPriceMultiplier),
		MinExpPriceMultiplier: cloneInt(p.MinExpPriceMultiplier),
		MinPriceMultiplier:    cloneInt(p.MinPriceMultiplier),
		StepLinear:            cloneInt(p.StepLinear),
		StepExp:               cloneInt(p.StepExp),
		TickLength:            p.TickLength,
	}
}

func cloneInt(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(x)
}
