package lending

import (
	"fmt"

	"github.com/holiman/uint256"

	"nftlend/native/wadray"
)

// RateStrategy encapsulates the parameters of a two-slope variable borrow rate
// curve. All fields are ray-scaled and immutable once constructed.
type RateStrategy struct {
	// optimalUsageRatio is the utilisation where the curve kinks.
	optimalUsageRatio *uint256.Int
	// maxExcessUsageRatio is RAY - optimalUsageRatio.
	maxExcessUsageRatio    *uint256.Int
	baseVariableBorrowRate *uint256.Int
	variableRateSlope1     *uint256.Int
	variableRateSlope2     *uint256.Int
}

// NewRateStrategy validates and captures a rate curve. The optimal usage ratio
// must lie strictly between zero and one ray.
func NewRateStrategy(optimalUsageRatio, baseVariableBorrowRate, slope1, slope2 *uint256.Int) (*RateStrategy, error) {
	if optimalUsageRatio == nil || optimalUsageRatio.IsZero() || !optimalUsageRatio.Lt(wadray.Ray()) {
		return nil, fmt.Errorf("%w: optimal usage ratio must be in (0, 1) ray", ErrInvalidConfig)
	}
	s := &RateStrategy{
		optimalUsageRatio:      cloneInt(optimalUsageRatio),
		maxExcessUsageRatio:    new(uint256.Int).Sub(wadray.Ray(), optimalUsageRatio),
		baseVariableBorrowRate: cloneInt(baseVariableBorrowRate),
		variableRateSlope1:     cloneInt(slope1),
		variableRateSlope2:     cloneInt(slope2),
	}
	if _, err := s.MaxVariableBorrowRate(); err != nil {
		return nil, fmt.Errorf("%w: rate parameters overflow: %v", ErrInvalidConfig, err)
	}
	return s, nil
}

// OptimalUsageRatio returns a copy of the kink utilisation.
func (s *RateStrategy) OptimalUsageRatio() *uint256.Int { return cloneInt(s.optimalUsageRatio) }

// BaseVariableBorrowRate returns a copy of the rate at zero utilisation.
func (s *RateStrategy) BaseVariableBorrowRate() *uint256.Int {
	return cloneInt(s.baseVariableBorrowRate)
}

// VariableRateSlope1 returns a copy of the slope below the kink.
func (s *RateStrategy) VariableRateSlope1() *uint256.Int { return cloneInt(s.variableRateSlope1) }

// VariableRateSlope2 returns a copy of the slope above the kink.
func (s *RateStrategy) VariableRateSlope2() *uint256.Int { return cloneInt(s.variableRateSlope2) }

// MaxVariableBorrowRate is the borrow rate at full utilisation.
func (s *RateStrategy) MaxVariableBorrowRate() (*uint256.Int, error) {
	sum, err := wadray.Add(s.baseVariableBorrowRate, s.variableRateSlope1)
	if err != nil {
		return nil, err
	}
	return wadray.Add(sum, s.variableRateSlope2)
}

// CalculateUtilization derives the ray utilisation of a reserve:
// debt / (available + added - taken + debt), or zero without debt.
func CalculateUtilization(snapshot ReserveSnapshot) (*uint256.Int, error) {
	debt := cloneInt(snapshot.TotalVariableDebt)
	if debt.IsZero() {
		return new(uint256.Int), nil
	}
	available, err := wadray.Add(snapshot.AvailableLiquidity, snapshot.LiquidityAdded)
	if err != nil {
		return nil, err
	}
	available, err = wadray.Sub(available, snapshot.LiquidityTaken)
	if err != nil {
		return nil, fmt.Errorf("%w: liquidity taken exceeds available liquidity", ErrInvalidConfig)
	}
	total, err := wadray.Add(available, debt)
	if err != nil {
		return nil, err
	}
	return wadray.RayDiv(debt, total)
}

// CalculateRates evaluates the curve at a ray utilisation. Utilisation equal
// to the optimal ratio is priced on the lower slope.
func (s *RateStrategy) CalculateRates(utilization *uint256.Int, reserveFactorBps uint64) (Rates, error) {
	if reserveFactorBps > wadray.PercentageFactor {
		return Rates{}, fmt.Errorf("%w: reserve factor %d bps exceeds %d", ErrInvalidConfig, reserveFactorBps, wadray.PercentageFactor)
	}
	utilization = cloneInt(utilization)
	if utilization.Gt(wadray.Ray()) {
		return Rates{}, fmt.Errorf("%w: utilisation %s exceeds one ray", ErrInvalidConfig, utilization.Dec())
	}
	if utilization.IsZero() {
		return Rates{
			LiquidityRate:      new(uint256.Int),
			VariableBorrowRate: cloneInt(s.baseVariableBorrowRate),
		}, nil
	}

	borrowRate, err := s.variableBorrowRate(utilization)
	if err != nil {
		return Rates{}, err
	}

	liquidityRate, err := wadray.RayMul(borrowRate, utilization)
	if err != nil {
		return Rates{}, err
	}
	liquidityRate, err = wadray.PercentMul(liquidityRate, wadray.PercentageFactor-reserveFactorBps)
	if err != nil {
		return Rates{}, err
	}
	return Rates{LiquidityRate: liquidityRate, VariableBorrowRate: borrowRate}, nil
}

// CalculateInterestRates derives utilisation from the snapshot and evaluates
// the curve with the snapshot's reserve factor.
func (s *RateStrategy) CalculateInterestRates(snapshot ReserveSnapshot) (Rates, error) {
	utilization, err := CalculateUtilization(snapshot)
	if err != nil {
		return Rates{}, err
	}
	return s.CalculateRates(utilization, snapshot.ReserveFactor)
}

func (s *RateStrategy) variableBorrowRate(utilization *uint256.Int) (*uint256.Int, error) {
	if !utilization.Gt(s.optimalUsageRatio) {
		ratio, err := wadray.RayDiv(utilization, s.optimalUsageRatio)
		if err != nil {
			return nil, err
		}
		slope, err := wadray.RayMul(s.variableRateSlope1, ratio)
		if err != nil {
			return nil, err
		}
		return wadray.Add(s.baseVariableBorrowRate, slope)
	}

	excess := new(uint256.Int).Sub(utilization, s.optimalUsageRatio)
	excessRatio, err := wadray.RayDiv(excess, s.maxExcessUsageRatio)
	if err != nil {
		return nil, err
	}
	steep, err := wadray.RayMul(s.variableRateSlope2, excessRatio)
	if err != nil {
		return nil, err
	}
	rate, err := wadray.Add(s.baseVariableBorrowRate, s.variableRateSlope1)
	if err != nil {
		return nil, err
	}
	return wadray.Add(rate, steep)
}
