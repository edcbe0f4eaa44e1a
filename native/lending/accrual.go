package lending

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"nftlend/native/wadray"
)

// SecondsPerYear is the 365-day year used to de-annualise ray rates.
const SecondsPerYear uint64 = 31_536_000

var (
	secondsPerYear        = uint256.NewInt(SecondsPerYear)
	secondsPerYearSquared = new(uint256.Int).Mul(secondsPerYear, secondsPerYear)
	maxIndex              = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)
)

// InterestMode selects how a rate is applied over elapsed time.
type InterestMode uint8

const (
	// InterestModeLinear applies simple interest; used for the liquidity index.
	InterestModeLinear InterestMode = iota
	// InterestModeCompounded applies the truncated compounding series; used for
	// the variable borrow index.
	InterestModeCompounded
)

func (m InterestMode) String() string {
	switch m {
	case InterestModeLinear:
		return "linear"
	case InterestModeCompounded:
		return "compounded"
	default:
		return fmt.Sprintf("InterestMode(%d)", uint8(m))
	}
}

// ParseInterestMode maps "linear" or "compounded" to an InterestMode.
func ParseInterestMode(s string) (InterestMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return InterestModeLinear, nil
	case "compounded", "compound":
		return InterestModeCompounded, nil
	default:
		return 0, fmt.Errorf("%w: unknown interest mode %q", ErrInvalidConfig, s)
	}
}

// LinearInterest returns RAY + rate*dt/SecondsPerYear.
func LinearInterest(rate *uint256.Int, dt uint64) (*uint256.Int, error) {
	accrued, err := wadray.Mul(rate, uint256.NewInt(dt))
	if err != nil {
		return nil, err
	}
	accrued.Div(accrued, secondsPerYear)
	return wadray.Add(wadray.Ray(), accrued)
}

// CompoundedInterest approximates (1 + rate/SecondsPerYear)^dt with the first
// three terms of its binomial expansion. The truncation is part of the result:
// debt indexes on chain are computed this way and must be matched exactly.
func CompoundedInterest(rate *uint256.Int, dt uint64) (*uint256.Int, error) {
	if dt == 0 {
		return wadray.Ray(), nil
	}
	rate = cloneInt(rate)

	exp := uint256.NewInt(dt)
	expMinusOne := uint256.NewInt(dt - 1)
	expMinusTwo := new(uint256.Int)
	if dt > 2 {
		expMinusTwo.SetUint64(dt - 2)
	}

	basePowerTwo, err := wadray.RayMul(rate, rate)
	if err != nil {
		return nil, err
	}
	basePowerTwo.Div(basePowerTwo, secondsPerYearSquared)

	basePowerThree, err := wadray.RayMul(basePowerTwo, rate)
	if err != nil {
		return nil, err
	}
	basePowerThree.Div(basePowerThree, secondsPerYear)

	firstTerm, err := wadray.Mul(rate, exp)
	if err != nil {
		return nil, err
	}
	firstTerm.Div(firstTerm, secondsPerYear)

	secondTerm, err := product(exp, expMinusOne, basePowerTwo)
	if err != nil {
		return nil, err
	}
	secondTerm.Div(secondTerm, uint256.NewInt(2))

	thirdTerm, err := product(exp, expMinusOne, expMinusTwo, basePowerThree)
	if err != nil {
		return nil, err
	}
	thirdTerm.Div(thirdTerm, uint256.NewInt(6))

	result := wadray.Ray()
	for _, term := range []*uint256.Int{firstTerm, secondTerm, thirdTerm} {
		if result, err = wadray.Add(result, term); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// CumulatedInterest dispatches to LinearInterest or CompoundedInterest.
func CumulatedInterest(rate *uint256.Int, dt uint64, mode InterestMode) (*uint256.Int, error) {
	switch mode {
	case InterestModeLinear:
		return LinearInterest(rate, dt)
	case InterestModeCompounded:
		return CompoundedInterest(rate, dt)
	default:
		return nil, fmt.Errorf("%w: unknown interest mode %s", ErrInvalidConfig, mode)
	}
}

// UpdateIndex grows previousIndex by the interest accumulated over dt.
func UpdateIndex(previousIndex, rate *uint256.Int, dt uint64, mode InterestMode) (*uint256.Int, error) {
	cumulated, err := CumulatedInterest(rate, dt, mode)
	if err != nil {
		return nil, err
	}
	next, err := wadray.RayMul(cumulated, previousIndex)
	if err != nil {
		return nil, err
	}
	if next.Gt(maxIndex) {
		return nil, fmt.Errorf("%w: %s", ErrIndexOverflow, next.Dec())
	}
	return next, nil
}

// AccrueToTreasury computes the scaled amount owed to the treasury for the
// debt accrued between two index snapshots. Debt that did not grow mints
// nothing.
func AccrueToTreasury(prevScaledDebt, prevIndex, newScaledDebt, newIndex *uint256.Int, reserveFactorBps uint64) (*uint256.Int, error) {
	if reserveFactorBps > wadray.PercentageFactor {
		return nil, fmt.Errorf("%w: reserve factor %d bps exceeds %d", ErrInvalidConfig, reserveFactorBps, wadray.PercentageFactor)
	}
	prevDebt, err := wadray.RayMul(prevScaledDebt, prevIndex)
	if err != nil {
		return nil, err
	}
	newDebt, err := wadray.RayMul(newScaledDebt, newIndex)
	if err != nil {
		return nil, err
	}
	if !newDebt.Gt(prevDebt) {
		return new(uint256.Int), nil
	}
	accrued := new(uint256.Int).Sub(newDebt, prevDebt)
	mint, err := wadray.PercentMul(accrued, reserveFactorBps)
	if err != nil {
		return nil, err
	}
	if mint.IsZero() {
		return mint, nil
	}
	return wadray.RayDiv(mint, newIndex)
}

// Accrue advances the reserve to now: the liquidity index grows linearly at
// the current liquidity rate, the borrow index compounds at the current
// variable rate, and the treasury share of the new debt is returned scaled.
func (r ReserveState) Accrue(now uint64) (Accrual, error) {
	if now < r.LastUpdateTimestamp {
		return Accrual{}, fmt.Errorf("%w: now %d before last update %d", ErrInvalidTimeRange, now, r.LastUpdateTimestamp)
	}
	dt := now - r.LastUpdateTimestamp
	liquidityIndex := cloneInt(r.LiquidityIndex)
	borrowIndex := cloneInt(r.VariableBorrowIndex)
	scaledDebt := cloneInt(r.ScaledVariableDebt)

	if !cloneInt(r.CurrentLiquidityRate).IsZero() {
		next, err := UpdateIndex(liquidityIndex, r.CurrentLiquidityRate, dt, InterestModeLinear)
		if err != nil {
			return Accrual{}, fmt.Errorf("liquidity index: %w", err)
		}
		liquidityIndex = next
	}
	if !scaledDebt.IsZero() {
		next, err := UpdateIndex(borrowIndex, r.CurrentVariableBorrowRate, dt, InterestModeCompounded)
		if err != nil {
			return Accrual{}, fmt.Errorf("borrow index: %w", err)
		}
		borrowIndex = next
	}

	treasury := new(uint256.Int)
	if r.ReserveFactor > 0 && !borrowIndex.Eq(cloneInt(r.VariableBorrowIndex)) {
		minted, err := AccrueToTreasury(scaledDebt, r.VariableBorrowIndex, scaledDebt, borrowIndex, r.ReserveFactor)
		if err != nil {
			return Accrual{}, fmt.Errorf("treasury accrual: %w", err)
		}
		treasury = minted
	}
	return Accrual{
		LiquidityIndex:      liquidityIndex,
		VariableBorrowIndex: borrowIndex,
		TreasuryScaled:      treasury,
	}, nil
}

func product(factors ...*uint256.Int) (*uint256.Int, error) {
	out := uint256.NewInt(1)
	for _, f := range factors {
		var err error
		if out, err = wadray.Mul(out, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}
