package lending

import "github.com/holiman/uint256"

// ReserveSnapshot captures the reserve figures the interest strategy is
// evaluated against. Amounts are in the reserve asset's smallest unit.
type ReserveSnapshot struct {
	// LiquidityAdded is liquidity entering the reserve in the current action.
	LiquidityAdded *uint256.Int
	// LiquidityTaken is liquidity leaving the reserve in the current action.
	LiquidityTaken *uint256.Int
	// TotalVariableDebt is the reserve's outstanding variable debt.
	TotalVariableDebt *uint256.Int
	// AvailableLiquidity is the underlying balance held by the reserve before
	// the current action.
	AvailableLiquidity *uint256.Int
	// ReserveFactor is the share of interest routed to the treasury, in basis
	// points.
	ReserveFactor uint64
}

// Rates is the output of an interest strategy evaluation, both in ray.
type Rates struct {
	LiquidityRate      *uint256.Int
	VariableBorrowRate *uint256.Int
}

// ReserveState is the slice of on-chain reserve data needed to run one
// accrual step.
type ReserveState struct {
	LiquidityIndex            *uint256.Int
	VariableBorrowIndex       *uint256.Int
	CurrentLiquidityRate      *uint256.Int
	CurrentVariableBorrowRate *uint256.Int
	ScaledVariableDebt        *uint256.Int
	LastUpdateTimestamp       uint64
	ReserveFactor             uint64
}

// Accrual is the result of advancing a ReserveState to a new timestamp.
type Accrual struct {
	LiquidityIndex      *uint256.Int
	VariableBorrowIndex *uint256.Int
	// TreasuryScaled is the additional scaled amount owed to the treasury.
	TreasuryScaled *uint256.Int
}

// Clone returns a deep copy of the snapshot.
func (s ReserveSnapshot) Clone() ReserveSnapshot {
	return ReserveSnapshot{
		LiquidityAdded:     cloneInt(s.LiquidityAdded),
		LiquidityTaken:     cloneInt(s.LiquidityTaken),
		TotalVariableDebt:  cloneInt(s.TotalVariableDebt),
		AvailableLiquidity: cloneInt(s.AvailableLiquidity),
		ReserveFactor:      s.ReserveFactor,
	}
}

// Clone returns a deep copy of the reserve state.
func (r ReserveState) Clone() ReserveState {
	return ReserveState{
		LiquidityIndex:            cloneInt(r.LiquidityIndex),
		VariableBorrowIndex:       cloneInt(r.VariableBorrowIndex),
		CurrentLiquidityRate:      cloneInt(r.CurrentLiquidityRate),
		CurrentVariableBorrowRate: cloneInt(r.CurrentVariableBorrowRate),
		ScaledVariableDebt:        cloneInt(r.ScaledVariableDebt),
		LastUpdateTimestamp:       r.LastUpdateTimestamp,
		ReserveFactor:             r.ReserveFactor,
	}
}

func cloneInt(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(x)
}
