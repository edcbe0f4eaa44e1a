package lending

import (
	"github.com/holiman/uint256"

	"nftlend/native/wadray"
)

// ScaledFromAmount converts an underlying amount into index-scaled units,
// the representation balances are stored in between accruals.
func ScaledFromAmount(amount, index *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return new(uint256.Int), nil
	}
	return wadray.RayDiv(amount, index)
}

// AmountFromScaled converts index-scaled units back into an underlying amount.
func AmountFromScaled(scaled, index *uint256.Int) (*uint256.Int, error) {
	if scaled == nil || scaled.IsZero() || index == nil || index.IsZero() {
		return new(uint256.Int), nil
	}
	return wadray.RayMul(scaled, index)
}
