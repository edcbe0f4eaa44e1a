package lending

import (
	"errors"

	nativecommon "nftlend/native/common"
)

var (
	// ErrInvalidConfig aliases the shared sentinel so callers can match on
	// either package.
	ErrInvalidConfig = nativecommon.ErrInvalidConfig
	// ErrInvalidTimeRange is returned when an accrual step runs backwards.
	ErrInvalidTimeRange = nativecommon.ErrInvalidTimeRange
	// ErrIndexOverflow mirrors the uint128 SafeCast guard applied to reserve
	// indexes on chain.
	ErrIndexOverflow = errors.New("lending: index exceeds uint128")
)
