package common

import "errors"

var (
	// ErrInvalidConfig is returned when strategy parameters fall outside the
	// range the protocol accepts at listing time.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidTimeRange is returned when a query timestamp precedes the
	// reference timestamp it is measured from.
	ErrInvalidTimeRange = errors.New("invalid time range")
)
