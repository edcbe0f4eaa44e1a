package wadray

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// ErrInvalidDecimal is returned when a decimal literal cannot be scaled exactly.
var ErrInvalidDecimal = errors.New("wadray: invalid decimal")

const (
	// WadDecimals is the number of fractional digits carried by a wad.
	WadDecimals = 18
	// RayDecimals is the number of fractional digits carried by a ray.
	RayDecimals = 27
)

// ParseWad parses a non-negative decimal literal such as "0.057" into wad units.
func ParseWad(s string) (*uint256.Int, error) { return ParseDecimal(s, WadDecimals) }

// ParseRay parses a non-negative decimal literal such as "0.8" into ray units.
func ParseRay(s string) (*uint256.Int, error) { return ParseDecimal(s, RayDecimals) }

// MustParseRay is ParseRay for constants. It panics on malformed input.
func MustParseRay(s string) *uint256.Int {
	v, err := ParseRay(s)
	if err != nil {
		panic(err)
	}
	return v
}

// MustParseWad is ParseWad for constants. It panics on malformed input.
func MustParseWad(s string) *uint256.Int {
	v, err := ParseWad(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseDecimal scales a decimal literal by 10^decimals without going through
// floating point. Literals with more fractional digits than decimals are
// rejected rather than rounded.
func ParseDecimal(s string, decimals int) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidDecimal)
	}
	trimmed = strings.ReplaceAll(trimmed, "_", "")
	whole, frac, _ := strings.Cut(trimmed, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidDecimal, s, decimals)
	}
	for _, part := range []string{whole, frac} {
		for _, ch := range part {
			if ch < '0' || ch > '9' {
				return nil, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
			}
		}
	}
	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", decimals-len(frac)), "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidDecimal, s, err)
	}
	return v, nil
}

// FormatDecimal renders x scaled down by 10^decimals, trimming trailing zeros.
func FormatDecimal(x *uint256.Int, decimals int) string {
	digits := orZero(x).Dec()
	if decimals <= 0 {
		return digits
	}
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}
	whole := digits[:len(digits)-decimals]
	frac := strings.TrimRight(digits[len(digits)-decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
