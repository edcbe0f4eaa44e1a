package wadray

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrArithmetic reports a division by zero or an undefined operation.
	ErrArithmetic = errors.New("wadray: arithmetic error")
	// ErrOverflow reports an intermediate value beyond the uint256 range.
	ErrOverflow = errors.New("wadray: uint256 overflow")
)

// PercentageFactor expresses 100% in basis points.
const PercentageFactor uint64 = 10_000

const halfPercentageFactor uint64 = PercentageFactor / 2

var (
	wad             = uint256.NewInt(1_000_000_000_000_000_000)
	halfWad         = new(uint256.Int).Rsh(wad, 1)
	ray             = uint256.MustFromDecimal("1000000000000000000000000000") // 1e27 precision
	halfRay         = new(uint256.Int).Rsh(ray, 1)
	wadRayRatio     = uint256.NewInt(1_000_000_000)
	halfWadRayRatio = new(uint256.Int).Rsh(wadRayRatio, 1)
)

// Wad returns a fresh copy of 1e18.
func Wad() *uint256.Int { return new(uint256.Int).Set(wad) }

// Ray returns a fresh copy of 1e27.
func Ray() *uint256.Int { return new(uint256.Int).Set(ray) }

// HalfRay returns a fresh copy of 0.5e27.
func HalfRay() *uint256.Int { return new(uint256.Int).Set(halfRay) }

// RayMul multiplies two ray values rounding half up: (a*b + RAY/2) / RAY.
func RayMul(a, b *uint256.Int) (*uint256.Int, error) {
	return mulDivHalfUp(a, b, ray, halfRay)
}

// RayDiv divides two ray values rounding half up: (a*RAY + b/2) / b.
func RayDiv(a, b *uint256.Int) (*uint256.Int, error) {
	return divHalfUp(a, b, ray)
}

// WadMul multiplies two wad values rounding half up.
func WadMul(a, b *uint256.Int) (*uint256.Int, error) {
	return mulDivHalfUp(a, b, wad, halfWad)
}

// WadDiv divides two wad values rounding half up.
func WadDiv(a, b *uint256.Int) (*uint256.Int, error) {
	return divHalfUp(a, b, wad)
}

// RayToWad scales a ray down to a wad, rounding half up on the truncated
// nine digits.
func RayToWad(a *uint256.Int) *uint256.Int {
	a = orZero(a)
	quo, rem := new(uint256.Int), new(uint256.Int)
	quo.DivMod(a, wadRayRatio, rem)
	if !rem.Lt(halfWadRayRatio) {
		quo.AddUint64(quo, 1)
	}
	return quo
}

// WadToRay scales a wad up to a ray.
func WadToRay(a *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(orZero(a), wadRayRatio)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// PercentMul applies a basis point percentage to value rounding half up.
func PercentMul(value *uint256.Int, bps uint64) (*uint256.Int, error) {
	return mulDivHalfUp(value, uint256.NewInt(bps), uint256.NewInt(PercentageFactor), uint256.NewInt(halfPercentageFactor))
}

// PercentDiv divides value by a basis point percentage rounding half up.
func PercentDiv(value *uint256.Int, bps uint64) (*uint256.Int, error) {
	return divHalfUp(value, uint256.NewInt(bps), uint256.NewInt(PercentageFactor))
}

// Add returns a+b, failing instead of wrapping.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).AddOverflow(orZero(a), orZero(b))
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// Sub returns a-b, failing when b exceeds a.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	out, underflow := new(uint256.Int).SubOverflow(orZero(a), orZero(b))
	if underflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// Mul returns a*b, failing instead of wrapping.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(orZero(a), orZero(b))
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

func mulDivHalfUp(a, b, scale, half *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(orZero(a), orZero(b))
	if overflow {
		return nil, ErrOverflow
	}
	if _, overflow = product.AddOverflow(product, half); overflow {
		return nil, ErrOverflow
	}
	return product.Div(product, scale), nil
}

func divHalfUp(a, b, scale *uint256.Int) (*uint256.Int, error) {
	if b == nil || b.IsZero() {
		return nil, ErrArithmetic
	}
	numerator, overflow := new(uint256.Int).MulOverflow(orZero(a), scale)
	if overflow {
		return nil, ErrOverflow
	}
	halfB := new(uint256.Int).Rsh(b, 1)
	if _, overflow = numerator.AddOverflow(numerator, halfB); overflow {
		return nil, ErrOverflow
	}
	return numerator.Div(numerator, b), nil
}

func orZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}
