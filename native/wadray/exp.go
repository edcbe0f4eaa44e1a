package wadray

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Series evaluation runs 22 digits below wad precision and is rounded back to
// the nearest wad unit on the way out.
var (
	guardFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(22), nil)
	halfGuard   = new(big.Int).Rsh(guardFactor, 1)
	guardOne    = new(big.Int).Exp(big.NewInt(10), big.NewInt(40), nil)
	guardLn2    = lnReduced(new(big.Int).Lsh(guardOne, 1))

	// maxExpInput is the largest x for which e^x still fits in a wad-scaled uint256.
	maxExpInput = uint256.MustFromDecimal("133084258667509499440")
)

// WadExp returns e^x for a wad-scaled x.
func WadExp(x *uint256.Int) (*uint256.Int, error) {
	x = orZero(x)
	if x.IsZero() {
		return Wad(), nil
	}
	if x.Gt(maxExpInput) {
		return nil, ErrOverflow
	}

	y := new(big.Int).Mul(x.ToBig(), guardFactor)
	halvings := 0
	for y.Cmp(guardOne) > 0 {
		y.Rsh(y, 1)
		halvings++
	}

	sum := new(big.Int).Set(guardOne)
	term := new(big.Int).Set(guardOne)
	denom := new(big.Int)
	for k := int64(1); ; k++ {
		term.Mul(term, y)
		denom.Mul(guardOne, big.NewInt(k))
		term.Quo(term, denom)
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}
	for ; halvings > 0; halvings-- {
		sum.Mul(sum, sum)
		sum.Quo(sum, guardOne)
	}
	return fromGuard(sum)
}

// WadLn returns the natural logarithm of a wad-scaled x >= 1. Values below one
// have a negative logarithm, which the unsigned domain cannot carry.
func WadLn(x *uint256.Int) (*uint256.Int, error) {
	x = orZero(x)
	if x.Lt(wad) {
		return nil, fmt.Errorf("%w: ln of %s below one", ErrArithmetic, x.Dec())
	}
	v := new(big.Int).Mul(x.ToBig(), guardFactor)
	twoOne := new(big.Int).Lsh(guardOne, 1)
	k := int64(0)
	for v.Cmp(twoOne) >= 0 {
		v.Rsh(v, 1)
		k++
	}
	total := lnReduced(v)
	total.Add(total, new(big.Int).Mul(guardLn2, big.NewInt(k)))
	return fromGuard(total)
}

// lnReduced evaluates ln(v) for v in [1, 2] at guard precision using
// ln(v) = 2*atanh((v-1)/(v+1)).
func lnReduced(v *big.Int) *big.Int {
	num := new(big.Int).Sub(v, guardOne)
	num.Mul(num, guardOne)
	z := num.Quo(num, new(big.Int).Add(v, guardOne))
	z2 := new(big.Int).Mul(z, z)
	z2.Quo(z2, guardOne)

	sum := new(big.Int)
	term := new(big.Int).Set(z)
	part := new(big.Int)
	for i := int64(0); term.Sign() != 0; i++ {
		part.Quo(term, big.NewInt(2*i+1))
		sum.Add(sum, part)
		term.Mul(term, z2)
		term.Quo(term, guardOne)
	}
	return sum.Lsh(sum, 1)
}

func fromGuard(v *big.Int) (*uint256.Int, error) {
	rounded := new(big.Int).Add(v, halfGuard)
	rounded.Quo(rounded, guardFactor)
	out, overflow := uint256.FromBig(rounded)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}
