package wadray

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
)

func dec(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := uint256.FromDecimal(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestRayMulRoundsHalfUp(t *testing.T) {
	cases := []struct {
		a, b, want string
	}{
		{a: "1000000000000000000000000000", b: "1000000000000000000000000000", want: "1000000000000000000000000000"},
		{a: "500000000000000000000000000", b: "1", want: "1"},
		{a: "499999999999999999999999999", b: "1", want: "0"},
		{a: "40000000000000000000000000", b: "800000000000000000000000000", want: "32000000000000000000000000"},
		{a: "0", b: "123", want: "0"},
	}
	for _, tc := range cases {
		got, err := RayMul(dec(t, tc.a), dec(t, tc.b))
		if err != nil {
			t.Fatalf("rayMul(%s, %s): %v", tc.a, tc.b, err)
		}
		if !got.Eq(dec(t, tc.want)) {
			t.Fatalf("rayMul(%s, %s) = %s want %s", tc.a, tc.b, got.Dec(), tc.want)
		}
	}
}

func TestRayDivRoundsHalfUp(t *testing.T) {
	got, err := RayDiv(uint256.NewInt(2), uint256.NewInt(3))
	if err != nil {
		t.Fatalf("rayDiv: %v", err)
	}
	if want := dec(t, "666666666666666666666666667"); !got.Eq(want) {
		t.Fatalf("rayDiv(2, 3) = %s want %s", got.Dec(), want.Dec())
	}
	got, err = RayDiv(uint256.NewInt(1), uint256.NewInt(3))
	if err != nil {
		t.Fatalf("rayDiv: %v", err)
	}
	if want := dec(t, "333333333333333333333333333"); !got.Eq(want) {
		t.Fatalf("rayDiv(1, 3) = %s want %s", got.Dec(), want.Dec())
	}
}

func TestWadOperations(t *testing.T) {
	half := dec(t, "500000000000000000")
	got, err := WadMul(half, dec(t, "3000000000000000000"))
	if err != nil || !got.Eq(dec(t, "1500000000000000000")) {
		t.Fatalf("wadMul = %v, %v", got, err)
	}
	got, err = WadDiv(dec(t, "1000000000000000000"), dec(t, "3000000000000000000"))
	if err != nil || !got.Eq(dec(t, "333333333333333333")) {
		t.Fatalf("wadDiv = %v, %v", got, err)
	}
}

func TestDivisionByZero(t *testing.T) {
	for name, fn := range map[string]func() (*uint256.Int, error){
		"rayDiv":     func() (*uint256.Int, error) { return RayDiv(Ray(), new(uint256.Int)) },
		"wadDiv":     func() (*uint256.Int, error) { return WadDiv(Wad(), nil) },
		"percentDiv": func() (*uint256.Int, error) { return PercentDiv(Wad(), 0) },
	} {
		if _, err := fn(); !errors.Is(err, ErrArithmetic) {
			t.Fatalf("%s: expected ErrArithmetic, got %v", name, err)
		}
	}
}

func TestOverflowIsReported(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	if _, err := RayMul(max, uint256.NewInt(2)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("rayMul: expected ErrOverflow, got %v", err)
	}
	// a*b fits but adding HALF_RAY does not.
	almost := new(uint256.Int).Sub(max, new(uint256.Int).Rsh(HalfRay(), 1))
	if _, err := RayMul(almost, uint256.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("rayMul rounding: expected ErrOverflow, got %v", err)
	}
	if _, err := RayDiv(max, Ray()); !errors.Is(err, ErrOverflow) {
		t.Fatalf("rayDiv: expected ErrOverflow, got %v", err)
	}
	if _, err := WadToRay(max); !errors.Is(err, ErrOverflow) {
		t.Fatalf("wadToRay: expected ErrOverflow, got %v", err)
	}
	if _, err := PercentMul(max, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("percentMul: expected ErrOverflow, got %v", err)
	}
	if _, err := Add(max, uint256.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("add: expected ErrOverflow, got %v", err)
	}
	if _, err := Sub(uint256.NewInt(1), uint256.NewInt(2)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("sub: expected ErrOverflow, got %v", err)
	}
}

func TestRayWadConversion(t *testing.T) {
	cases := []struct{ ray, wad string }{
		{ray: "1000000000000000000000000000", wad: "1000000000000000000"},
		{ray: "1499999999", wad: "1"},
		{ray: "1500000000", wad: "2"},
		{ray: "499999999", wad: "0"},
	}
	for _, tc := range cases {
		if got := RayToWad(dec(t, tc.ray)); !got.Eq(dec(t, tc.wad)) {
			t.Fatalf("rayToWad(%s) = %s want %s", tc.ray, got.Dec(), tc.wad)
		}
	}
	got, err := WadToRay(Wad())
	if err != nil || !got.Eq(Ray()) {
		t.Fatalf("wadToRay(1) = %v, %v", got, err)
	}
}

func TestPercentMath(t *testing.T) {
	got, err := PercentMul(uint256.NewInt(10_000), 1234)
	if err != nil || got.Uint64() != 1234 {
		t.Fatalf("percentMul = %v, %v", got, err)
	}
	got, err = PercentMul(uint256.NewInt(1), 5000)
	if err != nil || got.Uint64() != 1 {
		t.Fatalf("percentMul half up = %v, %v", got, err)
	}
	got, err = PercentDiv(uint256.NewInt(1234), 1234)
	if err != nil || got.Uint64() != 10_000 {
		t.Fatalf("percentDiv = %v, %v", got, err)
	}
}

func TestRayRoundTripWithinOneUnit(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		x := new(uint256.Int).Mul(uint256.NewInt(rng.Uint64()), uint256.NewInt(uint64(rng.Int63n(1<<40)+1)))
		y := new(uint256.Int).Mul(uint256.NewInt(rng.Uint64()|1), uint256.NewInt(uint64(rng.Int63n(1<<20)+1)))
		q, err := RayDiv(x, y)
		if err != nil {
			t.Fatalf("rayDiv(%s, %s): %v", x.Dec(), y.Dec(), err)
		}
		back, err := RayMul(q, y)
		if err != nil {
			t.Fatalf("rayMul: %v", err)
		}
		diff := new(uint256.Int)
		if back.Gt(x) {
			diff.Sub(back, x)
		} else {
			diff.Sub(x, back)
		}
		// rayDiv rounds by at most half a unit of q, which rayMul scales by y/RAY.
		bound := new(uint256.Int).Div(y, Ray())
		bound.AddUint64(bound, 1)
		if diff.Gt(bound) {
			t.Fatalf("round trip of %s / %s drifted by %s", x.Dec(), y.Dec(), diff.Dec())
		}
	}
}
