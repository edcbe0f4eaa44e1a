package auction

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"

	"nftlend/native/wadray"
)

func wad(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := wadray.ParseWad(s)
	if err != nil {
		t.Fatalf("parse wad %q: %v", s, err)
	}
	return v
}

func exponentialStrategy(t *testing.T) *Strategy {
	t.Helper()
	s, err := NewStrategy(Params{
		MaxPriceMultiplier:    wad(t, "3"),
		MinExpPriceMultiplier: wad(t, "1.2"),
		MinPriceMultiplier:    wad(t, "0.5"),
		StepLinear:            wad(t, "0.057"),
		StepExp:               wad(t, "0.08"),
		TickLength:            900,
	})
	if err != nil {
		t.Fatalf("new strategy: %v", err)
	}
	return s
}

func linearStrategy(t *testing.T) *Strategy {
	t.Helper()
	s, err := NewStrategy(Params{
		MaxPriceMultiplier:    wad(t, "3"),
		MinExpPriceMultiplier: wad(t, "1"),
		MinPriceMultiplier:    wad(t, "0.5"),
		StepLinear:            wad(t, "0.05"),
		TickLength:            60,
	})
	if err != nil {
		t.Fatalf("new strategy: %v", err)
	}
	return s
}

func TestExponentialCurveMatchesReferenceSequence(t *testing.T) {
	s := exponentialStrategy(t)
	want := []string{
		"3", "2.769349039", "2.556431366", "2.359883583", "2.178447111",
		"2.010960138", "1.856350175", "1.713627191", "1.581877272",
		"1.460256767", "1.347986892", "1.244348735", "1.168857146",
		"1.111857146", "1.054857146", "0.997857146", "0.940857146",
		"0.883857146", "0.826857146", "0.769857146", "0.712857146",
		"0.655857146", "0.598857146", "0.541857146", "0.5", "0.5",
	}
	// Reference values are truncated to nine decimals.
	tolerance := uint256.NewInt(1_000_000_000)
	for tick, w := range want {
		got, err := s.PriceMultiplier(1_000, 1_000+uint64(tick)*900)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		expected := wad(t, w)
		if got.Lt(expected) || new(uint256.Int).Sub(got, expected).Gt(tolerance) {
			t.Fatalf("tick %d: got %s want %s", tick, wadray.FormatDecimal(got, wadray.WadDecimals), w)
		}
	}
}

func TestLinearCurveDropsByStep(t *testing.T) {
	s := linearStrategy(t)
	step := wad(t, "0.05")
	floor := wad(t, "0.5")
	for k := uint64(0); k <= 60; k++ {
		got, err := s.PriceMultiplier(0, k*60+59)
		if err != nil {
			t.Fatalf("tick %d: %v", k, err)
		}
		want := new(uint256.Int).Mul(step, uint256.NewInt(k))
		if want.Gt(wad(t, "2.5")) {
			want.Set(floor)
		} else {
			want.Sub(wad(t, "3"), want)
		}
		if !got.Eq(want) {
			t.Fatalf("tick %d: got %s want %s", k, got.Dec(), want.Dec())
		}
	}
}

func TestTicksAreQuantised(t *testing.T) {
	s := exponentialStrategy(t)
	start, err := s.PriceMultiplier(0, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	late, err := s.PriceMultiplier(0, 899)
	if err != nil {
		t.Fatalf("within first tick: %v", err)
	}
	if !start.Eq(late) || !start.Eq(wad(t, "3")) {
		t.Fatalf("price moved within the first tick: %s -> %s", start.Dec(), late.Dec())
	}
}

func TestPriceMultiplierRejectsReversedClock(t *testing.T) {
	s := exponentialStrategy(t)
	if _, err := s.PriceMultiplier(100, 99); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
	if _, err := s.PriceMultiplierAt(State{StartTimestamp: 10, CurrentTimestamp: 9}); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}

func TestMinExpEqualsMinFloorsAfterHandoff(t *testing.T) {
	s, err := NewStrategy(Params{
		MaxPriceMultiplier:    wad(t, "2"),
		MinExpPriceMultiplier: wad(t, "1"),
		MinPriceMultiplier:    wad(t, "1"),
		StepLinear:            wad(t, "0.1"),
		StepExp:               wad(t, "0.1"),
		TickLength:            1,
	})
	if err != nil {
		t.Fatalf("new strategy: %v", err)
	}
	// ln(2)/0.1 puts the hand-off between ticks 6 and 7.
	last, err := s.MultiplierAtTick(6)
	if err != nil {
		t.Fatalf("tick 6: %v", err)
	}
	if !last.Gt(wad(t, "1")) {
		t.Fatalf("tick 6 should still be exponential, got %s", last.Dec())
	}
	next, err := s.MultiplierAtTick(7)
	if err != nil {
		t.Fatalf("tick 7: %v", err)
	}
	if !next.Eq(wad(t, "1")) {
		t.Fatalf("expected floor right after hand-off, got %s", next.Dec())
	}
}

func TestMultiplierMonotoneAndFloored(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 40; i++ {
		min := uint64(rng.Intn(1000))
		minExp := min + uint64(rng.Intn(1000))
		max := minExp + uint64(rng.Intn(3000))
		p := Params{
			MaxPriceMultiplier:    milli(max),
			MinExpPriceMultiplier: milli(minExp),
			MinPriceMultiplier:    milli(min),
			StepLinear:            milli(uint64(1 + rng.Intn(200))),
			StepExp:               milli(uint64(rng.Intn(300))),
			TickLength:            uint64(1 + rng.Intn(3600)),
		}
		s, err := NewStrategy(p)
		if err != nil {
			if errors.Is(err, ErrInvalidConfig) {
				continue
			}
			t.Fatalf("case %d: %v", i, err)
		}
		schedule, err := s.Schedule(400)
		if err != nil {
			t.Fatalf("case %d schedule: %v", i, err)
		}
		for k := 1; k < len(schedule); k++ {
			if schedule[k].Gt(schedule[k-1]) {
				t.Fatalf("case %d: multiplier rose at tick %d: %s > %s", i, k, schedule[k].Dec(), schedule[k-1].Dec())
			}
			if schedule[k].Lt(p.MinPriceMultiplier) {
				t.Fatalf("case %d: multiplier %s below floor at tick %d", i, schedule[k].Dec(), k)
			}
		}
	}
}

func TestNewStrategyValidation(t *testing.T) {
	base := func() Params {
		return Params{
			MaxPriceMultiplier:    wad(t, "3"),
			MinExpPriceMultiplier: wad(t, "1.2"),
			MinPriceMultiplier:    wad(t, "0.5"),
			StepLinear:            wad(t, "0.057"),
			StepExp:               wad(t, "0.08"),
			TickLength:            900,
		}
	}
	cases := map[string]func(p *Params){
		"zero tick":          func(p *Params) { p.TickLength = 0 },
		"minExp above max":   func(p *Params) { p.MinExpPriceMultiplier = wad(t, "3.5") },
		"min above minExp":   func(p *Params) { p.MinPriceMultiplier = wad(t, "1.3") },
		"zero minExp":        func(p *Params) { p.MinExpPriceMultiplier = new(uint256.Int); p.MinPriceMultiplier = new(uint256.Int) },
		"too slow to decay":  func(p *Params) { p.StepExp = uint256.NewInt(1) },
		"step beyond domain": func(p *Params) { p.StepExp = wad(t, "100") },
	}
	for name, mutate := range cases {
		p := base()
		mutate(&p)
		if _, err := NewStrategy(p); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestScheduleBounds(t *testing.T) {
	s := linearStrategy(t)
	schedule, err := s.Schedule(3)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(schedule) != 4 || !schedule[3].Eq(wad(t, "2.85")) {
		t.Fatalf("unexpected schedule %v", schedule)
	}
	if _, err := s.Schedule(MaxScheduleTicks + 1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func milli(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), uint256.NewInt(1e15))
}
