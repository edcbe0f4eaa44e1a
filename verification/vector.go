package verification

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"nftlend/native/lending"
	"nftlend/native/wadray"
)

// Kind selects which engine a vector exercises.
type Kind string

const (
	KindRates   Kind = "rates"
	KindAccrual Kind = "accrual"
	KindAuction Kind = "auction"
)

// ErrInvalidVector reports a vector that cannot be evaluated as written.
var ErrInvalidVector = errors.New("verification: invalid vector")

// Vector is one expected engine output. Amounts, rates and multipliers are
// integer strings in their native ray or wad scale.
type Vector struct {
	Name        string   `yaml:"name"`
	Kind        Kind     `yaml:"kind"`
	Strategy    string   `yaml:"strategy,omitempty"`
	Inputs      Inputs   `yaml:"inputs"`
	Expected    Expected `yaml:"expected,omitempty"`
	ExpectError string   `yaml:"expectError,omitempty"`
}

// Inputs carries the per-kind arguments. Unused fields are left empty.
type Inputs struct {
	// Rates: either Utilization or Snapshot. ReserveFactorBps, when set,
	// takes precedence over the snapshot's factor; with neither set the
	// market's configured factor applies.
	Utilization      string    `yaml:"utilization,omitempty"`
	ReserveFactorBps *uint64   `yaml:"reserveFactorBps,omitempty"`
	Snapshot         *Snapshot `yaml:"snapshot,omitempty"`

	// Accrual.
	Rate  string `yaml:"rate,omitempty"`
	Dt    uint64 `yaml:"dt,omitempty"`
	Mode  string `yaml:"mode,omitempty"`
	Index string `yaml:"index,omitempty"`

	// Auction.
	Start uint64 `yaml:"start,omitempty"`
	Now   uint64 `yaml:"now,omitempty"`
}

// Snapshot is the YAML form of lending.ReserveSnapshot.
type Snapshot struct {
	LiquidityAdded     string `yaml:"liquidityAdded,omitempty"`
	LiquidityTaken     string `yaml:"liquidityTaken,omitempty"`
	TotalVariableDebt  string `yaml:"totalVariableDebt"`
	AvailableLiquidity string `yaml:"availableLiquidity"`
	ReserveFactorBps   uint64 `yaml:"reserveFactorBps,omitempty"`
}

// Expected lists the values a vector asserts. Empty fields are not compared.
type Expected struct {
	Utilization        string `yaml:"utilization,omitempty"`
	LiquidityRate      string `yaml:"liquidityRate,omitempty"`
	VariableBorrowRate string `yaml:"variableBorrowRate,omitempty"`
	Index              string `yaml:"index,omitempty"`
	Multiplier         string `yaml:"multiplier,omitempty"`
}

// LoadVectors reads a YAML list of vectors and checks their shape.
func LoadVectors(path string) ([]Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseVectors(data)
}

// ParseVectors decodes vectors from YAML.
func ParseVectors(data []byte) ([]Vector, error) {
	var vectors []Vector
	if err := yaml.Unmarshal(data, &vectors); err != nil {
		return nil, fmt.Errorf("decode vectors: %w", err)
	}
	seen := make(map[string]struct{}, len(vectors))
	for i := range vectors {
		v := &vectors[i]
		v.Name = strings.TrimSpace(v.Name)
		if v.Name == "" {
			v.Name = fmt.Sprintf("vector-%d", i)
		}
		if _, dup := seen[v.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidVector, v.Name)
		}
		seen[v.Name] = struct{}{}
		v.Kind = Kind(strings.ToLower(strings.TrimSpace(string(v.Kind))))
		switch v.Kind {
		case KindRates, KindAuction:
			if strings.TrimSpace(v.Strategy) == "" {
				return nil, fmt.Errorf("%w: %s: strategy required", ErrInvalidVector, v.Name)
			}
		case KindAccrual:
		default:
			return nil, fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidVector, v.Name, v.Kind)
		}
		if v.ExpectError != "" {
			if _, ok := errorCodes[v.ExpectError]; !ok {
				return nil, fmt.Errorf("%w: %s: unknown expectError %q", ErrInvalidVector, v.Name, v.ExpectError)
			}
		}
	}
	return vectors, nil
}

func (s *Snapshot) toReserve() (lending.ReserveSnapshot, error) {
	var out lending.ReserveSnapshot
	var err error
	if out.LiquidityAdded, err = parseInt("liquidityAdded", s.LiquidityAdded); err != nil {
		return out, err
	}
	if out.LiquidityTaken, err = parseInt("liquidityTaken", s.LiquidityTaken); err != nil {
		return out, err
	}
	if out.TotalVariableDebt, err = parseInt("totalVariableDebt", s.TotalVariableDebt); err != nil {
		return out, err
	}
	if out.AvailableLiquidity, err = parseInt("availableLiquidity", s.AvailableLiquidity); err != nil {
		return out, err
	}
	out.ReserveFactor = s.ReserveFactorBps
	return out, nil
}

// parseInt accepts a raw integer or, with a trailing "ray"/"wad" suffix, a
// decimal that is scaled exactly. An empty value is zero.
func parseInt(field, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	var (
		v   *uint256.Int
		err error
	)
	switch {
	case strings.HasSuffix(trimmed, "ray"):
		v, err = wadray.ParseRay(strings.TrimSpace(strings.TrimSuffix(trimmed, "ray")))
	case strings.HasSuffix(trimmed, "wad"):
		v, err = wadray.ParseWad(strings.TrimSpace(strings.TrimSuffix(trimmed, "wad")))
	default:
		v, err = wadray.ParseDecimal(trimmed, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidVector, field, err)
	}
	return v, nil
}
