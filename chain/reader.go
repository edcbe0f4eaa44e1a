package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"nftlend/native/auction"
	"nftlend/native/lending"
)

// ErrUnexpectedResult reports return data that does not match the strategy ABI.
var ErrUnexpectedResult = errors.New("chain: unexpected call result")

// Caller is the subset of the Ethereum RPC used by the reader. ethclient.Client
// satisfies it.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// interestParams mirrors the calculateInterestRates argument tuple.
type interestParams struct {
	LiquidityAdded     *big.Int
	LiquidityTaken     *big.Int
	TotalVariableDebt  *big.Int
	AvailableLiquidity *big.Int
	ReserveFactor      *big.Int
	Reserve            common.Address
}

// Reader performs read-only calls against deployed strategy contracts.
type Reader struct {
	caller Caller
	// block pins calls to a height; nil reads the latest state.
	block *big.Int
}

// NewReader wraps an RPC caller.
func NewReader(caller Caller) (*Reader, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain: caller required")
	}
	return &Reader{caller: caller}, nil
}

// Dial connects to an Ethereum JSON-RPC endpoint. The returned closer releases
// the connection.
func Dial(ctx context.Context, endpoint string) (*Reader, func(), error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, nil, fmt.Errorf("chain: rpc endpoint required")
	}
	client, err := ethclient.DialContext(ctx, trimmed)
	if err != nil {
		return nil, nil, fmt.Errorf("chain: dial: %w", err)
	}
	return &Reader{caller: client}, client.Close, nil
}

// AtBlock returns a reader pinned to the given height.
func (r *Reader) AtBlock(number uint64) *Reader {
	return &Reader{caller: r.caller, block: new(big.Int).SetUint64(number)}
}

// InterestRates calls calculateInterestRates on an interest strategy contract.
func (r *Reader) InterestRates(ctx context.Context, strategy common.Address, snapshot lending.ReserveSnapshot, reserve common.Address) (lending.Rates, error) {
	snapshot = snapshot.Clone()
	params := interestParams{
		LiquidityAdded:     snapshot.LiquidityAdded.ToBig(),
		LiquidityTaken:     snapshot.LiquidityTaken.ToBig(),
		TotalVariableDebt:  snapshot.TotalVariableDebt.ToBig(),
		AvailableLiquidity: snapshot.AvailableLiquidity.ToBig(),
		ReserveFactor:      new(big.Int).SetUint64(snapshot.ReserveFactor),
		Reserve:            reserve,
	}
	out, err := r.call(ctx, interestABI, strategy, "calculateInterestRates", params)
	if err != nil {
		return lending.Rates{}, err
	}
	values, err := toUint256s(out, 2)
	if err != nil {
		return lending.Rates{}, err
	}
	return lending.Rates{LiquidityRate: values[0], VariableBorrowRate: values[1]}, nil
}

// RateStrategy reads the curve parameters of an interest strategy contract and
// builds the equivalent engine strategy.
func (r *Reader) RateStrategy(ctx context.Context, strategy common.Address) (*lending.RateStrategy, error) {
	getters := []string{"OPTIMAL_USAGE_RATIO", "getBaseVariableBorrowRate", "getVariableRateSlope1", "getVariableRateSlope2"}
	values := make([]*uint256.Int, len(getters))
	for i, name := range getters {
		v, err := r.uintGetter(ctx, interestABI, strategy, name)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return lending.NewRateStrategy(values[0], values[1], values[2], values[3])
}

// AuctionPriceMultiplier calls calculateAuctionPriceMultiplier.
func (r *Reader) AuctionPriceMultiplier(ctx context.Context, strategy common.Address, start, now uint64) (*uint256.Int, error) {
	out, err := r.call(ctx, auctionABI, strategy, "calculateAuctionPriceMultiplier",
		new(big.Int).SetUint64(start), new(big.Int).SetUint64(now))
	if err != nil {
		return nil, err
	}
	values, err := toUint256s(out, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// AuctionParams reads the curve parameters of an auction strategy contract.
func (r *Reader) AuctionParams(ctx context.Context, strategy common.Address) (auction.Params, error) {
	var p auction.Params
	for _, getter := range []struct {
		name string
		dst  **uint256.Int
	}{
		{"getMaxPriceMultiplier", &p.MaxPriceMultiplier},
		{"getMinExpPriceMultiplier", &p.MinExpPriceMultiplier},
		{"getMinPriceMultiplier", &p.MinPriceMultiplier},
		{"getStepLinear", &p.StepLinear},
		{"getStepExp", &p.StepExp},
	} {
		v, err := r.uintGetter(ctx, auctionABI, strategy, getter.name)
		if err != nil {
			return auction.Params{}, err
		}
		*getter.dst = v
	}
	tick, err := r.uintGetter(ctx, auctionABI, strategy, "getTickLength")
	if err != nil {
		return auction.Params{}, err
	}
	if !tick.IsUint64() {
		return auction.Params{}, fmt.Errorf("%w: tick length %s", ErrUnexpectedResult, tick.Dec())
	}
	p.TickLength = tick.Uint64()
	return p, nil
}

// AuctionStrategy loads an on-chain curve into an engine strategy.
func (r *Reader) AuctionStrategy(ctx context.Context, strategy common.Address) (*auction.Strategy, error) {
	p, err := r.AuctionParams(ctx, strategy)
	if err != nil {
		return nil, err
	}
	return auction.NewStrategy(p)
}

func (r *Reader) uintGetter(ctx context.Context, contract abi.ABI, to common.Address, name string) (*uint256.Int, error) {
	out, err := r.call(ctx, contract, to, name)
	if err != nil {
		return nil, err
	}
	values, err := toUint256s(out, 1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return values[0], nil
}

func (r *Reader) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if r == nil || r.caller == nil {
		return nil, fmt.Errorf("chain: reader not initialised")
	}
	if (to == common.Address{}) {
		return nil, fmt.Errorf("chain: %s: contract address required", method)
	}
	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, r.block)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s on %s: %w", method, to.Hex(), err)
	}
	values, err := contract.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", ErrUnexpectedResult, method, err)
	}
	return values, nil
}

func toUint256s(values []interface{}, want int) ([]*uint256.Int, error) {
	if len(values) != want {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrUnexpectedResult, len(values), want)
	}
	out := make([]*uint256.Int, want)
	for i, raw := range values {
		b, ok := raw.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("%w: value %d has type %T", ErrUnexpectedResult, i, raw)
		}
		v, overflow := uint256.FromBig(b)
		if overflow {
			return nil, fmt.Errorf("%w: value %d exceeds uint256", ErrUnexpectedResult, i)
		}
		out[i] = v
	}
	return out, nil
}
