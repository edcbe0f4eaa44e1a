package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const interestStrategyABI = `[
  {"type":"function","name":"calculateInterestRates","stateMutability":"view",
   "inputs":[{"name":"params","type":"tuple","components":[
     {"name":"liquidityAdded","type":"uint256"},
     {"name":"liquidityTaken","type":"uint256"},
     {"name":"totalVariableDebt","type":"uint256"},
     {"name":"availableLiquidity","type":"uint256"},
     {"name":"reserveFactor","type":"uint256"},
     {"name":"reserve","type":"address"}]}],
   "outputs":[{"name":"liquidityRate","type":"uint256"},{"name":"variableBorrowRate","type":"uint256"}]},
  {"type":"function","name":"OPTIMAL_USAGE_RATIO","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getBaseVariableBorrowRate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getVariableRateSlope1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getVariableRateSlope2","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const auctionStrategyABI = `[
  {"type":"function","name":"calculateAuctionPriceMultiplier","stateMutability":"view",
   "inputs":[{"name":"auctionStartTimestamp","type":"uint256"},{"name":"currentTimestamp","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getMaxPriceMultiplier","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getMinExpPriceMultiplier","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getMinPriceMultiplier","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getStepLinear","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getStepExp","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getTickLength","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	interestABI = mustParseABI(interestStrategyABI)
	auctionABI  = mustParseABI(auctionStrategyABI)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return parsed
}
