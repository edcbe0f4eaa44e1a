package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nftlend/config"
	"nftlend/native/auction"
	"nftlend/native/lending"
)

// Observer adapts a Reader to the verification oracle using the contract
// and reserve addresses recorded in the market tables.
type Observer struct {
	Reader *Reader
	// Reserves overrides the reserve asset of a rate symbol. Symbols missing
	// here use RateMarket.Reserve, which is the zero address when unset.
	Reserves map[string]common.Address
}

// ObserveRates reads the on-chain rates for market.
func (o Observer) ObserveRates(ctx context.Context, market config.RateMarket, snapshot lending.ReserveSnapshot) (lending.Rates, error) {
	if market.Address == nil {
		return lending.Rates{}, fmt.Errorf("chain: market %s has no strategy address", market.Symbol)
	}
	reserve, ok := o.Reserves[market.Symbol]
	if !ok {
		reserve = market.Reserve
	}
	return o.Reader.InterestRates(ctx, *market.Address, snapshot, reserve)
}

// ObserveMultiplier reads the on-chain auction multiplier for market.
func (o Observer) ObserveMultiplier(ctx context.Context, market config.AuctionMarket, state auction.State) (*uint256.Int, error) {
	if market.Address == nil {
		return nil, fmt.Errorf("chain: auction %s has no strategy address", market.Name)
	}
	return o.Reader.AuctionPriceMultiplier(ctx, *market.Address, state.StartTimestamp, state.CurrentTimestamp)
}
