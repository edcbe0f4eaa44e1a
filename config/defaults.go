package config

// Default returns the built-in market presets. The "exp" curve decays
// exponentially from 3x to 1.2x before falling linearly to 0.5x; "linear"
// has no exponential phase.
func Default() *Markets {
	cfg := &Markets{
		Network: defaultNetwork,
		RateStrategies: map[string]RateStrategy{
			"DAI": {
				OptimalUsageRatio:      "0.8",
				BaseVariableBorrowRate: "0",
				VariableRateSlope1:     "0.04",
				VariableRateSlope2:     "0.75",
				ReserveFactorBps:       1_000,
			},
			"USDC": {
				OptimalUsageRatio:      "0.9",
				BaseVariableBorrowRate: "0",
				VariableRateSlope1:     "0.04",
				VariableRateSlope2:     "0.6",
				ReserveFactorBps:       1_000,
			},
			"WETH": {
				OptimalUsageRatio:      "0.8",
				BaseVariableBorrowRate: "0.01",
				VariableRateSlope1:     "0.038",
				VariableRateSlope2:     "0.8",
				ReserveFactorBps:       1_500,
			},
		},
		AuctionStrategies: map[string]AuctionStrategy{
			"exp": {
				MaxPriceMultiplier:    "3",
				MinExpPriceMultiplier: "1.2",
				MinPriceMultiplier:    "0.5",
				StepLinear:            "0.057",
				StepExp:               "0.08",
				TickLength:            900,
			},
			"linear": {
				MaxPriceMultiplier:    "3",
				MinExpPriceMultiplier: "1",
				MinPriceMultiplier:    "0.5",
				StepLinear:            "0.05",
				StepExp:               "0",
				TickLength:            60,
			},
		},
	}
	// normalize cannot fail on the presets.
	_ = cfg.normalize()
	return cfg
}
