package config

// RateStrategy is the TOML form of a kinked interest-rate curve. Rates are
// decimal strings parsed exactly into ray units.
type RateStrategy struct {
	OptimalUsageRatio      string `toml:"OptimalUsageRatio"`
	BaseVariableBorrowRate string `toml:"BaseVariableBorrowRate"`
	VariableRateSlope1     string `toml:"VariableRateSlope1"`
	VariableRateSlope2     string `toml:"VariableRateSlope2"`
	ReserveFactorBps       uint64 `toml:"ReserveFactorBps"`
	// Address optionally names the deployed strategy contract used for live
	// verification.
	Address string `toml:"Address,omitempty"`
	// Reserve is the underlying asset passed to calculateInterestRates.
	Reserve string `toml:"Reserve,omitempty"`
}

// AuctionStrategy is the TOML form of an auction price curve. Multipliers and
// steps are decimal strings parsed exactly into wad units.
type AuctionStrategy struct {
	MaxPriceMultiplier    string `toml:"MaxPriceMultiplier"`
	MinExpPriceMultiplier string `toml:"MinExpPriceMultiplier"`
	MinPriceMultiplier    string `toml:"MinPriceMultiplier"`
	StepLinear            string `toml:"StepLinear"`
	StepExp               string `toml:"StepExp"`
	TickLength            uint64 `toml:"TickLength"`
	Address               string `toml:"Address,omitempty"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	// Headers is a comma separated list of key=value pairs.
	Headers string `toml:"Headers"`
	Traces  bool   `toml:"Traces"`
	Metrics bool   `toml:"Metrics"`
}

// Service groups the settings of the CLI and quote gateway.
type Service struct {
	ListenAddress      string    `toml:"ListenAddress"`
	Environment        string    `toml:"Environment"`
	LogFile            string    `toml:"LogFile"`
	ReportDSN          string    `toml:"ReportDSN"`
	RPCEndpoint        string    `toml:"RPCEndpoint"`
	RateLimitPerSecond float64   `toml:"RateLimitPerSecond"`
	RateLimitBurst     int       `toml:"RateLimitBurst"`
	PausedMarkets      []string  `toml:"PausedMarkets"`
	Telemetry          Telemetry `toml:"Telemetry"`
}

// Markets is the root of a markets.toml file.
type Markets struct {
	Network           string                     `toml:"Network"`
	RateStrategies    map[string]RateStrategy    `toml:"RateStrategies"`
	AuctionStrategies map[string]AuctionStrategy `toml:"AuctionStrategies"`
	Service           Service                    `toml:"Service"`
}
