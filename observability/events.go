package observability

import (
	"math/big"
	"strings"
	"sync"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

type marketMetrics struct {
	borrowRate    *prometheus.GaugeVec
	liquidityRate *prometheus.GaugeVec
	multiplier    *prometheus.GaugeVec
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *marketMetrics

	rayFloat = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil))
	wadFloat = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
)

// Markets returns the gauges that expose the last quoted value per market.
func Markets() *marketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &marketMetrics{
			borrowRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "market",
				Name:      "variable_borrow_rate",
				Help:      "Last quoted variable borrow rate as a fraction per year.",
			}, []string{"symbol"}),
			liquidityRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "market",
				Name:      "liquidity_rate",
				Help:      "Last quoted liquidity rate as a fraction per year.",
			}, []string{"symbol"}),
			multiplier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "auction",
				Name:      "price_multiplier",
				Help:      "Last quoted auction price multiplier.",
			}, []string{"strategy"}),
		}
		prometheus.MustRegister(marketRegistry.borrowRate, marketRegistry.liquidityRate, marketRegistry.multiplier)
	})
	return marketRegistry
}

// RecordRates publishes ray-scaled rates for a symbol. Gauges are lossy and
// for dashboards only.
func (m *marketMetrics) RecordRates(symbol string, liquidityRate, borrowRate *uint256.Int) {
	if m == nil {
		return
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	m.liquidityRate.WithLabelValues(symbol).Set(scaled(liquidityRate, rayFloat))
	m.borrowRate.WithLabelValues(symbol).Set(scaled(borrowRate, rayFloat))
}

// RecordMultiplier publishes a wad-scaled auction multiplier.
func (m *marketMetrics) RecordMultiplier(strategy string, multiplier *uint256.Int) {
	if m == nil {
		return
	}
	m.multiplier.WithLabelValues(strings.ToLower(strings.TrimSpace(strategy))).Set(scaled(multiplier, wadFloat))
}

func scaled(v *uint256.Int, unit *big.Float) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v.ToBig()), unit).Float64()
	return f
}
