package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nftlend"

// VerificationMetrics records oracle check outcomes.
type VerificationMetrics struct {
	checks     *prometheus.CounterVec
	mismatches *prometheus.CounterVec
	duration   prometheus.Histogram
}

// QuoteMetrics records quote gateway traffic.
type QuoteMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	verificationOnce     sync.Once
	verificationRegistry *VerificationMetrics

	quoteOnce     sync.Once
	quoteRegistry *QuoteMetrics
)

// Verification returns the lazily registered verification metrics.
func Verification() *VerificationMetrics {
	verificationOnce.Do(func() {
		verificationRegistry = &VerificationMetrics{
			checks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "verification",
				Name:      "checks_total",
				Help:      "Verification checks segmented by vector kind and outcome.",
			}, []string{"kind", "outcome"}),
			mismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "verification",
				Name:      "mismatches_total",
				Help:      "Checks whose engine output differed from the observed value, by market.",
			}, []string{"kind", "market"}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "verification",
				Name:      "run_duration_seconds",
				Help:      "Wall time of a verification run.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			verificationRegistry.checks,
			verificationRegistry.mismatches,
			verificationRegistry.duration,
		)
	})
	return verificationRegistry
}

// RecordCheck counts one check. Failing checks also count as a mismatch for
// the market they targeted.
func (m *VerificationMetrics) RecordCheck(kind, market string, passed bool) {
	if m == nil {
		return
	}
	kind = labelOrUnknown(kind)
	outcome := "pass"
	if !passed {
		outcome = "fail"
		m.mismatches.WithLabelValues(kind, labelOrUnknown(strings.ToUpper(market))).Inc()
	}
	m.checks.WithLabelValues(kind, outcome).Inc()
}

// ObserveRun records the duration of a completed run.
func (m *VerificationMetrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

// Quotes returns the lazily registered gateway metrics.
func Quotes() *QuoteMetrics {
	quoteOnce.Do(func() {
		quoteRegistry = &QuoteMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quotes",
				Name:      "requests_total",
				Help:      "Quote requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quotes",
				Name:      "errors_total",
				Help:      "Quote errors segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "quotes",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for quote handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quotes",
				Name:      "throttles_total",
				Help:      "Quote requests rejected by throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			quoteRegistry.requests,
			quoteRegistry.errors,
			quoteRegistry.latency,
			quoteRegistry.throttles,
		)
	})
	return quoteRegistry
}

// Observe records the outcome of a quote request using the HTTP status that
// was written to the client.
func (m *QuoteMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	route = labelOrUnknown(route)
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(route, strconv.Itoa(status)).Inc()
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordThrottle counts a rejected request. Reasons should be stable strings
// such as "rate_limit" or "paused".
func (m *QuoteMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

func labelOrUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}
