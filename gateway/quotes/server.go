package quotes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nftlend/config"
	"nftlend/gateway/middleware"
	nativecommon "nftlend/native/common"
	"nftlend/native/lending"
	"nftlend/native/wadray"
	"nftlend/observability"
)

// Config wires the quote API.
type Config struct {
	Tables    *config.Tables
	Pauses    nativecommon.PauseView
	RateLimit middleware.RateLimit
	CORS      middleware.CORSConfig
	Metrics   *observability.QuoteMetrics
	Logger    *slog.Logger
	// Now supplies the auction clock when a request omits "now".
	Now func() time.Time
}

type server struct {
	tables  *config.Tables
	pauses  nativecommon.PauseView
	metrics *observability.QuoteMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// New builds the HTTP handler serving rate, accrual and auction quotes.
func New(cfg Config) (http.Handler, error) {
	if cfg.Tables == nil {
		return nil, fmt.Errorf("quotes: market tables required")
	}
	s := &server{
		tables:  cfg.Tables,
		pauses:  cfg.Pauses,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, s.logger, func(*http.Request) {
		s.metrics.RecordThrottle("rate_limit")
	})

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(limiter.Middleware)
		v1.Use(middleware.Instrument(s.metrics, s.logger))
		v1.Get("/markets", s.handleMarkets)
		v1.Get("/rates/{symbol}", s.handleRates)
		v1.Get("/auctions/{strategy}", s.handleAuction)
		v1.Get("/accrual", s.handleAccrual)
	})
	return otelhttp.NewHandler(r, "quotes"), nil
}

type marketsResponse struct {
	Network  string   `json:"network"`
	Rates    []string `json:"rates"`
	Auctions []string `json:"auctions"`
}

func (s *server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, marketsResponse{
		Network:  s.tables.Network,
		Rates:    s.tables.Symbols(),
		Auctions: s.tables.AuctionNames(),
	})
}

type ratesResponse struct {
	Symbol             string      `json:"symbol"`
	Utilization        string      `json:"utilization"`
	LiquidityRate      string      `json:"liquidityRate"`
	VariableBorrowRate string      `json:"variableBorrowRate"`
	ReserveFactorBps   uint64      `json:"reserveFactorBps"`
	Display            rateDisplay `json:"display"`
}

type rateDisplay struct {
	Utilization        string `json:"utilization"`
	LiquidityRate      string `json:"liquidityRate"`
	VariableBorrowRate string `json:"variableBorrowRate"`
}

func (s *server) handleRates(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	market, err := s.tables.Rate(symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := nativecommon.Guard(s.pauses, market.Symbol); err != nil {
		s.metrics.RecordThrottle("paused")
		s.writeError(w, err)
		return
	}
	query := r.URL.Query()
	rf := market.ReserveFactorBps
	if raw := query.Get("reserveFactor"); raw != "" {
		if rf, err = strconv.ParseUint(raw, 10, 64); err != nil {
			s.writeError(w, badRequest("reserveFactor: %v", err))
			return
		}
	}

	var utilization *uint256.Int
	switch {
	case query.Get("utilization") != "":
		if utilization, err = wadray.ParseRay(query.Get("utilization")); err != nil {
			s.writeError(w, err)
			return
		}
	case query.Get("debt") != "" || query.Get("available") != "":
		snapshot := lending.ReserveSnapshot{ReserveFactor: rf}
		if snapshot.TotalVariableDebt, err = parseAmount("debt", query.Get("debt")); err != nil {
			s.writeError(w, err)
			return
		}
		if snapshot.AvailableLiquidity, err = parseAmount("available", query.Get("available")); err != nil {
			s.writeError(w, err)
			return
		}
		if utilization, err = lending.CalculateUtilization(snapshot); err != nil {
			s.writeError(w, err)
			return
		}
	default:
		s.writeError(w, badRequest("utilization or debt/available required"))
		return
	}

	quoted, err := market.Strategy.CalculateRates(utilization, rf)
	if err != nil {
		s.writeError(w, err)
		return
	}
	observability.Markets().RecordRates(market.Symbol, quoted.LiquidityRate, quoted.VariableBorrowRate)
	writeJSON(w, http.StatusOK, ratesResponse{
		Symbol:             market.Symbol,
		Utilization:        utilization.Dec(),
		LiquidityRate:      quoted.LiquidityRate.Dec(),
		VariableBorrowRate: quoted.VariableBorrowRate.Dec(),
		ReserveFactorBps:   rf,
		Display: rateDisplay{
			Utilization:        wadray.FormatDecimal(utilization, wadray.RayDecimals),
			LiquidityRate:      wadray.FormatDecimal(quoted.LiquidityRate, wadray.RayDecimals),
			VariableBorrowRate: wadray.FormatDecimal(quoted.VariableBorrowRate, wadray.RayDecimals),
		},
	})
}

type auctionResponse struct {
	Strategy   string   `json:"strategy"`
	Start      uint64   `json:"start,omitempty"`
	Now        uint64   `json:"now,omitempty"`
	Ticks      uint64   `json:"ticks"`
	Multiplier string   `json:"multiplier,omitempty"`
	Display    string   `json:"display,omitempty"`
	Schedule   []string `json:"schedule,omitempty"`
}

func (s *server) handleAuction(w http.ResponseWriter, r *http.Request) {
	market, err := s.tables.Auction(chi.URLParam(r, "strategy"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	query := r.URL.Query()
	if raw := query.Get("ticks"); raw != "" {
		ticks, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, badRequest("ticks: %v", err))
			return
		}
		schedule, err := market.Strategy.Schedule(ticks)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out := make([]string, len(schedule))
		for i, v := range schedule {
			out[i] = v.Dec()
		}
		writeJSON(w, http.StatusOK, auctionResponse{Strategy: market.Name, Ticks: ticks, Schedule: out})
		return
	}

	if query.Get("start") == "" {
		s.writeError(w, badRequest("start or ticks required"))
		return
	}
	start, err := parseTimestamp("start", query.Get("start"), 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	now, err := parseTimestamp("now", query.Get("now"), uint64(s.now().Unix()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	multiplier, err := market.Strategy.PriceMultiplier(start, now)
	if err != nil {
		s.writeError(w, err)
		return
	}
	observability.Markets().RecordMultiplier(market.Name, multiplier)
	writeJSON(w, http.StatusOK, auctionResponse{
		Strategy:   market.Name,
		Start:      start,
		Now:        now,
		Ticks:      (now - start) / market.Strategy.TickLength(),
		Multiplier: multiplier.Dec(),
		Display:    wadray.FormatDecimal(multiplier, wadray.WadDecimals),
	})
}

type accrualResponse struct {
	Mode    string `json:"mode"`
	Rate    string `json:"rate"`
	Elapsed uint64 `json:"dt"`
	Factor  string `json:"factor"`
	Index   string `json:"index,omitempty"`
	Display string `json:"display"`
}

func (s *server) handleAccrual(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rate, err := wadray.ParseRay(query.Get("rate"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	dt, err := parseTimestamp("dt", query.Get("dt"), 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	mode := lending.InterestModeCompounded
	if raw := query.Get("mode"); raw != "" {
		if mode, err = lending.ParseInterestMode(raw); err != nil {
			s.writeError(w, err)
			return
		}
	}
	factor, err := lending.CumulatedInterest(rate, dt, mode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := accrualResponse{
		Mode:    mode.String(),
		Rate:    rate.Dec(),
		Elapsed: dt,
		Factor:  factor.Dec(),
		Display: wadray.FormatDecimal(factor, wadray.RayDecimals),
	}
	if raw := query.Get("index"); raw != "" {
		previous, err := wadray.ParseRay(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		index, err := lending.UpdateIndex(previous, rate, dt, mode)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Index = index.Dec()
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	switch {
	case errors.Is(err, config.ErrUnknownMarket):
		status, code = http.StatusNotFound, "unknown_market"
	case errors.Is(err, nativecommon.ErrMarketPaused):
		status, code = http.StatusServiceUnavailable, "market_paused"
	case errors.Is(err, lending.ErrInvalidConfig):
		status, code = http.StatusBadRequest, "invalid_config"
	case errors.Is(err, lending.ErrInvalidTimeRange):
		status, code = http.StatusBadRequest, "invalid_time_range"
	case errors.Is(err, lending.ErrIndexOverflow):
		status, code = http.StatusBadRequest, "index_overflow"
	case errors.Is(err, wadray.ErrOverflow):
		status, code = http.StatusBadRequest, "overflow"
	case errors.Is(err, wadray.ErrArithmetic):
		status, code = http.StatusBadRequest, "arithmetic"
	case errors.Is(err, wadray.ErrInvalidDecimal), errors.Is(err, errBadRequest):
		status, code = http.StatusBadRequest, "bad_request"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("quote failed", slog.Any("error", err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseAmount(name, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, badRequest("%s: %v", name, err)
	}
	return v, nil
}

func parseTimestamp(name, raw string, fallback uint64) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, badRequest("%s: %v", name, err)
	}
	return v, nil
}
