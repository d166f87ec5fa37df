// Package metrics provides Prometheus instrumentation for the portfolio engine.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts completed trades, partitioned by type (buy/sell).
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_trades_total",
		Help: "Total number of trades executed",
	}, []string{"type"})

	// TradeRejections counts trades refused by the ledger, by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_trade_rejections_total",
		Help: "Trades rejected by the ledger",
	}, []string{"reason"})

	// TradeLatency tracks how long a trade request takes to apply.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// TradeVolume tracks cumulative traded notional per instrument.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_trade_notional_total",
		Help: "Cumulative traded notional in USD",
	}, []string{"instrument_id", "type"})

	// FeesTotal tracks cumulative fees charged.
	FeesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_fees_total",
		Help: "Cumulative trading fees in USD",
	})

	// PriceTicks counts applied instrument price updates.
	PriceTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_price_ticks_total",
		Help: "Instrument price updates applied",
	})

	// InstrumentPrice is the latest price per instrument.
	InstrumentPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "portfolio_instrument_price",
		Help: "Latest simulated instrument price",
	}, []string{"instrument_id"})

	// CashBalance is the ledger's cash balance.
	CashBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_cash_balance",
		Help: "Cash balance in USD",
	})

	// PortfolioValue is the market value of all holdings.
	PortfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_holdings_value",
		Help: "Market value of all holdings in USD",
	})

	// Holdings tracks the number of open holdings.
	Holdings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_holdings",
		Help: "Number of instruments currently held",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// JournalErrors counts failed journal writes.
	JournalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_journal_errors_total",
		Help: "Failed audit journal writes",
	}, []string{"op"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// unmatchedRoute labels requests no route matched, so arbitrary paths from
// scanners share one series.
const unmatchedRoute = "unmatched"

// routePattern uses the chi route pattern for the path label to avoid high
// cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so WebSocket upgrades
// work behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: %T does not support hijacking", w.ResponseWriter)
	}
	return h.Hijack()
}
