// Package metrics provides Prometheus instrumentation for the roulette
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsTotal counts accepted bets.
	BetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roulette_bets_total",
		Help: "Total number of bets accepted across all rounds",
	})

	// BetRejectionsTotal counts rejected bet attempts, partitioned by
	// error code.
	BetRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roulette_bet_rejections_total",
		Help: "Bets rejected during validation, by error code",
	}, []string{"code"})

	// RoundsSettled counts rounds that reached SETTLED.
	RoundsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roulette_rounds_settled_total",
		Help: "Total number of rounds settled",
	})

	// PayoutTotal is the cumulative amount disbursed to winning bets.
	PayoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roulette_payout_total",
		Help: "Cumulative prize amount disbursed to winning bets",
	})

	// ResidualDrainTotal is the cumulative amount drained to the
	// operator at settlement.
	ResidualDrainTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roulette_residual_drain_total",
		Help: "Cumulative residual pool amount drained to the operator",
	})

	// PoolValue tracks the current pool balance per round.
	PoolValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roulette_pool_value",
		Help: "Current pool balance for a round",
	}, []string{"round"})

	// OpenWithdrawalsTotal counts admin withdrawals executed while a
	// round is still OPEN — a trust-model risk flagged in spec §9
	// open question 6, kept observable rather than forbidden.
	OpenWithdrawalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roulette_open_withdrawals_total",
		Help: "Admin withdrawals executed while the round was still OPEN",
	})

	// UnderfundedRoundsTotal counts rounds created or updated with a
	// pool below the worst-case-payout sizing recommendation of spec
	// §9.3 — advisory only, the round is still admitted.
	UnderfundedRoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roulette_underfunded_rounds_total",
		Help: "Rounds created or updated with a pool below the worst-case payout recommendation",
	})

	// WebSocketClients tracks connected live-feed WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roulette_websocket_clients",
		Help: "Number of connected WebSocket clients on the live feed",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roulette_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roulette_http_request_duration_seconds",
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
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
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
