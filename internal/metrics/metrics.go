// Package metrics registers Prometheus metrics for the strategy engine
// and serves them together with a health endpoint.
package metrics

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the strategy engine services.
type Metrics struct {
	// Backtest core
	BacktestsTotal prometheus.Counter
	BacktestErrors prometheus.Counter
	BacktestDur    prometheus.Histogram
	CandlesPerRun  prometheus.Histogram
	TradesPerRun   prometheus.Histogram

	// Candle source chain
	CandleFetches   *prometheus.CounterVec // labels: source (exchange|cache|sqlite)
	CandleCacheHits prometheus.Counter
	CandleCacheMiss prometheus.Counter

	// Live pipeline
	CandlesIngested prometheus.Counter
	WSReconnects    prometheus.Counter
	RingBufOverflow prometheus.Counter
	FanoutDrops     *prometheus.CounterVec // labels: subscriber
	LiveEvals       prometheus.Counter
	LiveEvalDur     prometheus.Histogram
	SignalsTotal    *prometheus.CounterVec // labels: action
	RiskVetoes      prometheus.Counter

	// Execution bridge
	OrdersTotal *prometheus.CounterVec // labels: status
}

// New registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry so parallel instances never collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BacktestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratlab_backtests_total",
			Help: "Total backtest simulations run",
		}),
		BacktestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratlab_backtest_errors_total",
			Help: "Backtests that returned a structured error",
		}),
		BacktestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stratlab_backtest_duration_seconds",
			Help:    "Wall time of one backtest simulation",
			Buckets: prometheus.DefBuckets,
		}),
		CandlesPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stratlab_backtest_candles",
			Help:    "Candles per backtest run",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),
		TradesPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stratlab_backtest_trades",
			Help:    "Closed trades per backtest run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),

		CandleFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratlab_candle_fetches_total",
			Help: "Candle series fetches by source",
		}, []string{"source"}),
		CandleCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratlab_candle_cache_hits_total",
			Help: "Candle series served from the Redis cache",
		}),
		CandleCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratlab_candle_cache_misses_total",
			Help: "Candle series not found in the Redis cache",
		}),

		CandlesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratlab_candles_ingested_total",
			Help: "Closed candles received from the market data feed",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratlab_ws_reconnects_total",
			Help: "Market data WebSocket reconnection attempts",
		}),
		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratlab_ringbuf_overflow_total",
			Help: "Candles dropped because the ingest ring buffer was full",
		}),
		FanoutDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratlab_fanout_drops_total",
			Help: "Candles dropped per slow strategy session",
		}, []string{"subscriber"}),
		LiveEvals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratlab_live_evaluations_total",
			Help: "Per-strategy bar-close evaluations",
		}),
		LiveEvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stratlab_live_evaluation_duration_seconds",
			Help:    "Latency of one strategy evaluation on bar close",
			Buckets: prometheus.DefBuckets,
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratlab_signals_total",
			Help: "Signals emitted by the live engine",
		}, []string{"action"}),
		RiskVetoes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stratlab_risk_vetoes_total",
			Help: "Entry signals vetoed by the risk guard",
		}),

		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stratlab_orders_total",
			Help: "Execution bridge order outcomes",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.BacktestsTotal, m.BacktestErrors, m.BacktestDur, m.CandlesPerRun, m.TradesPerRun,
		m.CandleFetches, m.CandleCacheHits, m.CandleCacheMiss,
		m.CandlesIngested, m.WSReconnects, m.RingBufOverflow, m.FanoutDrops,
		m.LiveEvals, m.LiveEvalDur, m.SignalsTotal, m.RiskVetoes,
		m.OrdersTotal,
	)
	return m
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
