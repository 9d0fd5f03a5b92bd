// Package api exposes the REST and WebSocket surface: backtests,
// strategy CRUD, live toggles, diagnostics, and the signal stream.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"stratlab/internal/metrics"
	"stratlab/internal/model"
	"stratlab/internal/strategy"
)

// StrategyStore is the persistence surface the handlers need.
type StrategyStore interface {
	CreateStrategy(rec strategy.Record) (strategy.Record, error)
	UpdateStrategy(rec strategy.Record) error
	SetStrategyRunning(id int64, running bool) error
	DeleteStrategy(id int64) error
	GetStrategy(id int64) (strategy.Record, error)
	ListStrategies() ([]strategy.Record, error)
}

// LiveController starts and stops hosted strategies.
type LiveController interface {
	StartStrategy(rec strategy.Record)
	StopStrategy(ctx context.Context, id int64)
	Running() []int64
}

// Deps wires the server's collaborators. Live, Hub, Metrics and the
// diagnostics probes are optional; nil disables the matching surface.
type Deps struct {
	Source     model.CandleSource
	Strategies StrategyStore
	Live       LiveController
	Hub        *Hub
	Diag       Diagnostics
	Metrics    *metrics.Metrics

	// DefaultLimit is the candle window for backtests (bars).
	DefaultLimit int
}

// Server is the HTTP API server.
type Server struct {
	deps     Deps
	srv      *http.Server
	backtest *LatencyTracker
}

// NewServer creates the API server on addr.
func NewServer(addr string, deps Deps) *Server {
	if deps.DefaultLimit <= 0 {
		deps.DefaultLimit = 1000
	}
	s := &Server{
		deps:     deps,
		backtest: NewLatencyTracker(2048),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/backtest", s.handleBacktest)
	mux.HandleFunc("/api/v1/strategies", s.handleStrategies)
	mux.HandleFunc("/api/v1/strategies/", s.handleStrategyByID)
	mux.HandleFunc("/api/v1/diagnostics", s.handleDiagnostics)
	if deps.Hub != nil {
		mux.HandleFunc("/ws", deps.Hub.HandleWS)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// setCORS sets CORS headers for REST endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// writeJSON encodes v with sonic. Responses are small enough that an
// encode error only ever means a programming bug.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, err := sonic.Marshal(v)
	if err != nil {
		log.Printf("[api] encode error: %v", err)
		return
	}
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
