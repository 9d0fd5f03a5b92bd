package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"stratlab/internal/backtest"
	"stratlab/internal/logger"
	"stratlab/internal/model"
	"stratlab/internal/strategy"
)

// BacktestRequest is the POST /api/v1/backtest body. Logic uses the
// strategy builder schema. Candles, when present, are simulated as-is
// and symbol/timeframe are not fetched.
type BacktestRequest struct {
	Symbol         string         `json:"symbol"`
	TF             int            `json:"timeframe"` // seconds
	Limit          int            `json:"limit,omitempty"`
	InitialBalance float64        `json:"initial_balance,omitempty"`
	Logic          strategy.Logic `json:"logic"`
	Candles        model.Series   `json:"candles,omitempty"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req BacktestRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	mm := s.deps.Metrics
	if mm != nil {
		mm.BacktestsTotal.Inc()
	}

	candles := req.Candles
	if len(candles) == 0 {
		if req.Symbol == "" || req.TF <= 0 {
			writeError(w, http.StatusBadRequest, "symbol and timeframe are required")
			return
		}
		limit := req.Limit
		if limit <= 0 || limit > 5000 {
			limit = s.deps.DefaultLimit
		}

		ctx := logger.WithRunID(r.Context(), logger.GenerateRunID(req.Symbol, time.Now()))

		var err error
		candles, err = s.deps.Source.Candles(ctx, req.Symbol, req.TF, limit)
		if err != nil {
			log.Printf("[api] candle fetch failed for %s (run %s): %v", req.Symbol, logger.RunID(ctx), err)
			if mm != nil {
				mm.BacktestErrors.Inc()
			}
			// Market data problems surface as a structured result, not a 5xx.
			writeJSON(w, http.StatusOK, backtest.Result{Error: "no market data"})
			return
		}
	}

	start := time.Now()
	result := backtest.Run(backtest.Request{
		Candles:        candles,
		Logic:          req.Logic,
		InitialBalance: req.InitialBalance,
	})
	took := time.Since(start)
	s.backtest.Record(float64(took.Milliseconds()))
	if mm != nil {
		mm.BacktestDur.Observe(took.Seconds())
		mm.CandlesPerRun.Observe(float64(len(candles)))
		if result.Error != "" {
			mm.BacktestErrors.Inc()
		} else if result.Metrics != nil {
			mm.TradesPerRun.Observe(float64(result.Metrics.TotalTrades))
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		recs, err := s.deps.Strategies.ListStrategies()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if recs == nil {
			recs = []strategy.Record{}
		}
		writeJSON(w, http.StatusOK, recs)

	case http.MethodPost:
		rec, ok := s.decodeStrategy(w, r)
		if !ok {
			return
		}
		created, err := s.deps.Strategies.CreateStrategy(rec)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleStrategyByID(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/strategies/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid strategy id")
		return
	}

	if action == "toggle" {
		s.handleToggle(w, r, id)
		return
	}
	if action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.deps.Strategies.GetStrategy(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPut:
		rec, ok := s.decodeStrategy(w, r)
		if !ok {
			return
		}
		rec.ID = id
		if err := s.deps.Strategies.UpdateStrategy(rec); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		// A running strategy picks up the new logic immediately.
		if s.deps.Live != nil {
			if stored, err := s.deps.Strategies.GetStrategy(id); err == nil && stored.Running {
				s.deps.Live.StartStrategy(stored)
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case http.MethodDelete:
		if s.deps.Live != nil {
			s.deps.Live.StopStrategy(r.Context(), id)
		}
		if err := s.deps.Strategies.DeleteStrategy(id); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type toggleRequest struct {
	Running bool `json:"running"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req toggleRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec, err := s.deps.Strategies.GetStrategy(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := s.deps.Strategies.SetStrategyRunning(id, req.Running); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.deps.Live != nil {
		if req.Running {
			rec.Running = true
			s.deps.Live.StartStrategy(rec)
		} else {
			s.deps.Live.StopStrategy(r.Context(), id)
		}
	}

	log.Printf("[api] strategy %d (%s) running=%v", id, rec.Name, req.Running)
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "running": req.Running})
}

// decodeStrategy reads and validates a strategy record body.
func (s *Server) decodeStrategy(w http.ResponseWriter, r *http.Request) (strategy.Record, bool) {
	var rec strategy.Record
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return strategy.Record{}, false
	}
	if rec.Name == "" || rec.Symbol == "" || rec.TF <= 0 {
		writeError(w, http.StatusBadRequest, "name, symbol and tf are required")
		return strategy.Record{}, false
	}
	rec.Logic.ApplyDefaults()
	if err := strategy.Validate(rec.Logic); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return strategy.Record{}, false
	}
	return rec, true
}
