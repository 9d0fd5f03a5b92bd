package api

import (
	"context"
	"net/http"
	"time"
)

// Diagnostics holds optional health probes. A nil probe reports its
// target as "disabled" rather than failing the whole check.
type Diagnostics struct {
	// Exchange pings the exchange REST API and returns round-trip time.
	Exchange func(ctx context.Context) (time.Duration, error)
	// DB pings the candle/strategy store.
	DB func(ctx context.Context) error
	// Redis pings the series cache.
	Redis func(ctx context.Context) error
	// Risk reports the live risk guard state.
	Risk func() map[string]interface{}
}

// probeResult is the per-target diagnostics shape.
type probeResult struct {
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func runProbe(ctx context.Context, probe func(context.Context) error) probeResult {
	if probe == nil {
		return probeResult{Status: "disabled"}
	}
	start := time.Now()
	if err := probe(ctx); err != nil {
		return probeResult{Status: "down", Error: err.Error()}
	}
	return probeResult{
		Status:    "ok",
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	out := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if s.deps.Diag.Exchange != nil {
		rtt, err := s.deps.Diag.Exchange(ctx)
		if err != nil {
			out["exchange"] = probeResult{Status: "down", Error: err.Error()}
		} else {
			out["exchange"] = probeResult{
				Status:    "ok",
				LatencyMs: float64(rtt.Microseconds()) / 1000.0,
			}
		}
	} else {
		out["exchange"] = probeResult{Status: "disabled"}
	}

	out["database"] = runProbe(ctx, s.deps.Diag.DB)
	out["redis"] = runProbe(ctx, s.deps.Diag.Redis)

	if s.deps.Diag.Risk != nil {
		out["risk"] = s.deps.Diag.Risk()
	}

	p50, p95, p99 := s.backtest.Percentiles()
	out["backtest_latency"] = map[string]interface{}{
		"p50_ms":  p50,
		"p95_ms":  p95,
		"p99_ms":  p99,
		"samples": s.backtest.Count(),
	}

	if s.deps.Live != nil {
		out["running_strategies"] = s.deps.Live.Running()
	}
	if s.deps.Hub != nil {
		out["ws_clients"] = s.deps.Hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, out)
}
