// Package backtest simulates a declarative strategy over a candle series:
// bar-by-bar condition evaluation, a single-position trade lifecycle with
// fees and stop/take exits, and aggregate performance metrics.
//
// The simulator is pure computation — no I/O, no shared state, no
// goroutines. Every call gets its own indicator cache over an immutable
// series snapshot, so concurrent simulations never interfere.
package backtest

import (
	"stratlab/internal/model"
	"stratlab/internal/strategy"
)

// FeeRate is the flat taker fee applied to entry and exit notional
// (5 basis points per side).
const FeeRate = 0.0005

// Result list trimming, as the dashboard consumes it: only the most
// recent trades, and a thinned equity curve.
const (
	maxTradesReturned = 50
	equityStride      = 5
)

// DefaultInitialBalance is the simulated starting capital when the
// request does not set one.
const DefaultInitialBalance = 1000.0

// Request is the core input contract for one simulation run.
type Request struct {
	Candles        model.Series   `json:"candles"`
	Logic          strategy.Logic `json:"logic"`
	InitialBalance float64        `json:"initial_balance"`
}

// Audit holds the secondary performance statistics.
type Audit struct {
	MaxDrawdown  float64 `json:"max_drawdown"`
	ProfitFactor float64 `json:"profit_factor"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	Expectancy   float64 `json:"expectancy"`
}

// Metrics summarizes a completed simulation.
type Metrics struct {
	FinalBalance   float64 `json:"final_balance"`
	TotalTrades    int     `json:"total_trades"`
	WinRate        float64 `json:"win_rate"`
	TotalReturnPct float64 `json:"total_return_pct"`
	Audit          Audit   `json:"audit"`
}

// Result is the core output contract. On failure only Error is set; on
// success Error is empty. Either way the simulation never panics and
// never emits a non-finite number.
type Result struct {
	Metrics *Metrics            `json:"metrics,omitempty"`
	Trades  []model.ClosedTrade `json:"trades,omitempty"`
	Equity  []model.EquityPoint `json:"equity,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// errResult builds a failure Result.
func errResult(msg string) Result {
	return Result{Error: msg}
}
