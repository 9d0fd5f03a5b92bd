package backtest

import (
	"math"

	"stratlab/internal/model"
	"stratlab/internal/strategy"
)

// position is the ephemeral in-trade state. The simulator holds at most
// one; the FLAT/IN_POSITION alternation below is what structurally
// prevents two concurrent positions.
type position struct {
	entryTime  int // bar index, resolved to a timestamp on exit
	entryPrice float64
	qty        float64
}

// Run simulates the strategy over the candle series and returns metrics,
// the recent trade log, and the equity curve. Input problems surface as
// Result.Error — a backtest must never crash its host.
func Run(req Request) Result {
	candles := req.Candles.Normalize()
	if len(candles) < 2 {
		return errResult("no market data")
	}

	logic := req.Logic
	logic.ApplyDefaults()
	if err := strategy.Validate(logic); err != nil {
		return errResult("invalid strategy logic: " + err.Error())
	}

	eval := strategy.NewEvaluator(candles)
	if err := eval.Prepare(logic); err != nil {
		return errResult("indicator error: " + err.Error())
	}

	initial := req.InitialBalance
	if initial <= 0 {
		initial = DefaultInitialBalance
	}
	balance := initial

	// Buy-and-hold reference: convert the starting balance at the first
	// close and mark it to market each bar. Comparison only.
	buyHoldQty := 0.0
	if first := candles[0].Close; first > 0 {
		buyHoldQty = initial / first
	}

	var (
		pos    *position
		trades []model.ClosedTrade
		equity = make([]model.EquityPoint, 0, len(candles)-1)
	)

	// Bar 0 exists only as the crossover reference for bar 1.
	for i := 1; i < len(candles); i++ {
		bar := &candles[i]

		// ── exit first: stop-loss has priority over take-profit ──
		if pos != nil {
			exitPrice, reason := checkExit(pos, bar, logic.StopLossPct, logic.TakeProfitPct)
			if reason != "" {
				balance += closeTrade(&trades, pos, candles, i, exitPrice, reason)
				pos = nil
			}
		}

		// ── entry ──
		if pos == nil {
			satisfied, evaluable, err := eval.EvalAt(logic.Conditions, i)
			if err != nil {
				return errResult("evaluation error: " + err.Error())
			}
			if satisfied && evaluable {
				entryFee := bar.Close * logic.Quantity * FeeRate
				// Insufficient simulated capital is a no-op, not an error.
				if balance > entryFee {
					balance -= entryFee
					pos = &position{entryTime: i, entryPrice: bar.Close, qty: logic.Quantity}
				}
			}
		}

		equity = append(equity, model.EquityPoint{
			Time:    bar.TS,
			Balance: balance,
			BuyHold: buyHoldQty * bar.Close,
		})
	}

	metrics := Summarize(trades, equity, initial, balance)
	return Result{
		Metrics: &metrics,
		Trades:  lastTrades(trades, maxTradesReturned),
		Equity:  thinEquity(equity, equityStride),
	}
}

func checkExit(pos *position, bar *model.Candle, slPct, tpPct float64) (float64, model.ExitReason) {
	return EvaluateExit(pos.entryPrice, bar, slPct, tpPct)
}

// EvaluateExit applies the per-bar exit rules for an open position. A
// side with percentage 0 is disabled. The fill lands on the computed
// level, or on the bar's open when the bar gapped through the level
// overnight. Shared with the live engine so backtest and live exits
// behave identically.
func EvaluateExit(entryPrice float64, bar *model.Candle, slPct, tpPct float64) (float64, model.ExitReason) {
	if slPct > 0 {
		stopPrice := entryPrice * (1 - slPct/100)
		if bar.Low <= stopPrice {
			if bar.Open < stopPrice {
				return bar.Open, model.ExitStopLoss
			}
			return stopPrice, model.ExitStopLoss
		}
	}
	if tpPct > 0 {
		takePrice := entryPrice * (1 + tpPct/100)
		if bar.High >= takePrice {
			if bar.Open > takePrice {
				return bar.Open, model.ExitTakeProfit
			}
			return takePrice, model.ExitTakeProfit
		}
	}
	return 0, ""
}

// closeTrade records the round trip and returns the net P&L to credit.
// The entry fee was already deducted at entry, so only the exit fee
// applies here.
func closeTrade(trades *[]model.ClosedTrade, pos *position, candles model.Series, exitIdx int, exitPrice float64, reason model.ExitReason) float64 {
	exitFee := exitPrice * pos.qty * FeeRate
	netPnL := (exitPrice-pos.entryPrice)*pos.qty - exitFee
	*trades = append(*trades, model.ClosedTrade{
		EntryTime:  candles[pos.entryTime].TS,
		EntryPrice: pos.entryPrice,
		ExitTime:   candles[exitIdx].TS,
		ExitPrice:  exitPrice,
		Qty:        pos.qty,
		PnL:        netPnL,
		ExitReason: reason,
	})
	return netPnL
}

// ExitLevels computes the stop and take prices for an entry at price.
// Disabled sides return 0. Shared with the live engine so backtest and
// live decisions use identical levels.
func ExitLevels(entryPrice, slPct, tpPct float64) (stopPrice, takePrice float64) {
	if slPct > 0 {
		stopPrice = entryPrice * (1 - slPct/100)
	}
	if tpPct > 0 {
		takePrice = entryPrice * (1 + tpPct/100)
	}
	return stopPrice, takePrice
}

// lastTrades returns the most recent n trades.
func lastTrades(trades []model.ClosedTrade, n int) []model.ClosedTrade {
	if len(trades) <= n {
		return trades
	}
	return trades[len(trades)-n:]
}

// thinEquity keeps every stride-th point for display-sized payloads.
func thinEquity(equity []model.EquityPoint, stride int) []model.EquityPoint {
	if stride <= 1 || len(equity) == 0 {
		return equity
	}
	out := make([]model.EquityPoint, 0, len(equity)/stride+1)
	for i := 0; i < len(equity); i += stride {
		out = append(out, equity[i])
	}
	return out
}

// round2 rounds to 2 decimal places for API presentation.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// round1 rounds to 1 decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
