package backtest

import (
	"math"

	"stratlab/internal/model"
)

// profitFactorSentinel stands in for "all wins, no losses". The output
// contract guarantees finite numbers, so +Inf is off the table.
const profitFactorSentinel = 9999.0

// Summarize aggregates closed trades and the equity curve into summary
// statistics. It is a pure function — calling it twice on the same
// inputs yields identical metrics — and every output field is finite.
func Summarize(trades []model.ClosedTrade, equity []model.EquityPoint, initialBalance, finalBalance float64) Metrics {
	var (
		wins, losses    int
		winSum, lossSum float64 // lossSum accumulated as a positive magnitude
	)
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			winSum += t.PnL
		} else {
			losses++
			lossSum += -t.PnL
		}
	}

	winRate := 0.0
	if len(trades) > 0 {
		winRate = float64(wins) / float64(len(trades)) * 100
	}

	totalReturn := 0.0
	if initialBalance > 0 {
		totalReturn = (finalBalance - initialBalance) / initialBalance * 100
	}

	profitFactor := 0.0
	switch {
	case lossSum > 0:
		profitFactor = winSum / lossSum
	case winSum > 0:
		profitFactor = profitFactorSentinel
	}

	avgWin := 0.0
	if wins > 0 {
		avgWin = winSum / float64(wins)
	}
	avgLoss := 0.0
	if losses > 0 {
		avgLoss = -lossSum / float64(losses)
	}

	expectancy := winRate/100*avgWin + (1-winRate/100)*avgLoss

	return Metrics{
		FinalBalance:   round2(sanitize(finalBalance)),
		TotalTrades:    len(trades),
		WinRate:        round1(sanitize(winRate)),
		TotalReturnPct: round2(sanitize(totalReturn)),
		Audit: Audit{
			MaxDrawdown:  round2(sanitize(maxDrawdown(equity))),
			ProfitFactor: round2(sanitize(profitFactor)),
			AvgWin:       round2(sanitize(avgWin)),
			AvgLoss:      round2(sanitize(avgLoss)),
			Expectancy:   round2(sanitize(expectancy)),
		},
	}
}

// maxDrawdown returns the peak-to-trough percentage decline of the
// running maximum of the balance series, as a positive number. 0 when
// the curve never declines or is too short.
func maxDrawdown(equity []model.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	peak := equity[0].Balance
	worst := 0.0
	for _, p := range equity {
		if p.Balance > peak {
			peak = p.Balance
		}
		if peak > 0 {
			dd := (peak - p.Balance) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sanitize normalizes degenerate float results. The core guarantees it
// never emits NaN or Infinity to its caller.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
