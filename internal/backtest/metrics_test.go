package backtest

import (
	"math"
	"testing"
	"time"

	"stratlab/internal/model"
)

func trade(pnl float64) model.ClosedTrade {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return model.ClosedTrade{
		EntryTime: ts, ExitTime: ts.Add(time.Hour),
		EntryPrice: 100, ExitPrice: 100 + pnl, Qty: 1,
		PnL: pnl, ExitReason: model.ExitTakeProfit,
	}
}

func equityCurve(balances ...float64) []model.EquityPoint {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.EquityPoint, len(balances))
	for i, b := range balances {
		out[i] = model.EquityPoint{Time: ts.Add(time.Duration(i) * time.Hour), Balance: b}
	}
	return out
}

func TestSummarize_ZeroTrades(t *testing.T) {
	m := Summarize(nil, nil, 1000, 1000)

	if m.TotalTrades != 0 || m.WinRate != 0 || m.Audit.ProfitFactor != 0 || m.Audit.MaxDrawdown != 0 {
		t.Errorf("zero-trade summary must be all zeros: %+v", m)
	}
	for label, v := range map[string]float64{
		"final_balance": m.FinalBalance,
		"win_rate":      m.WinRate,
		"return":        m.TotalReturnPct,
		"drawdown":      m.Audit.MaxDrawdown,
		"profit_factor": m.Audit.ProfitFactor,
		"avg_win":       m.Audit.AvgWin,
		"avg_loss":      m.Audit.AvgLoss,
		"expectancy":    m.Audit.Expectancy,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is non-finite", label)
		}
	}
}

func TestSummarize_KnownValues(t *testing.T) {
	trades := []model.ClosedTrade{trade(10), trade(-5), trade(20), trade(-5)}
	m := Summarize(trades, equityCurve(1000, 1010, 1005, 1025, 1020), 1000, 1020)

	if m.WinRate != 50.0 {
		t.Errorf("win_rate = %v, want 50.0", m.WinRate)
	}
	if m.TotalReturnPct != 2.0 {
		t.Errorf("total_return_pct = %v, want 2.0", m.TotalReturnPct)
	}
	// gross wins 30, gross losses 10 → 3.0
	if m.Audit.ProfitFactor != 3.0 {
		t.Errorf("profit_factor = %v, want 3.0", m.Audit.ProfitFactor)
	}
	if m.Audit.AvgWin != 15.0 {
		t.Errorf("avg_win = %v, want 15.0", m.Audit.AvgWin)
	}
	if m.Audit.AvgLoss != -5.0 {
		t.Errorf("avg_loss = %v, want -5.0", m.Audit.AvgLoss)
	}
	// 0.5*15 + 0.5*(-5) = 5.0
	if m.Audit.Expectancy != 5.0 {
		t.Errorf("expectancy = %v, want 5.0", m.Audit.Expectancy)
	}
}

func TestSummarize_MaxDrawdown(t *testing.T) {
	// Peak 120, trough 80 → (120-80)/120 = 33.33%
	m := Summarize(nil, equityCurve(100, 120, 90, 110, 80), 100, 80)
	if m.Audit.MaxDrawdown != 33.33 {
		t.Errorf("max_drawdown = %v, want 33.33", m.Audit.MaxDrawdown)
	}
}

func TestSummarize_ProfitFactorSentinelNotInfinity(t *testing.T) {
	m := Summarize([]model.ClosedTrade{trade(10), trade(5)}, nil, 1000, 1015)
	if m.Audit.ProfitFactor != profitFactorSentinel {
		t.Errorf("profit_factor = %v, want sentinel %v", m.Audit.ProfitFactor, profitFactorSentinel)
	}
	if math.IsInf(m.Audit.ProfitFactor, 0) {
		t.Error("profit_factor must never be infinite")
	}
}

func TestSummarize_Idempotent(t *testing.T) {
	trades := []model.ClosedTrade{trade(10), trade(-3), trade(7)}
	eq := equityCurve(1000, 1010, 1007, 1014)

	a := Summarize(trades, eq, 1000, 1014)
	b := Summarize(trades, eq, 1000, 1014)
	if a != b {
		t.Errorf("summarize is not idempotent:\n  first:  %+v\n  second: %+v", a, b)
	}
}
