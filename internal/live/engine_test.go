package live

import (
	"context"
	"testing"
	"time"

	"stratlab/internal/model"
	"stratlab/internal/strategy"
)

func closeAboveLogic(threshold float64, slPct, tpPct float64) strategy.Logic {
	return strategy.Logic{
		Conditions: []strategy.Condition{{
			Left:     strategy.IndicatorSpec{Type: "close"},
			Operator: strategy.OpCrossesAbove,
			Right:    strategy.IndicatorSpec{Type: "number", Params: strategy.SpecParams{Value: threshold}},
		}},
		Quantity:      1,
		StopLossPct:   slPct,
		TakeProfitPct: tpPct,
	}
}

func bar(ts time.Time, o, h, l, c float64) model.Candle {
	return model.Candle{Symbol: "BTCUSD", TF: 3600, TS: ts, Open: o, High: h, Low: l, Close: c}
}

func drainSignals(t *testing.T, ch <-chan model.Signal, n int) []model.Signal {
	t.Helper()
	out := make([]model.Signal, 0, n)
	for len(out) < n {
		select {
		case sig := <-ch:
			out = append(out, sig)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d signals", len(out), n)
		}
	}
	return out
}

func TestEngineEntryOnCrossover(t *testing.T) {
	eng := NewEngine(NewRiskGuard(DefaultRiskLimits(), 10000), nil, 16)
	eng.StartStrategy(strategy.Record{
		ID: 1, Name: "breakout", Symbol: "BTCUSD", TF: 3600,
		Logic: closeAboveLogic(100, 0, 0),
	})

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Below threshold: no signal, no position.
	eng.onCandle(ctx, bar(t0, 98, 99, 97, 98))
	eng.onCandle(ctx, bar(t0.Add(time.Hour), 98, 100, 97, 99))
	if eng.sessions[1].hasPosition() {
		t.Fatal("position open before crossover")
	}

	// Crossing bar: entry at its close.
	eng.onCandle(ctx, bar(t0.Add(2*time.Hour), 99, 103, 98, 102))

	sigs := drainSignals(t, eng.Signals(), 1)
	if sigs[0].Action != model.ActionBuy || sigs[0].Price != 102 {
		t.Fatalf("unexpected entry signal: %+v", sigs[0])
	}
	if !eng.sessions[1].hasPosition() {
		t.Fatal("session not in a trade after entry")
	}
	if sigs[0].StrategyID != 1 {
		t.Errorf("strategy id = %d", sigs[0].StrategyID)
	}

	// Holding above the threshold is not a new crossover.
	eng.onCandle(ctx, bar(t0.Add(3*time.Hour), 102, 104, 101, 103))
	select {
	case sig := <-eng.Signals():
		t.Fatalf("unexpected signal while holding: %+v", sig)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngineStopLossExitWithGapFill(t *testing.T) {
	eng := NewEngine(NewRiskGuard(DefaultRiskLimits(), 10000), nil, 16)
	eng.StartStrategy(strategy.Record{
		ID: 2, Name: "protected", Symbol: "BTCUSD", TF: 3600,
		Logic: closeAboveLogic(100, 5, 0), // stop at entry*0.95
	})

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	eng.onCandle(ctx, bar(t0, 98, 99, 97, 98))
	eng.onCandle(ctx, bar(t0.Add(time.Hour), 99, 103, 98, 102)) // entry at 102, stop 96.9

	entry := drainSignals(t, eng.Signals(), 1)[0]
	if entry.StopPrice != 102*0.95 {
		t.Fatalf("stop price = %v, want %v", entry.StopPrice, 102*0.95)
	}

	// Gap down through the stop: fill at the open, not the stop level.
	eng.onCandle(ctx, bar(t0.Add(2*time.Hour), 90, 91, 89, 90.5))

	exit := drainSignals(t, eng.Signals(), 1)[0]
	if exit.Action != model.ActionSell || exit.Price != 90 {
		t.Fatalf("unexpected exit: %+v", exit)
	}
	if exit.Reason != string(model.ExitStopLoss) {
		t.Errorf("exit reason = %q", exit.Reason)
	}
	if eng.sessions[2].hasPosition() {
		t.Error("position still open after stop-loss exit")
	}
}

func TestEngineManualExitOnStop(t *testing.T) {
	eng := NewEngine(NewRiskGuard(DefaultRiskLimits(), 10000), nil, 16)
	eng.StartStrategy(strategy.Record{
		ID: 3, Name: "manual", Symbol: "BTCUSD", TF: 3600,
		Logic: closeAboveLogic(100, 0, 0),
	})

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	eng.onCandle(ctx, bar(t0, 98, 99, 97, 98))
	eng.onCandle(ctx, bar(t0.Add(time.Hour), 99, 103, 98, 102))
	drainSignals(t, eng.Signals(), 1) // entry

	eng.StopStrategy(ctx, 3)
	exit := drainSignals(t, eng.Signals(), 1)[0]
	if exit.Action != model.ActionSell || exit.Reason != string(model.ExitManual) {
		t.Fatalf("unexpected manual exit: %+v", exit)
	}
	if exit.Price != 102 {
		t.Errorf("manual exit price = %v, want last close 102", exit.Price)
	}
	if got := eng.Running(); len(got) != 0 {
		t.Errorf("running after stop = %v", got)
	}
}

func TestEngineIgnoresFormingAndStaleBars(t *testing.T) {
	eng := NewEngine(NewRiskGuard(DefaultRiskLimits(), 10000), nil, 16)
	eng.StartStrategy(strategy.Record{
		ID: 4, Name: "strict", Symbol: "BTCUSD", TF: 3600,
		Logic: closeAboveLogic(100, 0, 0),
	})

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	eng.onCandle(ctx, bar(t0, 98, 99, 97, 98))

	// Forming bar: never evaluated.
	forming := bar(t0.Add(time.Hour), 99, 105, 98, 104)
	forming.Forming = true
	eng.onCandle(ctx, forming)

	// Stale bar (same timestamp as the first): dropped.
	eng.onCandle(ctx, bar(t0, 99, 105, 98, 104))

	select {
	case sig := <-eng.Signals():
		t.Fatalf("unexpected signal from forming/stale bar: %+v", sig)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngineRiskVeto(t *testing.T) {
	limits := DefaultRiskLimits()
	limits.MaxOpenPositions = 0
	eng := NewEngine(NewRiskGuard(limits, 10000), nil, 16)
	eng.StartStrategy(strategy.Record{
		ID: 5, Name: "vetoed", Symbol: "BTCUSD", TF: 3600,
		Logic: closeAboveLogic(100, 0, 0),
	})

	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	eng.onCandle(ctx, bar(t0, 98, 99, 97, 98))
	eng.onCandle(ctx, bar(t0.Add(time.Hour), 99, 103, 98, 102))

	select {
	case sig := <-eng.Signals():
		t.Fatalf("entry should have been vetoed: %+v", sig)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSeriesBufferTrims(t *testing.T) {
	buf := newSeriesBuffer(3)
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if !buf.Append(bar(t0.Add(time.Duration(i)*time.Hour), 1, 2, 0.5, 1.5)) {
			t.Fatalf("append %d failed", i)
		}
	}
	if buf.Len() != 3 {
		t.Fatalf("len = %d, want 3", buf.Len())
	}
	snap := buf.Snapshot()
	if !snap[0].TS.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("oldest kept bar = %v", snap[0].TS)
	}
}

func TestRiskGuardDailyLoss(t *testing.T) {
	limits := RiskLimits{MaxPositionQty: 10, MaxDailyLoss: 100, MaxOpenPositions: 5, MaxDrawdownPct: 90}
	g := NewRiskGuard(limits, 10000)

	if ok, _ := g.CanEnter(1); !ok {
		t.Fatal("fresh guard should allow entries")
	}
	if ok, reason := g.CanEnter(11); ok || reason != "position size exceeds limit" {
		t.Fatalf("oversized entry allowed: %v %q", ok, reason)
	}

	g.PositionOpened()
	g.PositionClosed(-150)
	if ok, reason := g.CanEnter(1); ok || reason != "max daily loss reached" {
		t.Fatalf("entry after daily loss: %v %q", ok, reason)
	}

	g.ResetDaily()
	if ok, _ := g.CanEnter(1); !ok {
		t.Fatal("entry should be allowed after daily reset")
	}
}
