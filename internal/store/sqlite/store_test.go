package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stratlab/internal/model"
	"stratlab/internal/strategy"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCandleRoundTrip(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	in := []model.Candle{
		{Symbol: "BTCUSD", TF: 3600, TS: base, Open: 100, High: 110, Low: 95, Close: 105, Volume: 12},
		{Symbol: "BTCUSD", TF: 3600, TS: base.Add(time.Hour), Open: 105, High: 112, Low: 104, Close: 111, Volume: 9},
		{Symbol: "BTCUSD", TF: 3600, TS: base.Add(2 * time.Hour), Open: 111, High: 113, Low: 108, Close: 109, Forming: true},
		{Symbol: "ETHUSD", TF: 3600, TS: base, Open: 10, High: 11, Low: 9, Close: 10.5},
	}
	if err := s.WriteCandles(context.Background(), in); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := s.ReadCandles("BTCUSD", 3600, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// Forming candle must not be persisted.
	if len(got) != 2 {
		t.Fatalf("got %d candles, want 2", len(got))
	}
	if got[0].Close != 105 || got[1].Close != 111 {
		t.Fatalf("unexpected closes: %v %v", got[0].Close, got[1].Close)
	}
	if !got[1].TS.After(got[0].TS) {
		t.Fatal("candles not in ascending order")
	}

	last, err := s.LastTimestamp("BTCUSD", 3600)
	if err != nil {
		t.Fatalf("last timestamp: %v", err)
	}
	if last != base.Add(time.Hour).Unix() {
		t.Fatalf("last timestamp = %d, want %d", last, base.Add(time.Hour).Unix())
	}

	// afterTS excludes the boundary row.
	tail, err := s.ReadCandles("BTCUSD", 3600, base.Unix())
	if err != nil {
		t.Fatalf("read after: %v", err)
	}
	if len(tail) != 1 {
		t.Fatalf("got %d candles after boundary, want 1", len(tail))
	}
}

func TestWriteCandlesReplacesDuplicates(t *testing.T) {
	s := openTestStore(t)

	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	first := []model.Candle{{Symbol: "BTCUSD", TF: 60, TS: ts, Open: 1, High: 2, Low: 1, Close: 1.5}}
	second := []model.Candle{{Symbol: "BTCUSD", TF: 60, TS: ts, Open: 1, High: 3, Low: 1, Close: 2.5}}

	if err := s.WriteCandles(context.Background(), first); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.WriteCandles(context.Background(), second); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	got, err := s.ReadCandles("BTCUSD", 60, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Close != 2.5 {
		t.Fatalf("duplicate not replaced: %+v", got)
	}
}

func TestStrategyCRUD(t *testing.T) {
	s := openTestStore(t)

	logic := strategy.Logic{
		Conditions: []strategy.Condition{{
			Left:     strategy.IndicatorSpec{Type: "close"},
			Operator: strategy.OpGreaterThan,
			Right:    strategy.IndicatorSpec{Type: "sma", Params: strategy.SpecParams{Length: 20}},
		}},
		Quantity:    2,
		StopLossPct: 1.5,
	}

	rec, err := s.CreateStrategy(strategy.Record{Name: "trend", Symbol: "BTCUSD", TF: 3600, Logic: logic})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected assigned ID")
	}

	got, err := s.GetStrategy(rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "trend" || got.Logic.Quantity != 2 || got.Logic.StopLossPct != 1.5 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Logic.Conditions) != 1 || got.Logic.Conditions[0].Operator != strategy.OpGreaterThan {
		t.Fatalf("conditions lost: %+v", got.Logic.Conditions)
	}
	if got.Running {
		t.Fatal("new strategy should not be running")
	}

	if err := s.SetStrategyRunning(rec.ID, true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	running, err := s.RunningStrategies()
	if err != nil {
		t.Fatalf("running: %v", err)
	}
	if len(running) != 1 || running[0].ID != rec.ID {
		t.Fatalf("running list wrong: %+v", running)
	}

	got.Name = "trend-v2"
	if err := s.UpdateStrategy(got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got2, err := s.GetStrategy(rec.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got2.Name != "trend-v2" {
		t.Fatalf("update did not stick: %+v", got2)
	}

	if err := s.DeleteStrategy(rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetStrategy(rec.ID); err != ErrStrategyNotFound {
		t.Fatalf("expected ErrStrategyNotFound, got %v", err)
	}
	if err := s.SetStrategyRunning(rec.ID, true); err != ErrStrategyNotFound {
		t.Fatalf("toggle missing: expected ErrStrategyNotFound, got %v", err)
	}
}
