package live

import (
	"fmt"
	"log"
	"sync"
	"time"

	"stratlab/internal/backtest"
	"stratlab/internal/model"
	"stratlab/internal/strategy"
)

// openPosition is the in-trade state of one session.
type openPosition struct {
	entryTime  time.Time
	entryPrice float64
	qty        float64
}

// session hosts one running strategy: its logic, its single open
// position, and the bar-close decision loop. The engine calls
// onBarClose with a snapshot of the symbol's closed-candle series.
type session struct {
	rec  strategy.Record
	risk *RiskGuard

	mu  sync.Mutex
	pos *openPosition
}

func newSession(rec strategy.Record, risk *RiskGuard) *session {
	return &session{rec: rec, risk: risk}
}

// onBarClose evaluates the strategy against the series ending at the
// just-closed bar and returns zero or more signals (an exit and a
// re-entry can land on the same bar, exit first).
func (s *session) onBarClose(series model.Series) ([]model.Signal, error) {
	if len(series) < 2 {
		return nil, nil
	}
	bar := series[len(series)-1]

	s.mu.Lock()
	defer s.mu.Unlock()

	var signals []model.Signal

	// Exit first: stop-loss has priority over take-profit, gap bars
	// fill at the open.
	if s.pos != nil {
		exitPrice, reason := backtest.EvaluateExit(s.pos.entryPrice, &bar, s.rec.Logic.StopLossPct, s.rec.Logic.TakeProfitPct)
		if reason != "" {
			signals = append(signals, s.exitSignalLocked(exitPrice, bar.TS, string(reason)))
		}
	}

	if s.pos == nil {
		eval := strategy.NewEvaluator(series)
		if err := eval.Prepare(s.rec.Logic); err != nil {
			return signals, fmt.Errorf("prepare %s: %w", s.rec.Name, err)
		}
		satisfied, evaluable, err := eval.EvalAt(s.rec.Logic.Conditions, len(series)-1)
		if err != nil {
			return signals, fmt.Errorf("evaluate %s: %w", s.rec.Name, err)
		}
		if satisfied && evaluable {
			if ok, reason := s.risk.CanEnter(s.rec.Logic.Quantity); !ok {
				log.Printf("[live] %s entry vetoed: %s", s.rec.Name, reason)
				return signals, nil
			}
			stop, take := backtest.ExitLevels(bar.Close, s.rec.Logic.StopLossPct, s.rec.Logic.TakeProfitPct)
			s.pos = &openPosition{entryTime: bar.TS, entryPrice: bar.Close, qty: s.rec.Logic.Quantity}
			s.risk.PositionOpened()
			signals = append(signals, model.Signal{
				StrategyID:   s.rec.ID,
				StrategyName: s.rec.Name,
				Symbol:       s.rec.Symbol,
				Action:       model.ActionBuy,
				Qty:          s.rec.Logic.Quantity,
				Price:        bar.Close,
				StopPrice:    stop,
				TakePrice:    take,
				Reason:       "conditions satisfied",
				TS:           bar.TS,
			})
		}
	}

	return signals, nil
}

// closePosition force-closes an open position at the given price.
// Used when a strategy is stopped while in a trade. Returns the exit
// signal, or ok=false when the session is flat.
func (s *session) closePosition(price float64, ts time.Time) (model.Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos == nil {
		return model.Signal{}, false
	}
	// No market price available yet: flatten at entry for a zero-PnL exit.
	if price <= 0 {
		price = s.pos.entryPrice
	}
	return s.exitSignalLocked(price, ts, string(model.ExitManual)), true
}

// exitSignalLocked closes the position state and builds the SELL
// signal. Caller holds s.mu.
func (s *session) exitSignalLocked(exitPrice float64, ts time.Time, reason string) model.Signal {
	pnl := (exitPrice - s.pos.entryPrice) * s.pos.qty
	sig := model.Signal{
		StrategyID:   s.rec.ID,
		StrategyName: s.rec.Name,
		Symbol:       s.rec.Symbol,
		Action:       model.ActionSell,
		Qty:          s.pos.qty,
		Price:        exitPrice,
		Reason:       reason,
		TS:           ts,
	}
	s.pos = nil
	s.risk.PositionClosed(pnl)
	return sig
}

// hasPosition reports whether the session is in a trade.
func (s *session) hasPosition() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos != nil
}
