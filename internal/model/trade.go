package model

import (
	"encoding/json"
	"time"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitManual     ExitReason = "MANUAL" // live mode: strategy disabled while in position
)

// ClosedTrade is the immutable record of one full position round trip.
// PnL is net of the exit fee; the entry fee was deducted from balance at
// entry time.
type ClosedTrade struct {
	EntryTime  time.Time  `json:"entry_time"`
	EntryPrice float64    `json:"entry_price"`
	ExitTime   time.Time  `json:"exit_time"`
	ExitPrice  float64    `json:"exit_price"`
	Qty        float64    `json:"qty"`
	PnL        float64    `json:"pnl"`
	ExitReason ExitReason `json:"exit_reason"`
}

// JSON returns the JSON-encoded trade.
func (t *ClosedTrade) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}

// EquityPoint samples simulated account state once per processed bar.
// BuyHold tracks what the initial balance would be worth if fully
// converted at the first close — comparison only, never trading logic.
type EquityPoint struct {
	Time    time.Time `json:"time"`
	Balance float64   `json:"balance"`
	BuyHold float64   `json:"buy_hold"`
}
