package model

import (
	"encoding/json"
	"time"
)

// Action is a live trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Signal is emitted by the live engine when a strategy's entry conditions
// are satisfied or its position must be closed. The engine only decides;
// order placement belongs to the execution bridge.
type Signal struct {
	StrategyID   int64     `json:"strategy_id"`
	StrategyName string    `json:"strategy_name"`
	Symbol       string    `json:"symbol"`
	Action       Action    `json:"action"`
	Qty          float64   `json:"qty"`
	Price        float64   `json:"price"` // reference price (bar close)
	StopPrice    float64   `json:"stop_price,omitempty"`
	TakePrice    float64   `json:"take_price,omitempty"`
	Reason       string    `json:"reason"`
	TS           time.Time `json:"ts"`
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
