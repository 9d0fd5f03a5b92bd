// Package strategy defines the declarative strategy schema — indicator
// references, comparison conditions, risk parameters — and evaluates
// condition sets against candle series.
//
// A Logic is what the strategy builder stores: an AND-combined list of
// "left OP right" comparisons plus quantity and stop/take percentages.
package strategy

import (
	"encoding/json"
	"fmt"
)

// Operator is a binary comparison between two indicator references.
type Operator string

const (
	OpGreaterThan  Operator = "GREATER_THAN"
	OpLessThan     Operator = "LESS_THAN"
	OpEquals       Operator = "EQUALS"
	OpCrossesAbove Operator = "CROSSES_ABOVE"
	OpCrossesBelow Operator = "CROSSES_BELOW"
)

// crossover reports whether the operator needs previous-bar values.
func (op Operator) crossover() bool {
	return op == OpCrossesAbove || op == OpCrossesBelow
}

// SpecParams carries the optional parameters of an indicator reference.
// Std is the Bollinger deviation multiplier (the wire name the builder
// uses); Value is only meaningful for number references.
type SpecParams struct {
	Length int     `json:"length,omitempty"`
	Std    float64 `json:"std,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

// IndicatorSpec is one side of a condition: a numeric constant, a raw
// candle field, or a computed indicator.
type IndicatorSpec struct {
	Type   string     `json:"type"`
	Params SpecParams `json:"params,omitempty"`
}

const (
	defaultLength    = 14
	defaultDeviation = 2.0
	defaultQuantity  = 1.0
)

// rawFields are candle columns addressable directly by name.
var rawFields = map[string]bool{
	"open": true, "high": true, "low": true, "close": true, "volume": true,
}

// IsNumber reports whether the spec is a numeric constant.
func (s IndicatorSpec) IsNumber() bool { return s.Type == "number" }

// IsRawField reports whether the spec references a raw candle column.
func (s IndicatorSpec) IsRawField() bool { return rawFields[s.Type] }

// Length returns the indicator length, applying the default of 14.
func (s IndicatorSpec) Length() int {
	if s.Params.Length > 0 {
		return s.Params.Length
	}
	return defaultLength
}

// Deviation returns the Bollinger deviation, applying the default of 2.0.
func (s IndicatorSpec) Deviation() float64 {
	if s.Params.Std > 0 {
		return s.Params.Std
	}
	return defaultDeviation
}

// Condition is one "left OP right" comparison.
type Condition struct {
	Left     IndicatorSpec `json:"left"`
	Operator Operator      `json:"operator"`
	Right    IndicatorSpec `json:"right"`
}

// Logic is a full declarative strategy definition. Conditions are
// AND-combined. StopLossPct/TakeProfitPct of 0 disable that exit; the
// wire names ("sl", "tp") follow the builder schema.
type Logic struct {
	Conditions    []Condition `json:"conditions"`
	Quantity      float64     `json:"quantity"`
	StopLossPct   float64     `json:"sl"`
	TakeProfitPct float64     `json:"tp"`
}

// ApplyDefaults fills unset fields with schema defaults.
func (l *Logic) ApplyDefaults() {
	if l.Quantity <= 0 {
		l.Quantity = defaultQuantity
	}
}

// ParseLogic decodes and validates a strategy logic JSON document.
func ParseLogic(data []byte) (Logic, error) {
	var l Logic
	if err := json.Unmarshal(data, &l); err != nil {
		return Logic{}, fmt.Errorf("decode strategy logic: %w", err)
	}
	l.ApplyDefaults()
	if err := Validate(l); err != nil {
		return Logic{}, err
	}
	return l, nil
}
