package strategy

import (
	"fmt"
	"log"

	"stratlab/internal/indicator"
)

var knownOperators = map[Operator]bool{
	OpGreaterThan:  true,
	OpLessThan:     true,
	OpEquals:       true,
	OpCrossesAbove: true,
	OpCrossesBelow: true,
}

// Validate checks a Logic against the schema at load time. Unknown
// indicator names are rejected here rather than silently resolving to
// zero series downstream.
//
// An empty condition list is schema-valid (it means "enter immediately")
// but is almost always a builder mistake, so it is logged rather than
// rejected.
func Validate(l Logic) error {
	if len(l.Conditions) == 0 {
		log.Printf("[strategy] logic has no conditions — every bar is an entry signal, likely a misconfiguration")
	}
	for i, cond := range l.Conditions {
		if !knownOperators[cond.Operator] {
			return fmt.Errorf("condition %d: unknown operator %q", i, cond.Operator)
		}
		if err := validateSpec(cond.Left); err != nil {
			return fmt.Errorf("condition %d left: %w", i, err)
		}
		if err := validateSpec(cond.Right); err != nil {
			return fmt.Errorf("condition %d right: %w", i, err)
		}
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %v", l.Quantity)
	}
	if l.StopLossPct < 0 || l.TakeProfitPct < 0 {
		return fmt.Errorf("stop/take percentages must not be negative (sl=%v tp=%v)", l.StopLossPct, l.TakeProfitPct)
	}
	return nil
}

func validateSpec(s IndicatorSpec) error {
	if s.Type == "" {
		return fmt.Errorf("missing indicator type")
	}
	if s.IsNumber() || s.IsRawField() {
		return nil
	}
	if !indicator.Registered(s.Type) {
		return fmt.Errorf("unknown indicator %q (known: %v)", s.Type, indicator.Names())
	}
	if s.Params.Length < 0 {
		return fmt.Errorf("indicator %q: negative length %d", s.Type, s.Params.Length)
	}
	return nil
}
