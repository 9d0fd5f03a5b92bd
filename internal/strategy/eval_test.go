package strategy

import (
	"testing"
	"time"

	"stratlab/internal/model"
)

func closeSeries(closes ...float64) model.Series {
	s := make(model.Series, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		s[i] = model.Candle{
			Symbol: "BTCUSD",
			TS:     base.Add(time.Duration(i) * time.Minute),
			Open:   c, High: c + 1, Low: c - 1, Close: c,
			Volume: 100,
		}
	}
	return s
}

func number(v float64) IndicatorSpec {
	return IndicatorSpec{Type: "number", Params: SpecParams{Value: v}}
}

func field(name string) IndicatorSpec {
	return IndicatorSpec{Type: name}
}

func computed(name string, length int) IndicatorSpec {
	return IndicatorSpec{Type: name, Params: SpecParams{Length: length}}
}

// ────────────────────────────────────────────────────────────
// Crossover semantics
// ────────────────────────────────────────────────────────────

func TestCrossesAbove_FiresOnTransitionOnly(t *testing.T) {
	// close: 1,1,1,2,2,2 vs constant 1 — the cross happens at bar 3 and
	// only bar 3, even though close > 1 keeps holding afterwards.
	eval := NewEvaluator(closeSeries(1, 1, 1, 2, 2, 2))
	conds := []Condition{{Left: field("close"), Operator: OpCrossesAbove, Right: number(1)}}

	fired := []int{}
	for i := 1; i < 6; i++ {
		sat, ok, err := eval.EvalAt(conds, i)
		if err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("bar %d: expected evaluable", i)
		}
		if sat {
			fired = append(fired, i)
		}
	}
	if len(fired) != 1 || fired[0] != 3 {
		t.Errorf("crosses_above fired at %v, want exactly [3]", fired)
	}
}

func TestCrossesBelow_Mirror(t *testing.T) {
	eval := NewEvaluator(closeSeries(3, 3, 1, 1))
	conds := []Condition{{Left: field("close"), Operator: OpCrossesBelow, Right: number(2)}}

	for i, want := range map[int]bool{1: false, 2: true, 3: false} {
		sat, ok, err := eval.EvalAt(conds, i)
		if err != nil || !ok {
			t.Fatalf("bar %d: ok=%v err=%v", i, ok, err)
		}
		if sat != want {
			t.Errorf("bar %d: crosses_below=%v, want %v", i, sat, want)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Simple comparisons
// ────────────────────────────────────────────────────────────

func TestOperators_GreaterLessEquals(t *testing.T) {
	eval := NewEvaluator(closeSeries(10, 20))

	tests := []struct {
		op   Operator
		rhs  float64
		want bool
	}{
		{OpGreaterThan, 15, true},
		{OpGreaterThan, 25, false},
		{OpLessThan, 25, true},
		{OpLessThan, 15, false},
		{OpEquals, 20, true}, // exact float equality
		{OpEquals, 20.0000001, false},
	}
	for _, tc := range tests {
		conds := []Condition{{Left: field("close"), Operator: tc.op, Right: number(tc.rhs)}}
		sat, ok, err := eval.EvalAt(conds, 1)
		if err != nil || !ok {
			t.Fatalf("%s %v: ok=%v err=%v", tc.op, tc.rhs, ok, err)
		}
		if sat != tc.want {
			t.Errorf("close(20) %s %v = %v, want %v", tc.op, tc.rhs, sat, tc.want)
		}
	}
}

func TestConditions_AreANDCombined(t *testing.T) {
	eval := NewEvaluator(closeSeries(10, 20))

	both := []Condition{
		{Left: field("close"), Operator: OpGreaterThan, Right: number(15)},
		{Left: field("close"), Operator: OpLessThan, Right: number(25)},
	}
	sat, _, err := eval.EvalAt(both, 1)
	if err != nil || !sat {
		t.Errorf("both-true conjunction: sat=%v err=%v, want true", sat, err)
	}

	oneFalse := append(both, Condition{Left: field("close"), Operator: OpGreaterThan, Right: number(100)})
	sat, _, err = eval.EvalAt(oneFalse, 1)
	if err != nil || sat {
		t.Errorf("conjunction with a false member: sat=%v err=%v, want false", sat, err)
	}
}

func TestEmptyConditions_AlwaysSatisfied(t *testing.T) {
	eval := NewEvaluator(closeSeries(10, 20))
	sat, ok, err := eval.EvalAt(nil, 1)
	if err != nil || !ok || !sat {
		t.Errorf("empty condition list: sat=%v ok=%v err=%v, want true/true/nil", sat, ok, err)
	}
}

// ────────────────────────────────────────────────────────────
// Warm-up suppression
// ────────────────────────────────────────────────────────────

func TestWarmup_SuppressesEvaluation(t *testing.T) {
	// sma(3) is defined from bar 2; comparisons touching bars 1..2
	// (crossover also needs the previous bar) stay non-evaluable until
	// every referenced value is real.
	eval := NewEvaluator(closeSeries(10, 11, 12, 13, 14))
	conds := []Condition{{Left: field("close"), Operator: OpCrossesAbove, Right: computed("sma", 3)}}

	for i := 1; i <= 2; i++ {
		_, ok, err := eval.EvalAt(conds, i)
		if err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
		if ok {
			t.Errorf("bar %d: expected non-evaluable during sma warm-up", i)
		}
	}

	_, ok, err := eval.EvalAt(conds, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("bar 3: both bars have a defined sma, expected evaluable")
	}
}

// ────────────────────────────────────────────────────────────
// No-lookahead
// ────────────────────────────────────────────────────────────

func TestEval_NoLookahead(t *testing.T) {
	// The verdict at bar i must depend only on bars 0..i: mutating every
	// later bar must not change it.
	closes := []float64{100, 101, 99, 102, 104, 103, 105, 101, 106, 107}
	mutated := append([]float64(nil), closes...)
	for i := 6; i < len(mutated); i++ {
		mutated[i] = 9999
	}

	conds := []Condition{
		{Left: field("close"), Operator: OpCrossesAbove, Right: computed("sma", 3)},
		{Left: computed("rsi", 3), Operator: OpLessThan, Right: number(90)},
	}

	evalA := NewEvaluator(closeSeries(closes...))
	evalB := NewEvaluator(closeSeries(mutated...))
	for i := 1; i <= 5; i++ {
		satA, okA, errA := evalA.EvalAt(conds, i)
		satB, okB, errB := evalB.EvalAt(conds, i)
		if errA != nil || errB != nil {
			t.Fatalf("bar %d: errA=%v errB=%v", i, errA, errB)
		}
		if satA != satB || okA != okB {
			t.Errorf("bar %d: verdict changed when future bars were mutated (%v/%v vs %v/%v)",
				i, satA, okA, satB, okB)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Validation
// ────────────────────────────────────────────────────────────

func TestValidate_RejectsUnknownIndicator(t *testing.T) {
	l := Logic{
		Conditions: []Condition{{Left: computed("vwap", 14), Operator: OpGreaterThan, Right: number(1)}},
		Quantity:   1,
	}
	if err := Validate(l); err == nil {
		t.Fatal("expected validation error for unknown indicator name")
	}
}

func TestValidate_RejectsUnknownOperator(t *testing.T) {
	l := Logic{
		Conditions: []Condition{{Left: field("close"), Operator: "NEAR", Right: number(1)}},
		Quantity:   1,
	}
	if err := Validate(l); err == nil {
		t.Fatal("expected validation error for unknown operator")
	}
}

func TestParseLogic_Defaults(t *testing.T) {
	l, err := ParseLogic([]byte(`{
		"conditions": [
			{"left": {"type": "rsi"}, "operator": "LESS_THAN", "right": {"type": "number", "params": {"value": 30}}}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if l.Quantity != 1 {
		t.Errorf("quantity default = %v, want 1", l.Quantity)
	}
	if got := l.Conditions[0].Left.Length(); got != 14 {
		t.Errorf("length default = %d, want 14", got)
	}
	if got := l.Conditions[0].Left.Deviation(); got != 2.0 {
		t.Errorf("deviation default = %v, want 2.0", got)
	}
}
