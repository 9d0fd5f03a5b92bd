package strategy

import (
	"fmt"

	"stratlab/internal/indicator"
	"stratlab/internal/model"
)

// Evaluator resolves indicator references and evaluates condition sets
// bar-by-bar over one immutable candle series. It owns a per-run
// indicator cache, so duplicate references in a strategy are computed
// once. Evaluators are cheap to build and never shared across runs.
type Evaluator struct {
	series model.Series
	cache  *indicator.Cache
}

// NewEvaluator creates an Evaluator over the given series.
func NewEvaluator(s model.Series) *Evaluator {
	return &Evaluator{
		series: s,
		cache:  indicator.NewCache(s),
	}
}

// Prepare computes every indicator column a logic references. Calling it
// up front surfaces indicator errors once, before the bar loop.
func (e *Evaluator) Prepare(l Logic) error {
	for _, cond := range l.Conditions {
		for _, spec := range [...]IndicatorSpec{cond.Left, cond.Right} {
			if spec.IsNumber() || spec.IsRawField() {
				continue
			}
			params := indicator.Params{Length: spec.Length(), Deviation: spec.Deviation()}
			if _, err := e.cache.Column(spec.Type, params); err != nil {
				return fmt.Errorf("prepare %s: %w", indicator.ColumnKey(spec.Type, spec.Length()), err)
			}
		}
	}
	return nil
}

// valueAt resolves a spec at bar i. defined is false while a computed
// column is still inside its warm-up window — the stored 0 sentinel must
// not be compared as a real value.
func (e *Evaluator) valueAt(spec IndicatorSpec, i int) (value float64, defined bool, err error) {
	if spec.IsNumber() {
		return spec.Params.Value, true, nil
	}
	if spec.IsRawField() {
		c := &e.series[i]
		switch spec.Type {
		case "open":
			return c.Open, true, nil
		case "high":
			return c.High, true, nil
		case "low":
			return c.Low, true, nil
		case "close":
			return c.Close, true, nil
		default:
			return c.Volume, true, nil
		}
	}
	params := indicator.Params{Length: spec.Length(), Deviation: spec.Deviation()}
	col, err := e.cache.Column(spec.Type, params)
	if err != nil {
		return 0, false, err
	}
	return col.Values[i], i >= col.DefinedFrom, nil
}

// EvalAt evaluates the AND of all conditions at bar i, with bar i-1 as
// the crossover reference. It returns:
//
//	satisfied — all conditions hold at bar i
//	evaluable — every referenced indicator value was defined; when false,
//	            the bar is inside some warm-up window and satisfied is
//	            meaningless (callers treat it as "no signal")
//
// All conditions are evaluated — there is no short-circuit — so the
// result is independent of condition order. Signals depend only on bars
// 0..i; nothing past i is read.
func (e *Evaluator) EvalAt(conditions []Condition, i int) (satisfied, evaluable bool, err error) {
	if i < 1 || i >= len(e.series) {
		return false, false, fmt.Errorf("bar index %d out of range [1,%d)", i, len(e.series))
	}

	satisfied = true
	evaluable = true
	for _, cond := range conditions {
		leftNow, leftOK, err := e.valueAt(cond.Left, i)
		if err != nil {
			return false, false, err
		}
		rightNow, rightOK, err := e.valueAt(cond.Right, i)
		if err != nil {
			return false, false, err
		}
		if !leftOK || !rightOK {
			evaluable = false
			continue
		}

		var hold bool
		switch cond.Operator {
		case OpGreaterThan:
			hold = leftNow > rightNow
		case OpLessThan:
			hold = leftNow < rightNow
		case OpEquals:
			// Exact float equality, as the builder schema defines it.
			hold = leftNow == rightNow
		case OpCrossesAbove, OpCrossesBelow:
			leftPrev, leftPrevOK, err := e.valueAt(cond.Left, i-1)
			if err != nil {
				return false, false, err
			}
			rightPrev, rightPrevOK, err := e.valueAt(cond.Right, i-1)
			if err != nil {
				return false, false, err
			}
			if !leftPrevOK || !rightPrevOK {
				evaluable = false
				continue
			}
			// A crossover fires only on the transition bar, never while
			// the relation merely keeps holding.
			if cond.Operator == OpCrossesAbove {
				hold = leftNow > rightNow && leftPrev <= rightPrev
			} else {
				hold = leftNow < rightNow && leftPrev >= rightPrev
			}
		}
		if !hold {
			satisfied = false
		}
	}

	if !evaluable {
		return false, false, nil
	}
	return satisfied, true, nil
}
