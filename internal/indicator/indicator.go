// Package indicator provides technical indicator calculations over candle
// series.
//
// Indicators are pure functions registered by name: given a series and
// parameters they return a value column aligned to the series length.
// Bars inside the warm-up window (insufficient history) are filled with 0;
// the per-column DefinedFrom index marks where real values begin so
// callers can distinguish the sentinel from a genuine zero.
package indicator

import (
	"fmt"
	"sort"

	"stratlab/internal/model"
)

// Params specifies indicator parameters. Deviation is only consulted by
// the bollinger variants.
type Params struct {
	Length    int
	Deviation float64
}

// Func computes a value column aligned to the series length.
type Func func(s model.Series, p Params) []float64

type entry struct {
	compute Func

	// definedFrom returns the first index with a real (non-sentinel) value.
	definedFrom func(p Params) int
}

var registry = map[string]entry{
	"sma":      {compute: SMA, definedFrom: func(p Params) int { return p.Length - 1 }},
	"ema":      {compute: EMA, definedFrom: func(p Params) int { return p.Length - 1 }},
	"rsi":      {compute: RSI, definedFrom: func(p Params) int { return p.Length }},
	"bb_upper": {compute: BBUpper, definedFrom: func(p Params) int { return p.Length - 1 }},
	"bb_lower": {compute: BBLower, definedFrom: func(p Params) int { return p.Length - 1 }},
	"atr":      {compute: ATR, definedFrom: func(p Params) int { return p.Length - 1 }},
}

// Registered reports whether name is a known indicator.
func Registered(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names returns all registered indicator names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Compute runs the named indicator over the series. Unknown names error —
// strategies are validated at load time, so this is a defensive check.
func Compute(name string, s model.Series, p Params) ([]float64, int, error) {
	e, ok := registry[name]
	if !ok {
		return nil, 0, fmt.Errorf("unknown indicator %q", name)
	}
	if p.Length <= 0 {
		return nil, 0, fmt.Errorf("indicator %q: length must be positive, got %d", name, p.Length)
	}
	return e.compute(s, p), e.definedFrom(p), nil
}
