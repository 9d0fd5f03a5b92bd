package indicator

import "stratlab/internal/model"

// EMA computes the exponential moving average of close with smoothing
// factor 2/(length+1). The recursion is seeded by the first close value
// (no bias adjustment); output is masked to 0 until Length-1 bars of
// history exist, matching the warm-up rule of the other rolling
// indicators.
func EMA(s model.Series, p Params) []float64 {
	out := make([]float64, len(s))
	if len(s) == 0 {
		return out
	}
	mult := 2.0 / float64(p.Length+1)
	ema := s[0].Close
	for i := range s {
		if i > 0 {
			ema = s[i].Close*mult + ema*(1-mult)
		}
		if i >= p.Length-1 {
			out[i] = ema
		}
	}
	return out
}
