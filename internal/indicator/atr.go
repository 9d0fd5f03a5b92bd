package indicator

import (
	"math"

	"stratlab/internal/model"
)

// ATR computes the Average True Range: the rolling mean of the true
// range over p.Length bars. True range at bar i is
// max(high-low, |high-prevClose|, |low-prevClose|); bar 0 has no
// previous close so its true range is just high-low.
func ATR(s model.Series, p Params) []float64 {
	out := make([]float64, len(s))
	tr := make([]float64, len(s))
	for i := range s {
		hl := s[i].High - s[i].Low
		if i == 0 {
			tr[i] = hl
			continue
		}
		prevClose := s[i-1].Close
		hc := math.Abs(s[i].High - prevClose)
		lc := math.Abs(s[i].Low - prevClose)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := range tr {
		sum += tr[i]
		if i >= p.Length {
			sum -= tr[i-p.Length]
		}
		if i >= p.Length-1 {
			out[i] = sum / float64(p.Length)
		}
	}
	return out
}
