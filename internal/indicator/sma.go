package indicator

import (
	"math"

	"stratlab/internal/model"
)

// SMA computes the simple moving average of close over p.Length bars.
// A running sum keeps the pass O(n); the first Length-1 bars are 0.
func SMA(s model.Series, p Params) []float64 {
	out := make([]float64, len(s))
	sum := 0.0
	for i := range s {
		sum += s[i].Close
		if i >= p.Length {
			sum -= s[i-p.Length].Close
		}
		if i >= p.Length-1 {
			out[i] = sum / float64(p.Length)
		}
	}
	return out
}

// rollingMeanStd computes the rolling mean and population standard
// deviation of close over length bars, writing into mean and std (both
// len(s)). Variance is computed two-pass per window for numeric accuracy.
func rollingMeanStd(s model.Series, length int, mean, std []float64) {
	sum := 0.0
	for i := range s {
		sum += s[i].Close
		if i >= length {
			sum -= s[i-length].Close
		}
		if i < length-1 {
			continue
		}
		m := sum / float64(length)
		varSum := 0.0
		for j := i - length + 1; j <= i; j++ {
			d := s[j].Close - m
			varSum += d * d
		}
		mean[i] = m
		std[i] = math.Sqrt(varSum / float64(length))
	}
}
