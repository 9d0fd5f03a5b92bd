package indicator

import "stratlab/internal/model"

// RSI computes the Relative Strength Index using Wilder's smoothing.
// The first average gain/loss pair is an arithmetic mean over the first
// Length close-to-close changes, then each subsequent bar applies
// avg = (prev*(length-1) + change) / length. The first value lands at
// index Length (one change per bar, none at bar 0).
//
// When the average loss is exactly zero RSI is defined as 100 — a flat
// or strictly rising window must not divide by zero.
func RSI(s model.Series, p Params) []float64 {
	out := make([]float64, len(s))
	if len(s) == 0 {
		return out
	}

	var avgGain, avgLoss float64
	n := float64(p.Length)

	for i := 1; i < len(s); i++ {
		delta := s[i].Close - s[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		if i <= p.Length {
			// Accumulation phase: build the initial averages.
			avgGain += gain
			avgLoss += loss
			if i == p.Length {
				avgGain /= n
				avgLoss /= n
				out[i] = rsiValue(avgGain, avgLoss)
			}
			continue
		}

		avgGain = (avgGain*(n-1) + gain) / n
		avgLoss = (avgLoss*(n-1) + loss) / n
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
