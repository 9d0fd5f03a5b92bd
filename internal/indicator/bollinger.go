package indicator

import "stratlab/internal/model"

// BBUpper computes the upper Bollinger band: rolling mean of close plus
// Deviation times the rolling population standard deviation.
func BBUpper(s model.Series, p Params) []float64 {
	mean := make([]float64, len(s))
	std := make([]float64, len(s))
	rollingMeanStd(s, p.Length, mean, std)
	for i := p.Length - 1; i < len(s); i++ {
		mean[i] += p.Deviation * std[i]
	}
	return mean
}

// BBLower computes the lower Bollinger band: rolling mean minus
// Deviation times the rolling population standard deviation.
func BBLower(s model.Series, p Params) []float64 {
	mean := make([]float64, len(s))
	std := make([]float64, len(s))
	rollingMeanStd(s, p.Length, mean, std)
	for i := p.Length - 1; i < len(s); i++ {
		mean[i] -= p.Deviation * std[i]
	}
	return mean
}
