package model

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// Candle represents one OHLCV bar for a symbol and timeframe.
// Prices are float64 — exchange candle feeds deliver decimal strings and
// the evaluation core runs entirely in floating point.
type Candle struct {
	Symbol  string    `json:"symbol"`
	TF      int       `json:"tf"` // timeframe in seconds
	TS      time.Time `json:"ts"` // bucket start time (UTC)
	Open    float64   `json:"open"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Close   float64   `json:"close"`
	Volume  float64   `json:"volume"`
	Forming bool      `json:"forming"` // true while the bucket is still open
}

// Key returns "symbol:tf".
func (c *Candle) Key() string {
	return SeriesKey(c.Symbol, c.TF)
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Valid reports whether all numeric fields are finite.
func (c *Candle) Valid() bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Series is an ordered sequence of candles, oldest first.
// The simulation core requires strictly increasing timestamps.
type Series []Candle

// Normalize sorts the series chronologically, drops duplicate timestamps
// (first occurrence wins) and rows with non-finite values. Sources that
// deliver newest-first come out oldest-first. Returns the cleaned series.
func (s Series) Normalize() Series {
	if len(s) == 0 {
		return s
	}
	out := make(Series, 0, len(s))
	for _, c := range s {
		if c.Valid() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })

	dedup := out[:0]
	for i, c := range out {
		if i > 0 && !c.TS.After(dedup[len(dedup)-1].TS) {
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}

// Snapshot returns an independent copy of the series. Live evaluations
// receive snapshots so a concurrently updated buffer is never observed
// half-written.
func (s Series) Snapshot() Series {
	cp := make(Series, len(s))
	copy(cp, s)
	return cp
}

// Closes extracts the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}
