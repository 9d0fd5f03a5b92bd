package live

import (
	"sync"

	"stratlab/internal/model"
)

// seriesBuffer keeps the most recent closed candles for one symbol and
// timeframe. Appends come from the engine loop; evaluations read an
// immutable snapshot.
type seriesBuffer struct {
	mu     sync.RWMutex
	series model.Series
	max    int
}

func newSeriesBuffer(max int) *seriesBuffer {
	return &seriesBuffer{max: max}
}

// Seed replaces the buffer contents with historical candles.
func (b *seriesBuffer) Seed(series model.Series) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.series = series.Normalize()
	b.trim()
}

// Append adds one closed candle. Out-of-order or duplicate bars are
// ignored — the feed re-sends on reconnect.
func (b *seriesBuffer) Append(c model.Candle) bool {
	if c.Forming || !c.Valid() {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.series); n > 0 && !c.TS.After(b.series[n-1].TS) {
		return false
	}
	b.series = append(b.series, c)
	b.trim()
	return true
}

func (b *seriesBuffer) trim() {
	if b.max > 0 && len(b.series) > b.max {
		keep := b.series[len(b.series)-b.max:]
		cp := make(model.Series, len(keep))
		copy(cp, keep)
		b.series = cp
	}
}

// Snapshot returns an independent copy for evaluation.
func (b *seriesBuffer) Snapshot() model.Series {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.series.Snapshot()
}

// Len returns the number of buffered candles.
func (b *seriesBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.series)
}
