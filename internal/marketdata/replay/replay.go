// Package replay reads historical candles from the store and emits
// them at configurable speed, so the live engine can be exercised
// against recorded markets.
package replay

import (
	"context"
	"log"
	"sort"
	"time"

	"stratlab/internal/model"
)

// Replayer reads historical candles and replays them at a configurable
// speed multiplier.
type Replayer struct {
	store model.CandleStore
}

// New creates a Replayer backed by a candle store.
func New(store model.CandleStore) *Replayer {
	return &Replayer{store: store}
}

// Run replays all candles for the given symbols and TF, emitting them
// into outCh. speed controls the playback rate: 1.0 = real-time,
// 10.0 = 10x, 0 = as fast as possible. fromTS filters candles to those
// after this Unix timestamp (0 = all).
func (r *Replayer) Run(ctx context.Context, symbols []string, tf int, fromTS int64, speed float64, outCh chan<- model.Candle) error {
	var all model.Series
	for _, sym := range symbols {
		series, err := r.store.ReadCandles(sym, tf, fromTS)
		if err != nil {
			return err
		}
		all = append(all, series...)
	}

	if len(all) == 0 {
		log.Println("[replay] no candles found in store")
		return nil
	}

	// Interleave symbols chronologically. Same-timestamp candles for
	// different symbols must all survive, so no dedupe here.
	sort.SliceStable(all, func(i, j int) bool { return all[i].TS.Before(all[j].TS) })

	log.Printf("[replay] loaded %d candles across %d symbols, speed=%.1fx", len(all), len(symbols), speed)

	var prevTS time.Time
	emitted := 0

	for _, c := range all {
		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d candles", emitted)
			return ctx.Err()
		default:
		}

		// Simulate time gaps between candles
		if speed > 0 && !prevTS.IsZero() {
			gap := c.TS.Sub(prevTS)
			if gap > 0 {
				scaledGap := time.Duration(float64(gap) / speed)
				// Cap max sleep to avoid very long waits
				if scaledGap > 5*time.Second {
					scaledGap = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(scaledGap):
				}
			}
		}
		prevTS = c.TS

		c.Forming = false
		select {
		case outCh <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
		emitted++
	}

	log.Printf("[replay] completed: %d candles replayed", emitted)
	return nil
}
