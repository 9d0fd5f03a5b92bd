// Package ws turns the exchange's forming-candle WebSocket stream into
// a closed-candle feed. The exchange re-sends the current bucket on
// every trade; a bar is final once a newer bucket appears for its
// symbol.
package ws

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"stratlab/internal/model"
	"stratlab/pkg/deltax"
)

// IngestConfig holds configuration for the WS ingest.
type IngestConfig struct {
	WSURL   string
	Symbols []string
	TF      int // timeframe in seconds
}

// Ingest connects to the exchange WebSocket and pushes closed candles
// into closedCh and forming snapshots into formingCh (if set).
type Ingest struct {
	cfg    IngestConfig
	stream *deltax.Stream

	mu      sync.Mutex
	forming map[string]model.Candle // symbol -> current bucket

	// Optional metrics hooks
	OnReconnect func()
	OnClosed    func(model.Candle)
}

// New creates a new Ingest instance.
func New(cfg IngestConfig) (*Ingest, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("ws ingest: no symbols configured")
	}
	if _, err := deltax.Resolution(cfg.TF); err != nil {
		return nil, fmt.Errorf("ws ingest: %w", err)
	}

	return &Ingest{
		cfg:     cfg,
		stream:  deltax.NewStream(cfg.WSURL, cfg.Symbols, cfg.TF),
		forming: make(map[string]model.Candle),
	}, nil
}

// Start connects and streams candles until ctx is cancelled. Closed
// candles go through the OnClosed hook and to closedCh; every forming
// update goes to formingCh. Either channel may be nil when the caller
// consumes candles through OnClosed instead. Non-nil sends drop on a
// full channel.
func (ing *Ingest) Start(ctx context.Context, closedCh chan<- model.Candle, formingCh chan<- model.Candle) error {
	ing.stream.OnReconnect = func(attempt int) {
		log.Printf("[ws] reconnecting (attempt %d)", attempt)
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}
	}

	ing.stream.OnCandle = func(update model.Candle) {
		ing.handleUpdate(update, closedCh, formingCh)
	}

	log.Printf("[ws] starting ingest for %v tf=%ds", ing.cfg.Symbols, ing.cfg.TF)
	return ing.stream.Run(ctx)
}

// handleUpdate runs on the stream read goroutine for every frame.
func (ing *Ingest) handleUpdate(update model.Candle, closedCh, formingCh chan<- model.Candle) {
	closed, ok := ing.rollover(update)
	if ok {
		if ing.OnClosed != nil {
			ing.OnClosed(closed)
		}
		if closedCh != nil {
			select {
			case closedCh <- closed:
			default:
				log.Printf("[ws] closedCh full, dropping candle %s", closed.Key())
			}
		}
	}

	if formingCh != nil {
		select {
		case formingCh <- update:
		default:
		}
	}
}

// rollover merges a forming update into per-symbol state. When the
// update opens a new bucket, the previous bucket is returned as a
// closed candle. Updates for an older bucket (stale frames replayed
// after a reconnect) are discarded: letting one overwrite the forming
// state would re-close an already-emitted bar on the next update.
func (ing *Ingest) rollover(update model.Candle) (model.Candle, bool) {
	ing.mu.Lock()
	defer ing.mu.Unlock()

	prev, exists := ing.forming[update.Symbol]
	if exists && update.TS.Before(prev.TS) {
		return model.Candle{}, false
	}
	ing.forming[update.Symbol] = update

	if !exists || !update.TS.After(prev.TS) {
		return model.Candle{}, false
	}

	prev.Forming = false
	return prev, true
}

// Flush returns the current forming candles, newest state per symbol.
// Called on shutdown so the last partial bars can be inspected.
func (ing *Ingest) Flush() []model.Candle {
	ing.mu.Lock()
	defer ing.mu.Unlock()

	out := make([]model.Candle, 0, len(ing.forming))
	for _, c := range ing.forming {
		out = append(out, c)
	}
	return out
}

// WaitForFirstCandle blocks until at least one update arrives or the
// timeout elapses. Useful for startup health checks.
func (ing *Ingest) WaitForFirstCandle(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ing.mu.Lock()
		n := len(ing.forming)
		ing.mu.Unlock()
		if n > 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
	return false
}
