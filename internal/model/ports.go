package model

import "context"

// ── Collaborator Port Interfaces ──
// These interfaces decouple the evaluation core from the services around
// it (market data, strategy persistence, order placement). Each concrete
// implementation satisfies one or more of these.

// CandleSource returns chronologically ordered OHLCV for a symbol and
// timeframe. Missing or partial upstream data yields an empty series —
// callers treat that as "no market data", not an error.
type CandleSource interface {
	Candles(ctx context.Context, symbol string, tf int, limit int) (Series, error)
}

// CandleStore persists candle history for replay and backfill.
type CandleStore interface {
	WriteCandles(ctx context.Context, candles []Candle) error

	// ReadCandles reads candles for a symbol and TF after the given Unix
	// timestamp, oldest first.
	ReadCandles(symbol string, tf int, afterTS int64) (Series, error)

	Close() error
}

// SignalPublisher broadcasts live signals to interested consumers
// (pubsub, websocket clients, notifiers).
type SignalPublisher interface {
	PublishSignal(ctx context.Context, sig Signal) error
}
