// Package live hosts running strategies against the closed-candle
// feed. Each running strategy gets a session with a single position;
// evaluations happen on bar close over an immutable series snapshot,
// so a forming bar can never trigger an entry.
package live

import (
	"context"
	"log"
	"sync"
	"time"

	"stratlab/internal/model"
	"stratlab/internal/strategy"
)

const defaultBufferBars = 1000

// Engine routes closed candles to strategy sessions and publishes the
// signals they emit.
type Engine struct {
	risk      *RiskGuard
	publisher model.SignalPublisher // optional
	signalCh  chan model.Signal

	mu       sync.RWMutex
	buffers  map[string]*seriesBuffer // symbol:tf -> closed bars
	sessions map[int64]*session       // strategy ID -> session

	// Metrics hooks
	OnEval   func(took time.Duration)
	OnSignal func(sig model.Signal)
}

// NewEngine creates an Engine with the given risk guard.
func NewEngine(risk *RiskGuard, publisher model.SignalPublisher, signalBufferSize int) *Engine {
	return &Engine{
		risk:      risk,
		publisher: publisher,
		signalCh:  make(chan model.Signal, signalBufferSize),
		buffers:   make(map[string]*seriesBuffer),
		sessions:  make(map[int64]*session),
	}
}

// Signals returns the channel the execution bridge consumes.
func (e *Engine) Signals() <-chan model.Signal {
	return e.signalCh
}

// SeedHistory preloads a symbol's buffer with historical candles so
// indicators are warm before the first live bar.
func (e *Engine) SeedHistory(symbol string, tf int, series model.Series) {
	buf := e.buffer(symbol, tf)
	buf.Seed(series)
	log.Printf("[live] seeded %d candles for %s:%d", buf.Len(), symbol, tf)
}

// StartStrategy adds a session for a strategy record. Replacing an
// existing session with the same ID keeps its open position only if
// symbol and timeframe are unchanged.
func (e *Engine) StartStrategy(rec strategy.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.sessions[rec.ID]; ok && prev.rec.Symbol == rec.Symbol && prev.rec.TF == rec.TF {
		prev.rec = rec
		log.Printf("[live] updated strategy %d (%s)", rec.ID, rec.Name)
		return
	}
	e.sessions[rec.ID] = newSession(rec, e.risk)
	log.Printf("[live] started strategy %d (%s) on %s:%d", rec.ID, rec.Name, rec.Symbol, rec.TF)
}

// StopStrategy removes a session. An open position is force-closed at
// the last buffered close, emitting a MANUAL exit signal.
func (e *Engine) StopStrategy(ctx context.Context, id int64) {
	e.mu.Lock()
	sess, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	series := e.buffer(sess.rec.Symbol, sess.rec.TF).Snapshot()
	price, ts := 0.0, time.Now().UTC()
	if n := len(series); n > 0 {
		price, ts = series[n-1].Close, series[n-1].TS
	}
	if sig, closed := sess.closePosition(price, ts); closed {
		e.emit(ctx, sig)
	}
	log.Printf("[live] stopped strategy %d", id)
}

// Running returns the IDs of hosted strategies.
func (e *Engine) Running() []int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]int64, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Run consumes closed candles until ctx is cancelled or the channel
// closes.
func (e *Engine) Run(ctx context.Context, candleCh <-chan model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-candleCh:
			if !ok {
				return
			}
			e.onCandle(ctx, candle)
		}
	}
}

func (e *Engine) onCandle(ctx context.Context, c model.Candle) {
	buf := e.buffer(c.Symbol, c.TF)
	if !buf.Append(c) {
		return
	}
	snapshot := buf.Snapshot()

	e.mu.RLock()
	sessions := make([]*session, 0, len(e.sessions))
	for _, sess := range e.sessions {
		if sess.rec.Symbol == c.Symbol && sess.rec.TF == c.TF {
			sessions = append(sessions, sess)
		}
	}
	e.mu.RUnlock()

	for _, sess := range sessions {
		start := time.Now()
		signals, err := sess.onBarClose(snapshot)
		if e.OnEval != nil {
			e.OnEval(time.Since(start))
		}
		if err != nil {
			log.Printf("[live] %v", err)
			continue
		}
		for _, sig := range signals {
			e.emit(ctx, sig)
		}
	}
}

func (e *Engine) emit(ctx context.Context, sig model.Signal) {
	log.Printf("[live] signal: %s %s qty=%v price=%.4f (%s)", sig.Action, sig.Symbol, sig.Qty, sig.Price, sig.Reason)
	if e.OnSignal != nil {
		e.OnSignal(sig)
	}

	select {
	case e.signalCh <- sig:
	default:
		log.Printf("[live] signal channel full, dropping %s %s", sig.Action, sig.Symbol)
	}

	if e.publisher != nil {
		if err := e.publisher.PublishSignal(ctx, sig); err != nil {
			log.Printf("[live] publish signal error: %v", err)
		}
	}
}

func (e *Engine) buffer(symbol string, tf int) *seriesBuffer {
	key := model.SeriesKey(symbol, tf)
	e.mu.Lock()
	defer e.mu.Unlock()
	buf, ok := e.buffers[key]
	if !ok {
		buf = newSeriesBuffer(defaultBufferBars)
		e.buffers[key] = buf
	}
	return buf
}
