package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"stratlab/internal/model"
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID   string       `json:"order_id"`
	Signal    model.Signal `json:"signal"`
	FillPrice float64      `json:"fill_price"`
	FillQty   float64      `json:"fill_qty"`
	FilledAt  time.Time    `json:"filled_at"`
	Slippage  float64      `json:"slippage"`
}

// PaperExecutor simulates order execution without real broker calls.
type PaperExecutor struct {
	mu       sync.RWMutex
	fills    []Fill
	resultCh chan OrderResult
	orderSeq int64

	// slippage in basis points (5 = 0.05%)
	slippageBps float64
}

// NewPaperExecutor creates a paper trading executor.
func NewPaperExecutor(resultBufferSize int, slippageBps float64) *PaperExecutor {
	return &PaperExecutor{
		fills:       make([]Fill, 0, 1000),
		resultCh:    make(chan OrderResult, resultBufferSize),
		slippageBps: slippageBps,
	}
}

// Results returns the channel of order results.
func (p *PaperExecutor) Results() <-chan OrderResult {
	return p.resultCh
}

// GetFills returns a snapshot of all fills.
func (p *PaperExecutor) GetFills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Run consumes signals and simulates execution.
func (p *PaperExecutor) Run(ctx context.Context, signalCh <-chan model.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signalCh:
			if !ok {
				return
			}
			p.executeSignal(sig)
		}
	}
}

func (p *PaperExecutor) executeSignal(sig model.Signal) {
	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)

	// Fill at the signal price plus simulated slippage against us.
	fillPrice := sig.Price
	slippage := 0.0
	if fillPrice > 0 && p.slippageBps > 0 {
		slippage = fillPrice * p.slippageBps / 10000
		if sig.Action == model.ActionBuy {
			fillPrice += slippage // buy higher
		} else {
			fillPrice -= slippage // sell lower
		}
	}

	fill := Fill{
		OrderID:   orderID,
		Signal:    sig,
		FillPrice: fillPrice,
		FillQty:   sig.Qty,
		FilledAt:  time.Now().UTC(),
		Slippage:  slippage,
	}
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	log.Printf("[paper] %s %s %s qty=%v price=%.4f (slip=%.4f) order=%s reason=%s",
		sig.Action, sig.StrategyName, sig.Symbol,
		sig.Qty, fillPrice, slippage, orderID, sig.Reason)

	p.resultCh <- OrderResult{
		OrderID: orderID,
		Status:  StatusFilled,
		Message: fmt.Sprintf("paper filled at %.4f", fillPrice),
		Signal:  sig,
	}
}

var _ Executor = (*PaperExecutor)(nil)
