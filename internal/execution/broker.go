package execution

import (
	"context"
	"log"
	"strconv"
	"time"

	"stratlab/internal/model"
	"stratlab/pkg/deltax"
)

const brokerOrderTimeout = 15 * time.Second

// BrokerExecutor places real market orders through the exchange API.
type BrokerExecutor struct {
	client   *deltax.Client
	resultCh chan OrderResult
}

// NewBrokerExecutor creates an executor backed by a signed exchange
// client.
func NewBrokerExecutor(client *deltax.Client, resultBufferSize int) *BrokerExecutor {
	return &BrokerExecutor{
		client:   client,
		resultCh: make(chan OrderResult, resultBufferSize),
	}
}

// Results returns the channel of order results.
func (b *BrokerExecutor) Results() <-chan OrderResult {
	return b.resultCh
}

// Run consumes signals and places orders on the exchange.
func (b *BrokerExecutor) Run(ctx context.Context, signalCh <-chan model.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signalCh:
			if !ok {
				return
			}
			b.resultCh <- b.placeOrder(ctx, sig)
		}
	}
}

func (b *BrokerExecutor) placeOrder(ctx context.Context, sig model.Signal) OrderResult {
	side := "buy"
	if sig.Action == model.ActionSell {
		side = "sell"
	}

	orderCtx, cancel := context.WithTimeout(ctx, brokerOrderTimeout)
	defer cancel()

	resp, err := b.client.PlaceOrder(orderCtx, deltax.OrderRequest{
		ProductSymbol: sig.Symbol,
		Side:          side,
		Size:          sig.Qty,
		OrderType:     "market_order",
	})
	if err != nil {
		log.Printf("[broker] order failed for %s %s: %v", sig.Action, sig.Symbol, err)
		return OrderResult{Status: StatusError, Message: err.Error(), Signal: sig}
	}

	log.Printf("[broker] %s %s qty=%v order=%d state=%s fill=%s",
		sig.Action, sig.Symbol, sig.Qty, resp.ID, resp.State, resp.AvgFillPrice)

	status := StatusFilled
	if resp.State == "cancelled" || resp.State == "rejected" {
		status = StatusRejected
	}
	return OrderResult{
		OrderID: strconv.FormatInt(resp.ID, 10),
		Status:  status,
		Message: "broker state: " + resp.State,
		Signal:  sig,
	}
}

var _ Executor = (*BrokerExecutor)(nil)
