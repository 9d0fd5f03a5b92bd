// Package execution turns live signals into orders. The paper executor
// simulates fills with slippage; the broker executor places real orders
// on the exchange. Both consume the same signal channel and report
// through the same result channel.
package execution

import (
	"context"

	"stratlab/internal/model"
)

// Order result statuses.
const (
	StatusFilled   = "FILLED"
	StatusRejected = "REJECTED"
	StatusError    = "ERROR"
)

// OrderResult represents the outcome of an order placement.
type OrderResult struct {
	OrderID string       `json:"order_id"`
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Signal  model.Signal `json:"signal"`
}

// Executor consumes signals and places orders until the context is
// cancelled or the signal channel closes.
type Executor interface {
	Run(ctx context.Context, signalCh <-chan model.Signal)
	Results() <-chan OrderResult
}
