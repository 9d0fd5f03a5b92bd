package execution

import (
	"context"
	"testing"
	"time"

	"stratlab/internal/model"
)

func TestPaperExecutorFillsWithSlippage(t *testing.T) {
	p := NewPaperExecutor(10, 10) // 10 bps = 0.1%

	sigCh := make(chan model.Signal, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx, sigCh)

	sigCh <- model.Signal{
		StrategyName: "trend",
		Symbol:       "BTCUSD",
		Action:       model.ActionBuy,
		Qty:          2,
		Price:        50000,
	}

	select {
	case res := <-p.Results():
		if res.Status != StatusFilled {
			t.Fatalf("status = %s, want FILLED", res.Status)
		}
		if res.OrderID != "PAPER-1" {
			t.Errorf("order id = %s", res.OrderID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}

	fills := p.GetFills()
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	// Buy slips up: 50000 * 10/10000 = 50.
	if fills[0].FillPrice != 50050 {
		t.Errorf("buy fill price = %v, want 50050", fills[0].FillPrice)
	}
	if fills[0].Slippage != 50 {
		t.Errorf("slippage = %v, want 50", fills[0].Slippage)
	}

	sigCh <- model.Signal{
		StrategyName: "trend",
		Symbol:       "BTCUSD",
		Action:       model.ActionSell,
		Qty:          2,
		Price:        50000,
	}

	select {
	case <-p.Results():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sell result")
	}

	fills = p.GetFills()
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}
	// Sell slips down.
	if fills[1].FillPrice != 49950 {
		t.Errorf("sell fill price = %v, want 49950", fills[1].FillPrice)
	}
}

func TestPaperExecutorZeroSlippage(t *testing.T) {
	p := NewPaperExecutor(1, 0)
	p.executeSignal(model.Signal{Action: model.ActionBuy, Symbol: "ETHUSD", Qty: 1, Price: 2000})

	fills := p.GetFills()
	if len(fills) != 1 || fills[0].FillPrice != 2000 || fills[0].Slippage != 0 {
		t.Fatalf("unexpected fills: %+v", fills)
	}
}
