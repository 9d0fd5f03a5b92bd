package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stratlab/internal/model"
)

func TestSignalAlertLevels(t *testing.T) {
	buy := SignalAlert(model.Signal{
		StrategyName: "trend", Symbol: "BTCUSD",
		Action: model.ActionBuy, Qty: 1, Price: 50000,
		Reason: "conditions satisfied",
	})
	if buy.Level != AlertInfo {
		t.Errorf("buy level = %s, want INFO", buy.Level)
	}
	if !strings.Contains(buy.Message, "trend") || !strings.Contains(buy.Message, "BTCUSD") {
		t.Errorf("message missing fields: %q", buy.Message)
	}

	stop := SignalAlert(model.Signal{
		Action: model.ActionSell, Symbol: "BTCUSD",
		Reason: string(model.ExitStopLoss),
	})
	if stop.Level != AlertWarning {
		t.Errorf("stop-loss level = %s, want WARNING", stop.Level)
	}
}

func TestWebhookNotifierPosts(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "BUY BTCUSD", Message: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["title"] != "BUY BTCUSD" || got["level"] != "INFO" {
		t.Fatalf("unexpected payload: %v", got)
	}
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Fatal("expected error for 502")
	}
}

type countingNotifier struct {
	sent int
	fail bool
}

func (c *countingNotifier) Send(ctx context.Context, alert Alert) error {
	c.sent++
	if c.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func TestMultiNotifierContinuesPastFailures(t *testing.T) {
	bad := &countingNotifier{fail: true}
	good := &countingNotifier{}

	m := NewMultiNotifier(bad, good)
	if err := m.Send(context.Background(), Alert{Title: "x"}); err != nil {
		t.Fatalf("multi send: %v", err)
	}
	if bad.sent != 1 || good.sent != 1 {
		t.Fatalf("sent counts: bad=%d good=%d", bad.sent, good.sent)
	}
}
