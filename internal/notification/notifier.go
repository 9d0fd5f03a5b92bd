// Package notification delivers trading alerts to external channels
// (Telegram, webhooks) as the live engine emits signals.
package notification

import (
	"context"
	"fmt"
	"log"

	"stratlab/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent. Signal carries the
// originating trade signal when the alert comes from the live engine;
// backends that support structured payloads include it.
type Alert struct {
	Level   AlertLevel    `json:"level"`
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Signal  *model.Signal `json:"signal,omitempty"`
}

// SignalAlert formats a live signal as an alert. Stop-loss exits rate
// a warning; everything else is informational.
func SignalAlert(sig model.Signal) Alert {
	level := AlertInfo
	if sig.Action == model.ActionSell && sig.Reason == string(model.ExitStopLoss) {
		level = AlertWarning
	}
	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("%s %s", sig.Action, sig.Symbol),
		Message: fmt.Sprintf("%s: %s %v %s @ %.4f (%s)", sig.StrategyName, sig.Action, sig.Qty, sig.Symbol, sig.Price, sig.Reason),
		Signal:  &sig,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// MultiNotifier fans an alert out to several backends. Delivery
// failures are logged, not propagated — one dead webhook must not
// block the rest.
type MultiNotifier struct {
	backends []Notifier
}

// NewMultiNotifier creates a fan-out notifier.
func NewMultiNotifier(backends ...Notifier) *MultiNotifier {
	return &MultiNotifier{backends: backends}
}

func (m *MultiNotifier) Send(ctx context.Context, alert Alert) error {
	for _, n := range m.backends {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend error: %v", err)
		}
	}
	return nil
}

// WatchSignals forwards every signal on the channel as an alert until
// ctx is cancelled.
func WatchSignals(ctx context.Context, n Notifier, signals <-chan model.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if err := n.Send(ctx, SignalAlert(sig)); err != nil {
				log.Printf("[notify] send error: %v", err)
			}
		}
	}
}
