package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"stratlab/internal/model"
)

// SignalChannel is the Pub/Sub channel live signals are broadcast on.
const SignalChannel = "pub:signals"

// PublishSignal broadcasts a live signal so dashboards and other engine
// instances see entries and exits as they happen.
func (c *Cache) PublishSignal(ctx context.Context, sig model.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	return c.client.Publish(ctx, SignalChannel, string(data)).Err()
}

// SubscribeSignals subscribes to the signal channel and feeds decoded
// signals into out. Blocks until ctx is cancelled. Slow consumers drop
// messages rather than stall the subscription.
func (c *Cache) SubscribeSignals(ctx context.Context, out chan<- model.Signal) error {
	pubsub := c.client.Subscribe(ctx, SignalChannel)
	defer pubsub.Close()

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", SignalChannel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var sig model.Signal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				log.Printf("[redis] unmarshal signal error: %v", err)
				continue
			}
			select {
			case out <- sig:
			default:
			}
		}
	}
}

var _ model.SignalPublisher = (*Cache)(nil)
