package deltax

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"stratlab/internal/model"
)

const (
	defaultWSURL    = "wss://socket.india.delta.exchange"
	wsWriteTimeout  = 5 * time.Second
	wsPongTimeout   = 40 * time.Second
	wsPingInterval  = 15 * time.Second
	maxReconnectGap = 30 * time.Second
)

// Stream consumes live candlestick updates over the exchange WebSocket.
// Each update carries the forming candle for the current bucket; when a
// new bucket opens the previous candle is final.
type Stream struct {
	url     string
	dialer  *websocket.Dialer
	symbols []string
	tf      int

	// OnCandle receives every candlestick update, forming and final.
	OnCandle func(model.Candle)
	// OnReconnect is invoked before each reconnection attempt.
	OnReconnect func(attempt int)
}

// NewStream creates a Stream for the given symbols and timeframe.
func NewStream(wsURL string, symbols []string, tf int) *Stream {
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	return &Stream{
		url:     wsURL,
		dialer:  websocket.DefaultDialer,
		symbols: symbols,
		tf:      tf,
	}
}

type wsSubscribe struct {
	Type    string `json:"type"`
	Payload struct {
		Channels []wsChannel `json:"channels"`
	} `json:"payload"`
}

type wsChannel struct {
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

// wsCandle mirrors a candlestick_<res> frame. Timestamps come in
// microseconds.
type wsCandle struct {
	Type            string  `json:"type"`
	Symbol          string  `json:"symbol"`
	CandleStartTime int64   `json:"candle_start_time"`
	Timestamp       int64   `json:"timestamp"`
	Open            float64 `json:"open"`
	High            float64 `json:"high"`
	Low             float64 `json:"low"`
	Close           float64 `json:"close"`
	Volume          float64 `json:"volume"`
}

// Run connects, subscribes, and pumps candles to OnCandle until ctx is
// cancelled. Reconnects with exponential backoff on any failure.
func (s *Stream) Run(ctx context.Context) error {
	res, err := Resolution(s.tf)
	if err != nil {
		return err
	}
	channel := "candlestick_" + res

	backoff := time.Second
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if attempt > 0 {
			if s.OnReconnect != nil {
				s.OnReconnect(attempt)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxReconnectGap {
				backoff = maxReconnectGap
			}
		}
		attempt++

		if err := s.runOnce(ctx, channel); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[deltax-ws] connection lost: %v", err)
			continue
		}
		// Clean read-loop exit still means reconnect, but reset backoff.
		backoff = time.Second
	}
}

func (s *Stream) runOnce(ctx context.Context, channel string) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	sub := wsSubscribe{Type: "subscribe"}
	sub.Payload.Channels = []wsChannel{{Name: channel, Symbols: s.symbols}}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	log.Printf("[deltax-ws] subscribed to %s for %v", channel, s.symbols)

	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	// Ping loop keeps the read deadline alive.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame wsCandle
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Type != channel || frame.Symbol == "" {
			continue
		}

		candle := model.Candle{
			Symbol:  frame.Symbol,
			TF:      s.tf,
			TS:      time.Unix(0, frame.CandleStartTime*int64(time.Microsecond)).UTC(),
			Open:    frame.Open,
			High:    frame.High,
			Low:     frame.Low,
			Close:   frame.Close,
			Volume:  frame.Volume,
			Forming: true,
		}
		if !candle.Valid() {
			continue
		}
		if s.OnCandle != nil {
			s.OnCandle(candle)
		}
	}
}
