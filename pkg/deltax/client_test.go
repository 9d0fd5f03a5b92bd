package deltax

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCandlesNormalizesAndMaps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/history/candles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSD" || q.Get("resolution") != "1h" {
			t.Errorf("unexpected query %v", q)
		}
		// Newest-first, with a duplicate — the client must normalize.
		w.Write([]byte(`{"success":true,"result":[
			{"time":7200,"open":3,"high":4,"low":2,"close":3.5,"volume":30},
			{"time":3600,"open":2,"high":3,"low":1,"close":2.5,"volume":20},
			{"time":3600,"open":9,"high":9,"low":9,"close":9,"volume":9},
			{"time":0,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10}
		]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	series, err := c.Candles(context.Background(), "BTCUSD", 3600, 100)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("got %d candles, want 3", len(series))
	}
	if series[0].Close != 1.5 || series[2].Close != 3.5 {
		t.Fatalf("wrong order: %v", series)
	}
	// Duplicate timestamp: first occurrence after sort wins.
	if series[1].Open != 2 {
		t.Fatalf("duplicate not dropped: %+v", series[1])
	}
	if series[0].Symbol != "BTCUSD" || series[0].TF != 3600 {
		t.Fatalf("symbol/tf not stamped: %+v", series[0])
	}
}

func TestPlaceOrderSignsRequest(t *testing.T) {
	const (
		apiKey    = "key123"
		apiSecret = "secret456"
	)
	fixed := time.Unix(1700000000, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != apiKey {
			t.Errorf("api-key header = %q", r.Header.Get("api-key"))
		}
		if r.Header.Get("timestamp") != "1700000000" {
			t.Errorf("timestamp header = %q", r.Header.Get("timestamp"))
		}

		body := `{"product_symbol":"BTCUSD","side":"buy","size":1,"order_type":"market_order"}`
		mac := hmac.New(sha256.New, []byte(apiSecret))
		mac.Write([]byte("POST" + "1700000000" + "/v2/orders" + "" + body))
		want := hex.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("signature"); got != want {
			t.Errorf("signature = %q, want %q", got, want)
		}

		w.Write([]byte(`{"success":true,"result":{"id":42,"state":"closed","side":"buy","size":"1","average_fill_price":"50000"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: apiKey, APISecret: apiSecret})
	c.now = func() time.Time { return fixed }

	resp, err := c.PlaceOrder(context.Background(), OrderRequest{
		ProductSymbol: "BTCUSD",
		Side:          "buy",
		Size:          1,
		OrderType:     "market_order",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if resp.ID != 42 || resp.State != "closed" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPlaceOrderWithoutCredentials(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:0"})
	_, err := c.PlaceOrder(context.Background(), OrderRequest{ProductSymbol: "BTCUSD", Side: "buy", Size: 1, OrderType: "market_order"})
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":{"code":"invalid_symbol","message":"unknown product"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Ticker(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestResolutionMapping(t *testing.T) {
	if r, err := Resolution(3600); err != nil || r != "1h" {
		t.Fatalf("Resolution(3600) = %q, %v", r, err)
	}
	if _, err := Resolution(7); err == nil {
		t.Fatal("expected error for unsupported timeframe")
	}
}
