package logger

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := RunID(ctx); got != "" {
		t.Fatalf("RunID on empty context = %q, want empty", got)
	}

	ctx = WithRunID(ctx, "trend-123")
	if got := RunID(ctx); got != "trend-123" {
		t.Fatalf("RunID = %q, want trend-123", got)
	}
}

func TestGenerateRunID(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	id := GenerateRunID("BTCUSD", ts)
	if !strings.HasPrefix(id, "BTCUSD-") {
		t.Fatalf("id = %q, want BTCUSD- prefix", id)
	}
}

func TestLogWithRun(t *testing.T) {
	if attrs := LogWithRun(context.Background()); attrs != nil {
		t.Fatalf("attrs = %v, want nil without run ID", attrs)
	}
	ctx := WithRunID(context.Background(), "x-1")
	if attrs := LogWithRun(ctx); len(attrs) != 1 {
		t.Fatalf("attrs = %v, want one entry", attrs)
	}
}
