// Package redis caches candle series and fans out live signals over
// Redis Pub/Sub. The cache sits between the exchange REST client and
// the backtest API so repeated runs against the same market window do
// not hammer the exchange.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"stratlab/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultSeriesTTL = 5 * time.Minute
	defaultLatestTTL = 30 * time.Minute
)

// Config configures the Redis cache client.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache wraps a Redis client for candle caching and signal pubsub.
type Cache struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// New creates a new Cache and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{client: client}, nil
}

func seriesKey(symbol string, tf, limit int) string {
	return fmt.Sprintf("series:%s:%ds:%d", symbol, tf, limit)
}

// GetSeries returns the cached candle series for a symbol, TF and limit.
// A cache miss returns (nil, false, nil).
func (c *Cache) GetSeries(ctx context.Context, symbol string, tf, limit int) (model.Series, bool, error) {
	data, err := c.client.Get(ctx, seriesKey(symbol, tf, limit)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get series: %w", err)
	}

	var series model.Series
	if err := json.Unmarshal([]byte(data), &series); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached series: %w", err)
	}
	return series, true, nil
}

// SetSeries caches a candle series with a short TTL. The newest candles
// go stale within one bar, so the TTL stays well below the timeframe.
func (c *Cache) SetSeries(ctx context.Context, symbol string, tf, limit int, series model.Series) error {
	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("marshal series: %w", err)
	}
	return c.client.Set(ctx, seriesKey(symbol, tf, limit), string(data), defaultSeriesTTL).Err()
}

// SetLatestCandle stores the most recent closed candle and publishes it
// for real-time subscribers, pipelined into one roundtrip.
func (c *Cache) SetLatestCandle(ctx context.Context, candle model.Candle) {
	latestKey := fmt.Sprintf("candle:%ds:latest:%s", candle.TF, candle.Symbol)
	pubsubCh := fmt.Sprintf("pub:candle:%ds:%s", candle.TF, candle.Symbol)
	jsonData := string(candle.JSON())

	pipe := c.client.Pipeline()
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, pubsubCh, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] latest candle pipeline error for %s: %v", candle.Key(), err)
	}
}

// GetLatestCandle returns the most recent closed candle for a symbol
// and TF, or (zero, false) when none is cached.
func (c *Cache) GetLatestCandle(ctx context.Context, symbol string, tf int) (model.Candle, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("candle:%ds:latest:%s", tf, symbol)).Result()
	if err != nil {
		if err == goredis.Nil {
			return model.Candle{}, false, nil
		}
		return model.Candle{}, false, fmt.Errorf("redis get latest candle: %w", err)
	}

	var candle model.Candle
	if err := json.Unmarshal([]byte(data), &candle); err != nil {
		return model.Candle{}, false, fmt.Errorf("unmarshal latest candle: %w", err)
	}
	return candle, true, nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
