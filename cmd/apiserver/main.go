// cmd/apiserver serves the REST API: backtests, strategy CRUD,
// diagnostics, and the live-signal WebSocket stream. Candle requests go
// through the Redis series cache, fall back to the exchange REST API,
// and finally to stored SQLite history.
//
// Usage:
//
//	SYMBOLS=BTCUSD,ETHUSD API_ADDR=:8080 go run ./cmd/apiserver
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stratlab/config"
	"stratlab/internal/api"
	"stratlab/internal/logger"
	"stratlab/internal/marketdata"
	"stratlab/internal/metrics"
	"stratlab/internal/model"
	redisstore "stratlab/internal/store/redis"
	sqlitestore "stratlab/internal/store/sqlite"
	"stratlab/pkg/deltax"
)

func main() {
	logger.Init("apiserver", slog.LevelInfo)
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[apiserver] sqlite open failed: %v", err)
	}
	defer store.Close()

	// Redis is optional for the API server: without it, backtests fetch
	// straight from the exchange and the signal stream is disabled.
	var cache *redisstore.Cache
	if c, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}); err != nil {
		log.Printf("[apiserver] redis unavailable, running without cache: %v", err)
	} else {
		cache = c
		defer cache.Close()
	}

	exchange := deltax.New(deltax.Config{BaseURL: cfg.ExchangeRESTURL})

	m := metrics.New()
	source := marketdata.NewCachedSource(exchange, seriesCache(cache), store)
	source.OnCacheHit = func() { m.CandleCacheHits.Inc() }
	source.OnCacheMiss = func() { m.CandleCacheMiss.Inc() }
	source.OnFetch = func(src string) { m.CandleFetches.WithLabelValues(src).Inc() }

	metricsSrv := metrics.NewServer(cfg.MetricsAddr)
	metricsSrv.Start()

	// Signal hub, fed from the Redis signal channel the live engine
	// publishes to.
	hub := api.NewHub()
	if cache != nil {
		sigCh := make(chan model.Signal, 256)
		go func() {
			if err := cache.SubscribeSignals(ctx, sigCh); err != nil && ctx.Err() == nil {
				log.Printf("[apiserver] signal subscription ended: %v", err)
			}
		}()
		go hub.Run(ctx, sigCh)
	}

	diag := api.Diagnostics{
		Exchange: func(ctx context.Context) (time.Duration, error) {
			return exchange.Ping(ctx, firstSymbol(cfg))
		},
		DB: func(ctx context.Context) error {
			return store.DB().PingContext(ctx)
		},
	}
	if cache != nil {
		diag.Redis = func(ctx context.Context) error {
			return cache.Client().Ping(ctx).Err()
		}
	}

	srv := api.NewServer(cfg.APIAddr, api.Deps{
		Source:       source,
		Strategies:   store,
		Hub:          hub,
		Diag:         diag,
		Metrics:      m,
		DefaultLimit: cfg.CandleLimit,
	})
	srv.Start()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Println("[apiserver] shutting down...")
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	srv.Stop(shutCtx)
	metricsSrv.Stop(shutCtx)
	log.Println("[apiserver] bye")
}

// seriesCache avoids handing a typed-nil *Cache to the interface field.
func seriesCache(c *redisstore.Cache) marketdata.SeriesCache {
	if c == nil {
		return nil
	}
	return c
}

func firstSymbol(cfg *config.Config) string {
	syms := cfg.ParseSymbols()
	if len(syms) == 0 {
		return "BTCUSD"
	}
	return syms[0]
}
