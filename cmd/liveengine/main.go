// cmd/liveengine runs hosted strategies against the live candle feed:
// WebSocket ingest -> ring buffer -> fan-out (engine, SQLite history,
// Redis latest-candle cache). Signals go to the executor (paper or
// broker), the fill journal, Redis pub/sub, and the notifier.
//
// Usage:
//
//	SYMBOLS=BTCUSD TF=300 EXECUTOR=paper go run ./cmd/liveengine
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pquerna/otp/totp"

	"stratlab/config"
	"stratlab/internal/execution"
	"stratlab/internal/live"
	"stratlab/internal/logger"
	"stratlab/internal/marketdata"
	"stratlab/internal/marketdata/bus"
	"stratlab/internal/marketdata/replay"
	wsingest "stratlab/internal/marketdata/ws"
	"stratlab/internal/metrics"
	"stratlab/internal/model"
	"stratlab/internal/notification"
	"stratlab/internal/ringbuf"
	redisstore "stratlab/internal/store/redis"
	sqlitestore "stratlab/internal/store/sqlite"
	"stratlab/pkg/deltax"
)

func main() {
	logger.Init("liveengine", slog.LevelInfo)

	equity := flag.Float64("equity", 10000, "Starting equity for risk limits")
	seedBars := flag.Int("seed", 500, "History bars to seed per symbol before going live")
	replayMode := flag.Bool("replay", false, "Replay stored SQLite history instead of the live feed")
	replayFrom := flag.Int64("replay-from", 0, "Unix timestamp to replay from (0=all)")
	replaySpeed := flag.Float64("replay-speed", 0, "Replay speed multiplier (0=max, 1=realtime)")
	flag.Parse()

	cfg := config.Load()
	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[liveengine] no symbols configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr)
	metricsSrv.Start()

	store, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[liveengine] sqlite open failed: %v", err)
	}
	defer store.Close()

	// Redis is optional: without it, signals still reach the executor
	// and notifier, but the API server's WS stream stays silent.
	var cache *redisstore.Cache
	if c, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}); err != nil {
		log.Printf("[liveengine] redis unavailable, running without pub/sub: %v", err)
	} else {
		cache = c
		defer cache.Close()
	}

	exchange := deltax.New(deltax.Config{BaseURL: cfg.ExchangeRESTURL})

	// Engine with risk limits over starting equity.
	risk := live.NewRiskGuard(live.DefaultRiskLimits(), *equity)
	risk.OnVeto = func(string) { m.RiskVetoes.Inc() }

	var publisher model.SignalPublisher
	if cache != nil {
		publisher = cache
	}
	engine := live.NewEngine(risk, publisher, 256)
	engine.OnEval = func(took time.Duration) {
		m.LiveEvals.Inc()
		m.LiveEvalDur.Observe(took.Seconds())
	}
	engine.OnSignal = func(sig model.Signal) {
		m.SignalsTotal.WithLabelValues(string(sig.Action)).Inc()
	}

	// Seed evaluation history so indicators are warm from the first
	// live bar.
	source := marketdata.NewCachedSource(exchange, nil, store)
	for _, sym := range symbols {
		series, err := source.Candles(ctx, sym, cfg.TF, *seedBars)
		if err != nil {
			log.Printf("[liveengine] history seed failed for %s: %v", sym, err)
			continue
		}
		engine.SeedHistory(sym, cfg.TF, series)
		log.Printf("[liveengine] seeded %d bars for %s", len(series), sym)
	}

	// Resume strategies that were running when the process last exited.
	running, err := store.RunningStrategies()
	if err != nil {
		log.Fatalf("[liveengine] load running strategies: %v", err)
	}
	for _, rec := range running {
		engine.StartStrategy(rec)
	}
	log.Printf("[liveengine] resumed %d running strategies", len(running))

	// Market data pipeline: live WebSocket ingest, or stored-history
	// replay for offline soak runs. In live mode closed bars cross a
	// lock-free ring from the stream read goroutine to the pump that
	// feeds the fan-out; replay already runs in its own goroutine and
	// writes the fan-out input directly.
	fanIn := make(chan model.Candle, 1024)
	var ingest *wsingest.Ingest
	if *replayMode {
		replayer := replay.New(store)
		go func() {
			defer close(fanIn)
			if err := replayer.Run(ctx, symbols, cfg.TF, *replayFrom, *replaySpeed, fanIn); err != nil && ctx.Err() == nil {
				log.Printf("[liveengine] replay error: %v", err)
			}
		}()
	} else {
		ring := ringbuf.New(4096)
		ing, err := wsingest.New(wsingest.IngestConfig{
			WSURL:   cfg.ExchangeWSURL,
			Symbols: symbols,
			TF:      cfg.TF,
		})
		if err != nil {
			log.Fatalf("[liveengine] ingest setup failed: %v", err)
		}
		ing.OnReconnect = func() { m.WSReconnects.Inc() }
		ing.OnClosed = func(c model.Candle) {
			if !ring.Push(c) {
				m.RingBufOverflow.Inc()
				return
			}
			m.CandlesIngested.Inc()
		}
		ingest = ing

		formingCh := make(chan model.Candle, 1024)
		go func() {
			if err := ingest.Start(ctx, nil, formingCh); err != nil && ctx.Err() == nil {
				log.Printf("[liveengine] ingest stopped: %v", err)
			}
			close(formingCh)
		}()

		// Sole ring consumer.
		go func() {
			defer close(fanIn)
			tick := time.NewTicker(5 * time.Millisecond)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-tick.C:
				}
				for _, c := range ring.Drain(64) {
					select {
					case fanIn <- c:
					case <-ctx.Done():
						return
					}
				}
			}
		}()

		if cache != nil {
			go func() {
				for c := range formingCh {
					cache.SetLatestCandle(ctx, c)
				}
			}()
		} else {
			go func() {
				for range formingCh {
				}
			}()
		}
	}

	fan := bus.New(1024)
	fan.OnDrop = func(sub string) { m.FanoutDrops.WithLabelValues(sub).Inc() }
	engineCh := fan.Subscribe("engine")
	historyCh := fan.Subscribe("sqlite")
	var latestCh <-chan model.Candle
	if cache != nil {
		latestCh = fan.Subscribe("redis")
	}
	go fan.Run(ctx, fanIn)

	go store.Run(ctx, historyCh)
	if cache != nil {
		go func() {
			for c := range latestCh {
				cache.SetLatestCandle(ctx, c)
			}
		}()
	}

	go engine.Run(ctx, engineCh)

	// Execution.
	executor := buildExecutor(cfg)
	execCh := make(chan model.Signal, 256)
	go executor.Run(ctx, execCh)

	journal, err := execution.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[liveengine] journal open failed: %v", err)
	}
	defer journal.Close()
	go func() {
		for res := range executor.Results() {
			m.OrdersTotal.WithLabelValues(string(res.Status)).Inc()
			if res.Status != execution.StatusFilled {
				log.Printf("[liveengine] order %s not filled: %s", res.OrderID, res.Message)
				continue
			}
			fill := execution.Fill{
				OrderID:   res.OrderID,
				Signal:    res.Signal,
				FillPrice: res.Signal.Price,
				FillQty:   res.Signal.Qty,
				FilledAt:  time.Now().UTC(),
			}
			if err := journal.RecordFill(fill); err != nil {
				log.Printf("[liveengine] journal write failed: %v", err)
			}
		}
	}()

	// Notifications.
	notifier := buildNotifier(cfg)
	notifyCh := make(chan model.Signal, 64)
	go notification.WatchSignals(ctx, notifier, notifyCh)

	// Distribute engine signals to the executor and notifier. The
	// notifier is best-effort; the executor send blocks so orders are
	// never silently dropped.
	go func() {
		for sig := range engine.Signals() {
			select {
			case execCh <- sig:
			case <-ctx.Done():
				return
			}
			select {
			case notifyCh <- sig:
			default:
			}
		}
	}()

	if ingest != nil {
		if ingest.WaitForFirstCandle(ctx, 30*time.Second) {
			log.Println("[liveengine] live feed established")
		} else {
			log.Println("[liveengine] no candle within 30s, still waiting...")
		}
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Println("[liveengine] shutting down...")
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	metricsSrv.Stop(shutCtx)
	log.Println("[liveengine] bye")
}

// buildExecutor picks the executor. Broker mode needs credentials and a
// working TOTP secret up front; anything else falls back to paper.
func buildExecutor(cfg *config.Config) execution.Executor {
	if cfg.Executor != "broker" {
		log.Printf("[liveengine] paper executor (slippage %d bps)", cfg.SlippageBps)
		return execution.NewPaperExecutor(256, float64(cfg.SlippageBps))
	}

	creds := config.LoadBrokerCredentials()
	if _, err := totp.GenerateCode(creds.TOTPSecret, time.Now()); err != nil {
		log.Fatalf("[liveengine] broker TOTP secret invalid: %v", err)
	}

	client := deltax.New(deltax.Config{
		BaseURL:   cfg.ExchangeRESTURL,
		APIKey:    creds.APIKey,
		APISecret: creds.APISecret,
	})
	log.Println("[liveengine] broker executor enabled")
	return execution.NewBrokerExecutor(client, 256)
}

func buildNotifier(cfg *config.Config) notification.Notifier {
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChat != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChat))
	}
	return notification.NewMultiNotifier(backends...)
}
