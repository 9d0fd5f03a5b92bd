// cmd/backtest runs one strategy simulation from the command line. The
// strategy logic comes from a JSON file in the builder schema; candles
// come from the exchange REST API, or from stored SQLite history with
// --offline.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=BTCUSD --tf=3600 --logic=strategy.json --limit=1000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"stratlab/config"
	"stratlab/internal/backtest"
	"stratlab/internal/marketdata"
	"stratlab/internal/model"
	sqlitestore "stratlab/internal/store/sqlite"
	"stratlab/internal/strategy"
	"stratlab/pkg/deltax"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	symbol := flag.String("symbol", "BTCUSD", "Product symbol")
	tf := flag.Int("tf", 3600, "Candle timeframe in seconds")
	logicPath := flag.String("logic", "", "Path to strategy logic JSON (required)")
	limit := flag.Int("limit", 1000, "Number of candles to simulate over")
	balance := flag.Float64("balance", backtest.DefaultInitialBalance, "Initial balance")
	offline := flag.Bool("offline", false, "Use stored SQLite history only, no exchange calls")
	trades := flag.Bool("trades", false, "Print the individual trades")
	flag.Parse()

	if *logicPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	raw, err := os.ReadFile(*logicPath)
	if err != nil {
		log.Fatalf("[backtest] read logic file: %v", err)
	}
	logic, err := strategy.ParseLogic(raw)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	candles, err := loadCandles(ctx, *symbol, *tf, *limit, *offline)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	if len(candles) == 0 {
		log.Fatalf("[backtest] no candles for %s/%ds", *symbol, *tf)
	}
	log.Printf("[backtest] simulating %s over %d candles (%s .. %s)",
		*symbol, len(candles),
		candles[0].TS.Format("2006-01-02 15:04"),
		candles[len(candles)-1].TS.Format("2006-01-02 15:04"))

	start := time.Now()
	result := backtest.Run(backtest.Request{
		Candles:        candles,
		Logic:          logic,
		InitialBalance: *balance,
	})
	elapsed := time.Since(start)

	if result.Error != "" {
		log.Fatalf("[backtest] simulation failed: %s", result.Error)
	}
	printSummary(*symbol, result, elapsed)

	if *trades {
		fmt.Println()
		for _, tr := range result.Trades {
			fmt.Printf("  %s  %10.2f -> %10.2f  pnl=%10.2f  (%s)\n",
				tr.EntryTime.Format("2006-01-02 15:04"),
				tr.EntryPrice, tr.ExitPrice, tr.PnL, tr.ExitReason)
		}
	}
}

func loadCandles(ctx context.Context, symbol string, tf, limit int, offline bool) (model.Series, error) {
	cfg := config.Load()

	store, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	defer store.Close()

	if offline {
		stored, err := store.ReadCandles(symbol, tf, 0)
		if err != nil {
			return nil, err
		}
		if len(stored) > limit {
			stored = stored[len(stored)-limit:]
		}
		return stored, nil
	}

	exchange := deltax.New(deltax.Config{BaseURL: cfg.ExchangeRESTURL})
	source := marketdata.NewCachedSource(exchange, nil, store)
	return source.Candles(ctx, symbol, tf, limit)
}

func printSummary(symbol string, result backtest.Result, elapsed time.Duration) {
	m := result.Metrics
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║         BACKTEST COMPLETE            ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Symbol:          %-18s ║\n", symbol)
	fmt.Printf("║  Final balance:   %-18.2f ║\n", m.FinalBalance)
	fmt.Printf("║  Total return:    %-17.2f%% ║\n", m.TotalReturnPct)
	fmt.Printf("║  Trades:          %-18d ║\n", m.TotalTrades)
	fmt.Printf("║  Win rate:        %-17.1f%% ║\n", m.WinRate)
	fmt.Printf("║  Max drawdown:    %-17.2f%% ║\n", m.Audit.MaxDrawdown)
	fmt.Printf("║  Profit factor:   %-18.2f ║\n", m.Audit.ProfitFactor)
	fmt.Printf("║  Expectancy:      %-18.2f ║\n", m.Audit.Expectancy)
	fmt.Printf("║  Elapsed:         %-18s ║\n", elapsed.Round(time.Millisecond))
	fmt.Println("╚══════════════════════════════════════╝")
}
