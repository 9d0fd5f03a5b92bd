package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	APIAddr       string

	// Market data
	ExchangeRESTURL string
	ExchangeWSURL   string
	Symbols         string // comma-separated, e.g. "BTCUSD,ETHUSD"
	TF              int    // candle timeframe in seconds
	CandleLimit     int    // history depth fetched per backtest request

	// Execution
	Executor    string // "paper" or "broker"
	SlippageBps int64  // paper executor slippage

	// Notifications
	WebhookURL    string
	TelegramToken string
	TelegramChat  string
}

// BrokerCredentials are only required when the broker executor is
// enabled; they are loaded separately so the API server and paper mode
// never demand them.
type BrokerCredentials struct {
	APIKey     string
	APISecret  string
	TOTPSecret string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/stratlab.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),

		ExchangeRESTURL: getEnv("EXCHANGE_REST_URL", "https://api.india.delta.exchange"),
		ExchangeWSURL:   getEnv("EXCHANGE_WS_URL", "wss://socket.india.delta.exchange"),
		Symbols:         getEnv("SYMBOLS", "BTCUSD"),
		TF:              getEnvInt("TF", 3600),
		CandleLimit:     getEnvInt("CANDLE_LIMIT", 1000),

		Executor:    getEnv("EXECUTOR", "paper"),
		SlippageBps: int64(getEnvInt("SLIPPAGE_BPS", 5)),

		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChat:  getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

// LoadBrokerCredentials reads broker API credentials, failing fast when
// any is missing.
func LoadBrokerCredentials() BrokerCredentials {
	return BrokerCredentials{
		APIKey:     mustEnv("BROKER_API_KEY"),
		APISecret:  mustEnv("BROKER_API_SECRET"),
		TOTPSecret: mustEnv("BROKER_TOTP_SECRET"),
	}
}

// ParseSymbols splits the Symbols list, skipping empty entries.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
