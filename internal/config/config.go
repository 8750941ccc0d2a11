package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Secrets (from .env)
	WebhookURL      string
	NotifierName    string
	APIKey          string
	CORSAllowOrigin string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBName      string
	DBUser      string
	DBPassword  string
	DBMaxConns  int
	AutoMigrate bool

	// API
	APIPort int

	// Logging
	LogLevel string
	LogFile  string

	// Markets
	MarketsFile string

	// Order limits, per market. Zero disables.
	MaxOrderValueIN  float64
	MaxOrderValueUS  float64
	MaxDailyTradesIN int
	MaxDailyTradesUS int

	// Strategy
	ChartAPIURL             string
	StrategyEnabled         bool
	StrategyWatchlistIN     []string
	StrategyWatchlistUS     []string
	StrategyQuantity        float64
	StrategyIntervalMinutes int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		NotifierName:    envStr("BOT_NAME", "PaperTrader"),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// Database
		DatabaseURL: envStr("DATABASE_URL", ""),
		DBHost:      envStr("DB_HOST", "localhost"),
		DBPort:      envInt("DB_PORT", 5432),
		DBName:      envStr("DB_NAME", "papertrade"),
		DBUser:      envStr("DB_USER", ""),
		DBPassword:  envStr("DB_PASSWORD", ""),
		DBMaxConns:  envInt("DB_MAX_CONNS", 20),
		AutoMigrate: envBool("DB_AUTO_MIGRATE", true),

		// API
		APIPort: envInt("API_PORT", 8000),

		// Logging
		LogLevel: envStr("LOG_LEVEL", "info"),
		LogFile:  envStr("LOG_FILE", ""),

		// Markets
		MarketsFile: envStr("MARKETS_FILE", ""),

		// Order limits
		MaxOrderValueIN:  envFloat("MAX_ORDER_VALUE_IN", 0),
		MaxOrderValueUS:  envFloat("MAX_ORDER_VALUE_US", 0),
		MaxDailyTradesIN: envInt("MAX_DAILY_TRADES_IN", 0),
		MaxDailyTradesUS: envInt("MAX_DAILY_TRADES_US", 0),

		// Strategy
		ChartAPIURL:             envStr("CHART_API_URL", ""),
		StrategyEnabled:         envBool("STRATEGY_ENABLED", false),
		StrategyWatchlistIN:     envList("STRATEGY_WATCHLIST_IN"),
		StrategyWatchlistUS:     envList("STRATEGY_WATCHLIST_US"),
		StrategyQuantity:        envFloat("STRATEGY_QUANTITY", 1),
		StrategyIntervalMinutes: envInt("STRATEGY_INTERVAL_MINUTES", 60),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" && c.DBUser == "" {
		errs = append(errs, "DB_USER is required when DATABASE_URL is not set")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Sprintf("API_PORT %d is out of range", c.APIPort))
	}
	if c.MaxOrderValueIN < 0 || c.MaxOrderValueUS < 0 {
		errs = append(errs, "MAX_ORDER_VALUE_* must not be negative")
	}
	if c.MaxDailyTradesIN < 0 || c.MaxDailyTradesUS < 0 {
		errs = append(errs, "MAX_DAILY_TRADES_* must not be negative")
	}
	if c.StrategyEnabled {
		if c.StrategyQuantity <= 0 {
			errs = append(errs, "STRATEGY_QUANTITY must be positive")
		}
		if c.StrategyIntervalMinutes <= 0 {
			errs = append(errs, "STRATEGY_INTERVAL_MINUTES must be positive")
		}
		if len(c.StrategyWatchlistIN) == 0 && len(c.StrategyWatchlistUS) == 0 {
			logrus.Warn("STRATEGY_ENABLED but both watchlists are empty, scheduler will idle")
		}
	}
	if c.APIKey == "" {
		logrus.Warn("API_KEY not set, REST API has no authentication")
	}
	if c.WebhookURL == "" {
		logrus.Warn("WEBHOOK_URL not set, notifications are logged only")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Paper Trading Backend Configuration ===")
	fmt.Println("════════════════════════════════════════")
	fmt.Println("  PAPER TRADING ONLY")
	fmt.Println("  No orders reach a real broker")
	fmt.Println("════════════════════════════════════════")
	fmt.Printf("Database: %s\n", c.redactedDSN())
	fmt.Printf("API Port: %d\n", c.APIPort)
	fmt.Printf("Auth: %s\n", boolLabel(c.APIKey != "", "enabled", "disabled"))
	fmt.Printf("Markets File: %s\n", boolLabel(c.MarketsFile != "", c.MarketsFile, "built-in defaults"))
	fmt.Println("--------------------------------------")
	fmt.Println("Order Limits:")
	fmt.Printf("  IN: max order %s, max %s trades/day\n", limitLabel(c.MaxOrderValueIN), intLimitLabel(c.MaxDailyTradesIN))
	fmt.Printf("  US: max order %s, max %s trades/day\n", limitLabel(c.MaxOrderValueUS), intLimitLabel(c.MaxDailyTradesUS))
	fmt.Println("--------------------------------------")
	fmt.Println("Strategy (SMA 20/50 crossover):")
	fmt.Printf("  Scheduler: %s\n", boolLabel(c.StrategyEnabled, "enabled", "disabled"))
	if c.StrategyEnabled {
		fmt.Printf("  Interval: every %d minutes\n", c.StrategyIntervalMinutes)
		fmt.Printf("  Quantity: %g\n", c.StrategyQuantity)
		fmt.Printf("  IN watchlist: %s\n", strings.Join(c.StrategyWatchlistIN, ", "))
		fmt.Printf("  US watchlist: %s\n", strings.Join(c.StrategyWatchlistUS, ", "))
	}
	fmt.Printf("Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Println("======================================")
}

// DSN returns DATABASE_URL when set, otherwise builds one from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) redactedDSN() string {
	if c.DatabaseURL != "" {
		return "(DATABASE_URL)"
	}
	return fmt.Sprintf("%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

// envList splits a comma-separated value, dropping blanks.
func envList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}

func limitLabel(v float64) string {
	if v <= 0 {
		return "unlimited"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func intLimitLabel(v int) string {
	if v <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(v)
}
