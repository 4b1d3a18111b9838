package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	Port     int
	DevMode  bool
	LogLevel string

	DatabasePath string

	// Trading policy
	StartingCash    decimal.Decimal
	MaxPositions    int
	MaxCashUsage    decimal.Decimal // fraction of available cash a cycle may deploy
	MaxRiskPerTrade decimal.Decimal // fraction of portfolio value per position
	AutoTrading     bool

	// External data sources
	QuoteServiceURL     string
	QuoteAPIKey         string
	NewsServiceURL      string
	NewsAPIKey          string
	SentimentServiceURL string
	QuoteTimeout        time.Duration
	QuoteRetries        int
	TradePacing         time.Duration

	// Scheduling
	MarketTimezone  string
	MorningSchedule string
	EveningSchedule string
	RefreshSchedule string

	// Tickers scanned for sentiment each morning
	Universe []string
}

var defaultUniverse = []string{
	"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "META", "NVDA", "NFLX",
	"AMD", "INTC", "PYPL", "ADBE", "CRM", "ORCL", "UBER", "SNAP",
	"JPM", "V", "MA", "GS",
	"JNJ", "PFE", "UNH",
	"WMT", "HD", "MCD", "NKE",
	"COIN", "GME", "PLTR",
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabasePath: getEnv("DATABASE_PATH", "./data/trader.db"),

		StartingCash:    getEnvAsDecimal("STARTING_CASH", "100000"),
		MaxPositions:    getEnvAsInt("MAX_POSITIONS", 10),
		MaxCashUsage:    getEnvAsDecimal("MAX_CASH_USAGE", "0.8"),
		MaxRiskPerTrade: getEnvAsDecimal("MAX_RISK_PER_TRADE", "0.1"),
		AutoTrading:     getEnvAsBool("AUTO_TRADING", true),

		QuoteServiceURL:     getEnv("QUOTE_SERVICE_URL", ""),
		QuoteAPIKey:         getEnv("QUOTE_API_KEY", ""),
		NewsServiceURL:      getEnv("NEWS_SERVICE_URL", ""),
		NewsAPIKey:          getEnv("NEWS_API_KEY", ""),
		SentimentServiceURL: getEnv("SENTIMENT_SERVICE_URL", "http://localhost:8000"),
		QuoteTimeout:        getEnvAsDuration("QUOTE_TIMEOUT", 10*time.Second),
		QuoteRetries:        getEnvAsInt("QUOTE_RETRIES", 3),
		TradePacing:         getEnvAsDuration("TRADE_PACING", 500*time.Millisecond),

		MarketTimezone:  getEnv("MARKET_TIMEZONE", "America/New_York"),
		MorningSchedule: getEnv("MORNING_SCHEDULE", "30 9 * * 1-5"),
		EveningSchedule: getEnv("EVENING_SCHEDULE", "59 15 * * 1-5"),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "*/5 * * * *"),

		Universe: getEnvAsList("UNIVERSE", defaultUniverse),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane.
// A failure here is fatal at startup.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.StartingCash.Sign() <= 0 {
		return fmt.Errorf("STARTING_CASH must be positive, got %s", c.StartingCash)
	}
	if c.MaxPositions < 1 {
		return fmt.Errorf("MAX_POSITIONS must be at least 1, got %d", c.MaxPositions)
	}
	if err := validateFraction("MAX_CASH_USAGE", c.MaxCashUsage); err != nil {
		return err
	}
	if err := validateFraction("MAX_RISK_PER_TRADE", c.MaxRiskPerTrade); err != nil {
		return err
	}
	if c.QuoteTimeout <= 0 {
		return fmt.Errorf("QUOTE_TIMEOUT must be positive")
	}
	if _, err := time.LoadLocation(c.MarketTimezone); err != nil {
		return fmt.Errorf("MARKET_TIMEZONE %q is invalid: %w", c.MarketTimezone, err)
	}
	return nil
}

// Location returns the configured exchange timezone. Validate guarantees it
// loads, so errors are ignored here.
func (c *Config) Location() *time.Location {
	loc, _ := time.LoadLocation(c.MarketTimezone)
	return loc
}

func validateFraction(name string, d decimal.Decimal) error {
	one := decimal.NewFromInt(1)
	if d.Sign() <= 0 || d.GreaterThan(one) {
		return fmt.Errorf("%s must be in (0, 1], got %s", name, d)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		ticker := strings.ToUpper(strings.TrimSpace(part))
		if ticker != "" {
			out = append(out, ticker)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
