package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port     string
	LogLevel string

	// Ledger storage
	LedgerBackend string // json | dir | sqlite | postgres
	LedgerPath    string
	DatabaseURL   string

	// Market data
	PriceProvider      string // yahoo | alphavantage | none
	AlphaVantageAPIKey string
	ProviderTimeout    time.Duration
	HistoryWindowDays  int
	TickerCacheTTL     time.Duration

	DefaultCurrency    string
	DefaultPortfolioID string

	MaxUploadSizeBytes int64
	BackupDir          string
	MaxBackups         int

	AllowedOrigins []string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	backend := strings.ToLower(getEnv("LEDGER_BACKEND", "json"))
	switch backend {
	case "json", "dir", "sqlite", "postgres":
	default:
		log.Printf("WARNING: Unknown LEDGER_BACKEND '%s'. Using default json.", backend)
		backend = "json"
	}

	provider := strings.ToLower(getEnv("PRICE_PROVIDER", "yahoo"))
	switch provider {
	case "yahoo", "alphavantage", "none":
	default:
		log.Printf("WARNING: Unknown PRICE_PROVIDER '%s'. Using default yahoo.", provider)
		provider = "yahoo"
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil || maxUploadSizeBytes <= 0 {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	historyWindow := getEnvAsInt("HISTORY_WINDOW_DAYS", 365)
	if historyWindow <= 0 {
		log.Printf("WARNING: HISTORY_WINDOW_DAYS must be positive, got %d. Using default 365.", historyWindow)
		historyWindow = 365
	}

	Cfg = &AppConfig{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LedgerBackend: backend,
		LedgerPath:    getEnv("LEDGER_PATH", defaultLedgerPath(backend)),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		PriceProvider:      provider,
		AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", ""),
		ProviderTimeout:    getEnvAsDuration("PROVIDER_TIMEOUT", 20*time.Second),
		HistoryWindowDays:  historyWindow,
		TickerCacheTTL:     getEnvAsDuration("TICKER_CACHE_TTL", 15*time.Minute),

		DefaultCurrency:    strings.ToUpper(strings.TrimSpace(getEnv("DEFAULT_CURRENCY", "USD"))),
		DefaultPortfolioID: strings.TrimSpace(getEnv("DEFAULT_PORTFOLIO_ID", "default")),

		MaxUploadSizeBytes: maxUploadSizeBytes,
		BackupDir:          getEnv("BACKUP_DIR", "data/backups"),
		MaxBackups:         getEnvAsInt("MAX_BACKUPS", 30),

		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if Cfg.LedgerBackend == "postgres" && Cfg.DatabaseURL == "" {
		log.Fatalf("FATAL: DATABASE_URL is required when LEDGER_BACKEND is 'postgres', but it's not set in environment or .env file.")
	}
	if Cfg.PriceProvider == "alphavantage" && Cfg.AlphaVantageAPIKey == "" {
		log.Println("WARNING: PRICE_PROVIDER is 'alphavantage' but ALPHAVANTAGE_API_KEY is empty. Price lookups will fail.")
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, LedgerBackend=%s, LedgerPath=%s, PriceProvider=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.LedgerBackend, Cfg.LedgerPath, Cfg.PriceProvider)
}

// LedgerLocation returns the argument handed to the storage factory for the
// configured backend.
func (c *AppConfig) LedgerLocation() string {
	if c.LedgerBackend == "postgres" {
		return c.DatabaseURL
	}
	return c.LedgerPath
}

func defaultLedgerPath(backend string) string {
	switch backend {
	case "dir":
		return "data/transactions"
	case "sqlite":
		return "./stocktracker.db"
	default:
		return "data/transactions.json"
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
