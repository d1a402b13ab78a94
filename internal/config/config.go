package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	PrometheusPort string
	LogLevel       string
	LogFormat      string

	// Catalog source
	SpreadsheetID     string
	SheetGID          string
	SheetName         string
	RelayURLs         []string
	EnvelopeRelayURLs []string

	// Local persistence
	CachePath      string
	ClaimsPath     string
	DatabaseURL    string
	MigrationsPath string

	// Timing
	CacheTTL            time.Duration
	SyncInterval        time.Duration
	ImageTimeout        time.Duration
	FetchTimeout        time.Duration
	ValidationStagger   time.Duration
	ValidationWorkers   int
	OnlineProbeInterval time.Duration

	// Google service account used for sheet writes
	GoogleServiceAccountEmail string
	GooglePrivateKey          string

	// Notifications
	TelegramToken string
	NotifyChatIDs []int64
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFrom      string
	BrideEmail    string
	GroomEmail    string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables
// take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		PrometheusPort: getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "text"),

		SheetGID:          getEnvOrDefault("SHEET_GID", "0"),
		SheetName:         getEnvOrDefault("SHEET_NAME", "Lista"),
		RelayURLs:         splitList(getEnvOrDefault("RELAY_URLS", "https://api.codetabs.com/v1/proxy?quest=")),
		EnvelopeRelayURLs: splitList(getEnvOrDefault("ENVELOPE_RELAY_URLS", "https://api.allorigins.win/get?url=")),

		CachePath:      getEnvOrDefault("CACHE_PATH", "data/catalog-cache.json"),
		ClaimsPath:     getEnvOrDefault("CLAIMS_PATH", "data/claims.jsonl"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", "migrations"),

		GoogleServiceAccountEmail: os.Getenv("GOOGLE_SERVICE_ACCOUNT_EMAIL"),
		GooglePrivateKey:          strings.ReplaceAll(os.Getenv("GOOGLE_PRIVATE_KEY"), `\n`, "\n"),

		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:      os.Getenv("SMTP_FROM"),
		BrideEmail:    os.Getenv("BRIDE_EMAIL"),
		GroomEmail:    os.Getenv("GROOM_EMAIL"),
	}

	// Required environment variables
	if cfg.SpreadsheetID = os.Getenv("SPREADSHEET_ID"); cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("SPREADSHEET_ID environment variable is required")
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"CACHE_TTL", 15 * time.Second, &cfg.CacheTTL},
		{"SYNC_INTERVAL", 15 * time.Minute, &cfg.SyncInterval},
		{"IMAGE_TIMEOUT", 5 * time.Second, &cfg.ImageTimeout},
		{"FETCH_TIMEOUT", 10 * time.Second, &cfg.FetchTimeout},
		{"VALIDATION_STAGGER", 300 * time.Millisecond, &cfg.ValidationStagger},
		{"ONLINE_PROBE_INTERVAL", 30 * time.Second, &cfg.OnlineProbeInterval},
	}
	for _, d := range durations {
		if *d.dst, err = getDurationOrDefault(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.ValidationWorkers, err = getIntOrDefault("VALIDATION_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.ValidationWorkers < 1 {
		return nil, fmt.Errorf("VALIDATION_WORKERS must be at least 1")
	}
	if cfg.SMTPPort, err = getIntOrDefault("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	for _, raw := range splitList(os.Getenv("NOTIFY_CHAT_IDS")) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q in NOTIFY_CHAT_IDS: %w", raw, err)
		}
		cfg.NotifyChatIDs = append(cfg.NotifyChatIDs, id)
	}

	return cfg, nil
}

// SheetsConfigured reports whether sheet writes are possible.
func (c *Config) SheetsConfigured() bool {
	return c.GoogleServiceAccountEmail != "" && c.GooglePrivateKey != ""
}

// NotificationEmails returns the configured couple addresses.
func (c *Config) NotificationEmails() []string {
	var out []string
	for _, e := range []string{c.BrideEmail, c.GroomEmail} {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return n, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
