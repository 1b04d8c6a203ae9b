package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
)

// ErrMissingCredentials is returned when the affiliate app id or secret
// is not configured.
var ErrMissingCredentials = errors.New("AFFILIATE_APP_ID and AFFILIATE_SECRET are required")

var ErrMissingSpreadsheetID = errors.New("GOOGLE_SHEETS_ID is required to publish")

type Config struct {
	Env       string
	Affiliate Affiliate
	Sheets    Sheets
	Pipeline  Pipeline
	Cache     Cache
	Server    Server
	Notify    Notify
}

type Affiliate struct {
	Endpoint          string
	AppID             string
	Secret            string
	RequestsPerSecond float64
}

type Sheets struct {
	SpreadsheetID   string
	MasterRange     string
	CategoryRange   string
	CredentialsJSON string
	CredentialsFile string
}

type Pipeline struct {
	MinRate       float64
	MaxRate       float64
	MinPrice      float64
	MaxPrice      float64
	MinCommission float64
	Top           int
	PageSize      int
	MaxPages      int
	CategoryID    string

	HistoryLimit         int
	CategoryHistoryLimit int
	TabHistoryLimit      int
	CategoryTopLimit     int
	CategoryTabLimit     int
	CategorySummary      bool
	CategoryTabs         bool

	Schedule string
	Timezone string
}

type Cache struct {
	RedisURL string
	MaxAge   time.Duration
}

type Server struct {
	Addr       string
	CronSecret string
}

type Notify struct {
	Enabled  bool
	URL      string
	Topic    string
	Priority string
}

// Load reads configuration from the environment. Call it after the .env
// file has been loaded.
func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnvWithDefault("ENV", "development"),
		Affiliate: Affiliate{
			Endpoint:          os.Getenv("AFFILIATE_ENDPOINT"),
			AppID:             os.Getenv("AFFILIATE_APP_ID"),
			Secret:            os.Getenv("AFFILIATE_SECRET"),
			RequestsPerSecond: getFloat("AFFILIATE_REQUESTS_PER_SECOND", 2),
		},
		Sheets: Sheets{
			SpreadsheetID:   os.Getenv("GOOGLE_SHEETS_ID"),
			MasterRange:     getEnvWithDefault("GOOGLE_SHEETS_RANGE", "DailyTop!A1"),
			CategoryRange:   getEnvWithDefault("GOOGLE_SHEETS_CATEGORY_RANGE", "CategoryTop!A1"),
			CredentialsFile: getEnvWithDefault("GOOGLE_APPLICATION_CREDENTIALS", "credentials.json"),
		},
		Pipeline: Pipeline{
			MinRate:          getFloat("PIPELINE_MIN_RATE", 10),
			MaxRate:          getFloat("PIPELINE_MAX_RATE", 0),
			MinPrice:         getFloat("PIPELINE_MIN_PRICE", 0),
			MaxPrice:         getFloat("PIPELINE_MAX_PRICE", 0),
			MinCommission:    getFloat("PIPELINE_MIN_COMMISSION", 60),
			Top:              getInt("PIPELINE_TOP", 100),
			PageSize:         getInt("PIPELINE_LIMIT", 50),
			MaxPages:         getInt("PIPELINE_MAX_PAGES", 10),
			CategoryID:       os.Getenv("PIPELINE_CATEGORY_ID"),
			HistoryLimit:     SanitizeLimit(getInt("PIPELINE_HISTORY_LIMIT", 1000)),
			CategoryTopLimit: getInt("PIPELINE_CATEGORY_TOP_LIMIT", 5),
			CategoryTabLimit: getInt("PIPELINE_CATEGORY_TAB_LIMIT", 20),
			CategorySummary:  getBool("PIPELINE_CATEGORY_SUMMARY", true),
			CategoryTabs:     getBool("PIPELINE_CATEGORY_TABS", true),
			Schedule:         getEnvWithDefault("PIPELINE_SCHEDULE", "0 0 * * *"),
			Timezone:         getEnvWithDefault("PIPELINE_TIMEZONE", "Asia/Bangkok"),
		},
		Cache: Cache{
			RedisURL: os.Getenv("REDIS_URL"),
			MaxAge:   getDuration("CACHE_MAX_AGE", time.Hour),
		},
		Server: Server{
			Addr:       getEnvWithDefault("SERVER_ADDR", ":"+getEnvWithDefault("PORT", "8080")),
			CronSecret: os.Getenv("CRON_SECRET"),
		},
		Notify: Notify{
			Enabled:  getBool("NTFY_ENABLED", false),
			URL:      getEnvWithDefault("NTFY_URL", "https://ntfy.sh"),
			Topic:    getEnvWithDefault("NTFY_TOPIC", "affiliate-sheets"),
			Priority: os.Getenv("NTFY_PRIORITY"),
		},
	}

	cfg.Pipeline.CategoryHistoryLimit = SanitizeLimit(getInt("PIPELINE_CATEGORY_HISTORY_LIMIT", cfg.Pipeline.HistoryLimit))
	cfg.Pipeline.TabHistoryLimit = SanitizeLimit(getInt("PIPELINE_TAB_HISTORY_LIMIT", cfg.Pipeline.HistoryLimit))

	creds, err := credentialsJSON()
	if err != nil {
		return nil, err
	}
	cfg.Sheets.CredentialsJSON = creds

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Affiliate.AppID == "" || c.Affiliate.Secret == "" {
		return ErrMissingCredentials
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("invalid PIPELINE_TIMEZONE %q: %w", c.Pipeline.Timezone, err)
	}
	return nil
}

// ValidatePublishing checks the extra settings commands that write to the
// spreadsheet need.
func (c *Config) ValidatePublishing() error {
	if c.Sheets.SpreadsheetID == "" {
		return ErrMissingSpreadsheetID
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SanitizeLimit returns limit, or 1000 when it is not positive.
func SanitizeLimit(limit int) int {
	if limit <= 0 {
		return 1000
	}
	return limit
}

// credentialsJSON returns inline service account JSON from
// GOOGLE_CREDENTIALS_JSON or the base64 GOOGLE_SERVICE_ACCOUNT_BASE64.
func credentialsJSON() (string, error) {
	if raw := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_JSON")); raw != "" {
		return raw, nil
	}
	encoded := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_BASE64"))
	if encoded == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode GOOGLE_SERVICE_ACCOUNT_BASE64: %w", err)
	}
	return string(decoded), nil
}

// getEnvWithDefault fetches an environment variable with a default fallback.
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Int("default", defaultValue).Msg("Invalid integer, using default")
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Float64("default", defaultValue).Msg("Invalid number, using default")
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Bool("default", defaultValue).Msg("Invalid boolean, using default")
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Dur("default", defaultValue).Msg("Invalid duration, using default")
		return defaultValue
	}
	return v
}
