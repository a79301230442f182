package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/micko4develop/crypto-dash/internal/pipeline"
)

// Feed sources.
const (
	SourceCoinGecko = "coingecko"
	SourceFixture   = "fixture"
	SourcePostgres  = "postgres"
)

type Config struct {
	AppName         string `yaml:"app_name"`
	APIPort         int    `yaml:"api_port"`
	APIKey          string `yaml:"api_key"`
	CORSAllowOrigin string `yaml:"cors_allow_origin"`
	WebhookURL      string `yaml:"webhook_url"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	// Feed
	FeedSource         string `yaml:"feed_source"`
	FeedBaseURL        string `yaml:"feed_base_url"`
	FeedVSCurrency     string `yaml:"feed_vs_currency"`
	FeedPerPage        int    `yaml:"feed_per_page"`
	FeedTimeoutSeconds int    `yaml:"feed_timeout_seconds"`
	FeedMaxAttempts    int    `yaml:"feed_max_attempts"`

	// Listing
	CacheTTLMs      int    `yaml:"cache_ttl_ms"`
	DefaultPageSize int    `yaml:"default_page_size"`
	DefaultSort     string `yaml:"default_sort"`

	// Detail chart
	ChartDays     int     `yaml:"chart_days"`
	ChartWidth    float64 `yaml:"chart_width"`
	ChartHeight   float64 `yaml:"chart_height"`
	ChartTimezone string  `yaml:"chart_timezone"`

	// Database mirror. Read by FEED_SOURCE=postgres, written by
	// FEED_SOURCE=coingecko when MirrorWrites is set.
	MirrorWrites bool   `yaml:"mirror_writes"`
	DBHost       string `yaml:"db_host"`
	DBPort       int    `yaml:"db_port"`
	DBName       string `yaml:"db_name"`
	DBUser       string `yaml:"db_user"`
	DBPassword   string `yaml:"db_password"`

	warnings []string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AppName:         "CryptoDash",
		APIPort:         3001,
		CORSAllowOrigin: "*",

		LogLevel: "info",

		FeedSource:         SourceCoinGecko,
		FeedBaseURL:        "https://api.coingecko.com/api/v3",
		FeedVSCurrency:     "usd",
		FeedPerPage:        100,
		FeedTimeoutSeconds: 10,
		FeedMaxAttempts:    1,

		CacheTTLMs:      60_000,
		DefaultPageSize: pipeline.DefaultPageSize,
		DefaultSort:     string(pipeline.DefaultSort),

		ChartDays:     7,
		ChartWidth:    640,
		ChartHeight:   240,
		ChartTimezone: "UTC",

		DBHost: "localhost",
		DBPort: 5432,
		DBName: "crypto_dash",
	}
}

// Load layers .env, the optional YAML file named by CONFIG_FILE and the
// process environment over Default. Later layers win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.AppName = envStr("APP_NAME", c.AppName)
	c.APIPort = envInt("API_PORT", c.APIPort)
	c.APIKey = envStr("API_KEY", c.APIKey)
	c.CORSAllowOrigin = envStr("CORS_ALLOW_ORIGIN", c.CORSAllowOrigin)
	c.WebhookURL = envStr("WEBHOOK_URL", c.WebhookURL)

	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.LogPretty = envBool("LOG_PRETTY", c.LogPretty)

	c.FeedSource = strings.ToLower(envStr("FEED_SOURCE", c.FeedSource))
	c.FeedBaseURL = envStr("FEED_BASE_URL", c.FeedBaseURL)
	c.FeedVSCurrency = envStr("FEED_VS_CURRENCY", c.FeedVSCurrency)
	c.FeedPerPage = envInt("FEED_PER_PAGE", c.FeedPerPage)
	c.FeedTimeoutSeconds = envInt("FEED_TIMEOUT_SECONDS", c.FeedTimeoutSeconds)
	c.FeedMaxAttempts = envInt("FEED_MAX_ATTEMPTS", c.FeedMaxAttempts)

	c.CacheTTLMs = envInt("CACHE_TTL_MS", c.CacheTTLMs)
	c.DefaultPageSize = envInt("DEFAULT_PAGE_SIZE", c.DefaultPageSize)
	c.DefaultSort = envStr("DEFAULT_SORT", c.DefaultSort)

	c.ChartDays = envInt("CHART_DAYS", c.ChartDays)
	c.ChartWidth = envFloat("CHART_WIDTH", c.ChartWidth)
	c.ChartHeight = envFloat("CHART_HEIGHT", c.ChartHeight)
	c.ChartTimezone = envStr("CHART_TIMEZONE", c.ChartTimezone)

	c.MirrorWrites = envBool("MIRROR_WRITES", c.MirrorWrites)
	c.DBHost = envStr("DB_HOST", c.DBHost)
	c.DBPort = envInt("DB_PORT", c.DBPort)
	c.DBName = envStr("DB_NAME", c.DBName)
	c.DBUser = envStr("DB_USER", c.DBUser)
	c.DBPassword = envStr("DB_PASSWORD", c.DBPassword)
}

// Validate rejects an unknown feed source or sort key. Out-of-range numbers
// are reset to their defaults and reported through Warnings.
func (c *Config) Validate() error {
	var errs []string
	c.warnings = nil

	switch c.FeedSource {
	case SourceCoinGecko, SourceFixture, SourcePostgres:
	default:
		errs = append(errs, fmt.Sprintf("FEED_SOURCE %q is not one of coingecko, fixture, postgres", c.FeedSource))
	}
	if _, err := pipeline.ParseSortKey(c.DefaultSort); err != nil {
		errs = append(errs, fmt.Sprintf("DEFAULT_SORT: %v", err))
	}

	def := Default()
	if c.CacheTTLMs <= 0 {
		c.warn("CACHE_TTL_MS must be positive, using %d", def.CacheTTLMs)
		c.CacheTTLMs = def.CacheTTLMs
	}
	if c.DefaultPageSize <= 0 {
		c.warn("DEFAULT_PAGE_SIZE must be positive, using %d", def.DefaultPageSize)
		c.DefaultPageSize = def.DefaultPageSize
	}
	if c.FeedTimeoutSeconds <= 0 {
		c.warn("FEED_TIMEOUT_SECONDS must be positive, using %d", def.FeedTimeoutSeconds)
		c.FeedTimeoutSeconds = def.FeedTimeoutSeconds
	}
	if c.FeedMaxAttempts <= 0 {
		c.FeedMaxAttempts = 1
	}
	if c.ChartDays <= 0 {
		c.warn("CHART_DAYS must be positive, using %d", def.ChartDays)
		c.ChartDays = def.ChartDays
	}
	if _, err := time.LoadLocation(c.ChartTimezone); err != nil {
		c.warn("CHART_TIMEZONE %q not found, using UTC", c.ChartTimezone)
		c.ChartTimezone = "UTC"
	}
	if c.APIKey == "" {
		c.warn("API_KEY not set, REST API has no authentication")
	}
	if c.FeedSource == SourcePostgres && c.DBUser == "" {
		c.warn("FEED_SOURCE=postgres but DB_USER is empty")
	}
	if c.MirrorWrites && c.FeedSource != SourceCoinGecko {
		c.warn("MIRROR_WRITES only applies to FEED_SOURCE=coingecko, ignoring")
		c.MirrorWrites = false
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Warnings returns what the last Validate call corrected or flagged.
func (c *Config) Warnings() []string {
	return c.warnings
}

func (c *Config) warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.FeedTimeoutSeconds) * time.Second
}

// Sort is DefaultSort as a key; call after Validate.
func (c *Config) Sort() pipeline.SortKey {
	k, err := pipeline.ParseSortKey(c.DefaultSort)
	if err != nil {
		return pipeline.DefaultSort
	}
	return k
}

// Location is the chart's date-label time zone, UTC when unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ChartTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Print() {
	fmt.Printf("=== %s Configuration ===\n", c.AppName)
	fmt.Printf("Feed Source: %s\n", c.FeedSource)
	switch c.FeedSource {
	case SourceCoinGecko:
		fmt.Printf("  Base URL: %s\n", c.FeedBaseURL)
		fmt.Printf("  Currency: %s, %d per page\n", strings.ToUpper(c.FeedVSCurrency), c.FeedPerPage)
		fmt.Printf("  Timeout: %ds, attempts: %d\n", c.FeedTimeoutSeconds, c.FeedMaxAttempts)
		if c.MirrorWrites {
			fmt.Printf("  Mirror: %s@%s:%d/%s\n", c.DBUser, c.DBHost, c.DBPort, c.DBName)
		}
	case SourcePostgres:
		fmt.Printf("  Database: %s@%s:%d/%s\n", c.DBUser, c.DBHost, c.DBPort, c.DBName)
	}
	fmt.Println("--------------------------------------")
	fmt.Println("Listing:")
	fmt.Printf("  Cache TTL: %s\n", c.CacheTTL())
	fmt.Printf("  Page Size: %d\n", c.DefaultPageSize)
	fmt.Printf("  Default Sort: %s\n", c.DefaultSort)
	fmt.Println("Detail Chart:")
	fmt.Printf("  Window: %d days, %.0fx%.0f, %s\n", c.ChartDays, c.ChartWidth, c.ChartHeight, c.ChartTimezone)
	fmt.Println("--------------------------------------")
	fmt.Printf("API Port: %d\n", c.APIPort)
	fmt.Printf("API Auth: %s\n", boolLabel(c.APIKey != "", "enabled", "disabled"))
	fmt.Printf("Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
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

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
