package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"watchlist-compare/logger"
)

const (
	// StrategyHTTP fetches pages with a plain HTTP collector
	StrategyHTTP = "http"
	// StrategyBrowser fetches pages through a headless browser
	StrategyBrowser = "browser"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

const (
	DefaultBaseURL      = "https://letterboxd.com"
	DefaultMaxPages     = 200
	DefaultMaxWorkers   = 4
	DefaultPageDelay    = 200 * time.Millisecond
	DefaultFetchTimeout = 10 * time.Second
	DefaultListenAddr   = ":8080"

	maxWorkersLimit = 32
)

// Config is the full service configuration
type Config struct {
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
	Log      logger.Config  `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Sheets   SheetsConfig   `yaml:"sheets"`
}

// ScrapeConfig controls how watchlists are fetched
type ScrapeConfig struct {
	BaseURL      string        `yaml:"base_url" env:"WATCHLIST_BASE_URL"`
	MaxPages     int           `yaml:"max_pages" env:"WATCHLIST_MAX_PAGES"`
	MaxWorkers   int           `yaml:"max_workers" env:"WATCHLIST_MAX_WORKERS"`
	PageDelay    time.Duration `yaml:"page_delay" env:"WATCHLIST_PAGE_DELAY"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"WATCHLIST_FETCH_TIMEOUT"`
	Strategy     string        `yaml:"strategy" env:"WATCHLIST_FETCH_STRATEGY"` // "http" or "browser"
	UserAgent    string        `yaml:"user_agent" env:"WATCHLIST_USER_AGENT"`
	BrowserBin   string        `yaml:"browser_bin" env:"WATCHLIST_BROWSER_BIN"`
	BrowserDir   string        `yaml:"browser_data_dir" env:"BOT_DATA_DIR"`
}

// CacheConfig controls the watchlist cache.
// A zero TTL keeps entries until the process exits.
type CacheConfig struct {
	Backend string        `yaml:"backend" env:"WATCHLIST_CACHE_BACKEND"`
	TTL     time.Duration `yaml:"ttl" env:"WATCHLIST_CACHE_TTL"`
}

// RedisConfig is only used by the redis cache backend
type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" env:"WATCHLIST_LISTEN_ADDR"`
}

// DatabaseConfig enables comparison history when URL is set
type DatabaseConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

type TelegramConfig struct {
	Token        string  `yaml:"token" env:"WATCHLIST_TG_TOKEN"`
	AllowedUsers []int64 `yaml:"allowed_users" env:"WATCHLIST_TG_ALLOWED_USERS"`
}

type SheetsConfig struct {
	SpreadsheetURL  string `yaml:"spreadsheet_url" env:"WATCHLIST_SPREADSHEET_URL"`
	CredentialsPath string `yaml:"credentials_path" env:"GOOGLE_SHEETS_CREDENTIALS_FILE"`
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			BaseURL:      DefaultBaseURL,
			MaxPages:     DefaultMaxPages,
			MaxWorkers:   DefaultMaxWorkers,
			PageDelay:    DefaultPageDelay,
			FetchTimeout: DefaultFetchTimeout,
			Strategy:     StrategyHTTP,
		},
		Cache: CacheConfig{
			Backend: BackendMemory,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Server: ServerConfig{
			Addr: DefaultListenAddr,
		},
		Log: logger.Config{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	cfg := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load resolves the effective configuration: defaults, then the YAML file
// (optional, skipped when path is empty or missing), then environment variables.
func Load(path string) (*Config, error) {
	cfg := GetDefaultConfig()
	if strings.TrimSpace(path) != "" {
		fileCfg, err := LoadConfig(path)
		switch {
		case err == nil:
			cfg = fileCfg
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalises the configuration and rejects values that cannot work
func (c *Config) Validate() error {
	c.Scrape.BaseURL = strings.TrimRight(strings.TrimSpace(c.Scrape.BaseURL), "/")
	if c.Scrape.BaseURL == "" {
		c.Scrape.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.Scrape.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid scrape.base_url %q", c.Scrape.BaseURL)
	}

	if c.Scrape.MaxPages < 1 {
		return fmt.Errorf("scrape.max_pages must be at least 1, got %d", c.Scrape.MaxPages)
	}

	if c.Scrape.MaxWorkers < 1 {
		c.Scrape.MaxWorkers = 1
	}
	if c.Scrape.MaxWorkers > maxWorkersLimit {
		c.Scrape.MaxWorkers = maxWorkersLimit
	}

	if c.Scrape.PageDelay < 0 {
		return fmt.Errorf("scrape.page_delay must not be negative")
	}
	if c.Scrape.FetchTimeout <= 0 {
		c.Scrape.FetchTimeout = DefaultFetchTimeout
	}

	c.Scrape.Strategy = strings.ToLower(strings.TrimSpace(c.Scrape.Strategy))
	switch c.Scrape.Strategy {
	case "":
		c.Scrape.Strategy = StrategyHTTP
	case StrategyHTTP, StrategyBrowser:
	default:
		return fmt.Errorf("scrape.strategy must be %q or %q, got %q", StrategyHTTP, StrategyBrowser, c.Scrape.Strategy)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = BackendMemory
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.Redis.Address) == "" {
			return fmt.Errorf("redis.address is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.Cache.Backend)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = DefaultListenAddr
	}
	return nil
}
