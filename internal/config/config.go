package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	AlphaVantage struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"alpha_vantage"`
	Yahoo struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"yahoo"`
	Cache struct {
		Dir        string `yaml:"dir"`
		TTLHours   int    `yaml:"ttl_hours"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"cache"`
	Fetch struct {
		MaxRetries            int `yaml:"max_retries"`
		RateLimitSleepSeconds int `yaml:"rate_limit_sleep_seconds"`
		NormalSleepSeconds    int `yaml:"normal_sleep_seconds"`
	} `yaml:"fetch"`
	Settings struct {
		File string `yaml:"file"`
	} `yaml:"settings"`
	Journal struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"journal"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		PruneCron   string `yaml:"prune_cron"`
	} `yaml:"schedule"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("ALPHAVANTAGE_BASE_URL"); v != "" {
		cfg.AlphaVantage.BaseURL = v
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Yahoo.BaseURL = v
	}
	if v := os.Getenv("FINSHEET_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("FINSHEET_SETTINGS_FILE"); v != "" {
		cfg.Settings.File = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Journal.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("FINSHEET_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.MaxRetries = n
		}
	}

	// Defaults
	if cfg.AlphaVantage.BaseURL == "" {
		cfg.AlphaVantage.BaseURL = "https://www.alphavantage.co/query"
	}
	if cfg.AlphaVantage.TimeoutSeconds == 0 {
		cfg.AlphaVantage.TimeoutSeconds = 15
	}
	if cfg.Yahoo.BaseURL == "" {
		cfg.Yahoo.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "cache"
	}
	if cfg.Cache.TTLHours == 0 {
		cfg.Cache.TTLHours = 24
	}
	if cfg.Cache.MaxAgeDays == 0 {
		cfg.Cache.MaxAgeDays = 7
	}
	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 3
	}
	if cfg.Fetch.RateLimitSleepSeconds == 0 {
		cfg.Fetch.RateLimitSleepSeconds = 60
	}
	if cfg.Fetch.NormalSleepSeconds == 0 {
		cfg.Fetch.NormalSleepSeconds = 12
	}
	if cfg.Settings.File == "" {
		cfg.Settings.File = "settings.json"
	}
	if cfg.Schedule.PruneCron == "" {
		cfg.Schedule.PruneCron = "0 0 3 * * *"
	}

	return cfg, nil
}

// Validate checks that all required fields make sense.
func (c *Config) Validate() error {
	if c.AlphaVantage.BaseURL == "" {
		return fmt.Errorf("alpha_vantage.base_url is required")
	}
	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("cache.ttl_hours must not be negative")
	}
	if c.Cache.MaxAgeDays < 0 {
		return fmt.Errorf("cache.max_age_days must not be negative")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative")
	}
	return nil
}

// Timeout returns the statement request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.AlphaVantage.TimeoutSeconds) * time.Second
}

// CacheTTL returns the cache freshness window.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// CacheMaxAge returns the cache retention window used by prune passes.
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeDays) * 24 * time.Hour
}

// RateLimitSleep returns the backoff between rate-limited retries.
func (c *Config) RateLimitSleep() time.Duration {
	return time.Duration(c.Fetch.RateLimitSleepSeconds) * time.Second
}

// NormalSleep returns the flat inter-request delay between statements.
func (c *Config) NormalSleep() time.Duration {
	return time.Duration(c.Fetch.NormalSleepSeconds) * time.Second
}
