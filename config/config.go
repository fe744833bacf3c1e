package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Bidflow  BidflowConfig  `yaml:"bidflow"`
	Channels ChannelsConfig `yaml:"channels"`
	Poller   PollerConfig   `yaml:"poller"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Rules    RulesConfig    `yaml:"rules"`
	Source   SourceConfig   `yaml:"source"`
	Store    StoreConfig    `yaml:"store"`
	Notifier NotifierConfig `yaml:"notifier"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type BidflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ChannelsConfig struct {
	OrderBuffer    int `yaml:"order_buffer"`
	DecisionBuffer int `yaml:"decision_buffer"`
}

type PollerConfig struct {
	IntervalMs int             `yaml:"interval_ms"`
	Timeout    time.Duration   `yaml:"timeout"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type DedupConfig struct {
	WindowSize int `yaml:"window_size"`
}

type RulesConfig struct {
	File string `yaml:"file"`
}

type SourceConfig struct {
	Haha  HahaSourceConfig  `yaml:"haha"`
	Mahua MahuaSourceConfig `yaml:"mahua"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type HahaSourceConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	URL            string               `yaml:"url"`
	Token          string               `yaml:"token"`
	Cookie         string               `yaml:"cookie"`
	KeySalt        string               `yaml:"key_salt"`
	IVSalt         string               `yaml:"iv_salt"`
	Limit          int                  `yaml:"limit"`
	IntervalMs     int                  `yaml:"interval_ms"`
	Timeout        time.Duration        `yaml:"timeout"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type MahuaSourceConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	LoginURL       string               `yaml:"login_url"`
	OrderListURL   string               `yaml:"order_list_url"`
	DevCode        string               `yaml:"dev_code"`
	SecretKey      string               `yaml:"secret_key"`
	ChannelID      string               `yaml:"channel_id"`
	PageLimit      int                  `yaml:"page_limit"`
	IntervalMs     int                  `yaml:"interval_ms"`
	LoginTimeout   time.Duration        `yaml:"login_timeout"`
	Timeout        time.Duration        `yaml:"timeout"`
	TokenTTL       time.Duration        `yaml:"token_ttl"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type NotifierConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AlertTemplate string `yaml:"alert_template"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	DashboardName string `yaml:"dashboard_name"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Allow ${VAR} references for secrets kept out of the file.
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	config := Config{}
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	// Override platform secrets from environment variables if available
	if v := os.Getenv("HAHA_TOKEN"); v != "" {
		config.Source.Haha.Token = strings.TrimSpace(v)
	}
	if v := os.Getenv("HAHA_COOKIE"); v != "" {
		config.Source.Haha.Cookie = strings.TrimSpace(v)
	}
	if v := os.Getenv("MAHUA_SECRET_KEY"); v != "" {
		config.Source.Mahua.SecretKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("MAHUA_DEV_CODE"); v != "" {
		config.Source.Mahua.DevCode = strings.TrimSpace(v)
	}
	if v := os.Getenv("MAHUA_CHANNEL_ID"); v != "" {
		config.Source.Mahua.ChannelID = strings.TrimSpace(v)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Channels.OrderBuffer <= 0 {
		cfg.Channels.OrderBuffer = 100
	}
	if cfg.Channels.DecisionBuffer <= 0 {
		cfg.Channels.DecisionBuffer = 100
	}
	if cfg.Dedup.WindowSize <= 0 {
		cfg.Dedup.WindowSize = 500
	}
	if cfg.Poller.IntervalMs <= 0 {
		cfg.Poller.IntervalMs = 5000
	}
	if cfg.Source.Haha.Limit <= 0 {
		cfg.Source.Haha.Limit = 200
	}
	if cfg.Source.Haha.Timeout <= 0 {
		cfg.Source.Haha.Timeout = 10 * time.Second
	}
	if cfg.Source.Mahua.PageLimit <= 0 {
		cfg.Source.Mahua.PageLimit = 200
	}
	if cfg.Source.Mahua.LoginTimeout <= 0 {
		cfg.Source.Mahua.LoginTimeout = 10 * time.Second
	}
	if cfg.Source.Mahua.Timeout <= 0 {
		cfg.Source.Mahua.Timeout = 15 * time.Second
	}
	if cfg.Source.Mahua.TokenTTL <= 0 {
		cfg.Source.Mahua.TokenTTL = 30 * time.Minute
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "orders.db"
	}
	if cfg.Rules.File == "" {
		cfg.Rules.File = "rules.json"
	}
	if cfg.API.Address == "" {
		cfg.API.Address = ":8080"
	}
	if cfg.Notifier.AlertTemplate == "" {
		cfg.Notifier.AlertTemplate = "发现抢单机会: {rule_name} - 总利润{total_profit}元 ({seat_count}张票)"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Bidflow.Name == "" {
		return fmt.Errorf("bidflow.name is required")
	}

	if cfg.Bidflow.Version == "" {
		return fmt.Errorf("bidflow.version is required")
	}

	if cfg.Source.Haha.Enabled {
		if cfg.Source.Haha.URL == "" {
			return fmt.Errorf("source.haha.url is required when haha is enabled")
		}
		if cfg.Source.Haha.Token == "" {
			return fmt.Errorf("source.haha.token is required when haha is enabled")
		}
	}

	if cfg.Source.Mahua.Enabled {
		if cfg.Source.Mahua.LoginURL == "" || cfg.Source.Mahua.OrderListURL == "" {
			return fmt.Errorf("source.mahua.login_url and source.mahua.order_list_url are required when mahua is enabled")
		}
		if cfg.Source.Mahua.SecretKey == "" || cfg.Source.Mahua.DevCode == "" || cfg.Source.Mahua.ChannelID == "" {
			return fmt.Errorf("source.mahua credentials (secret_key, dev_code, channel_id) are required when mahua is enabled")
		}
	}

	return nil
}
