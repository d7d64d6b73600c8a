package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jordanseet/internwatch/internal/model"
)

// Config is the root configuration for the InternWatch bot.
type Config struct {
	CheckInterval time.Duration
	DatabasePath  string
	Retention     int
	Notification  NotificationConfig
	Telegram      TelegramConfig
	Source        SourceConfig
}

// TelegramConfig holds Bot API credentials and polling settings.
type TelegramConfig struct {
	Token       string        // expanded from env var by Load
	PollTimeout time.Duration // long-poll timeout for getUpdates
}

// NotificationConfig controls which notifier delivers alerts.
type NotificationConfig struct {
	Type string `yaml:"type"` // "telegram" or "log"
}

// SourceConfig controls the InternSG listing fetcher.
type SourceConfig struct {
	BaseURL  string
	Timeout  time.Duration // per-request HTTP timeout
	MinDelay time.Duration // minimum gap between requests to the site
}

const (
	defaultBaseURL      = "https://www.internsg.com"
	defaultDatabasePath = "internwatch.db"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	CheckInterval string             `yaml:"check_interval"`
	DatabasePath  string             `yaml:"database_path"`
	Retention     int                `yaml:"retention"`
	Notification  NotificationConfig `yaml:"notification"`
	Telegram      rawTelegramConfig  `yaml:"telegram"`
	Source        rawSourceConfig    `yaml:"source"`
}

type rawTelegramConfig struct {
	Token       string `yaml:"token"`
	PollTimeout string `yaml:"poll_timeout"`
}

type rawSourceConfig struct {
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
	MinDelay string `yaml:"min_delay"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval := 30 * time.Minute // default
	if raw.CheckInterval != "" {
		interval, err = time.ParseDuration(raw.CheckInterval)
		if err != nil {
			return nil, fmt.Errorf("parse check_interval %q: %w", raw.CheckInterval, err)
		}
	}

	pollTimeout := 30 * time.Second // default
	if raw.Telegram.PollTimeout != "" {
		pollTimeout, err = time.ParseDuration(raw.Telegram.PollTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse telegram.poll_timeout %q: %w", raw.Telegram.PollTimeout, err)
		}
	}

	sourceTimeout := 15 * time.Second // default
	if raw.Source.Timeout != "" {
		sourceTimeout, err = time.ParseDuration(raw.Source.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse source.timeout %q: %w", raw.Source.Timeout, err)
		}
	}

	minDelay := 2 * time.Second // default
	if raw.Source.MinDelay != "" {
		minDelay, err = time.ParseDuration(raw.Source.MinDelay)
		if err != nil {
			return nil, fmt.Errorf("parse source.min_delay %q: %w", raw.Source.MinDelay, err)
		}
	}

	baseURL := raw.Source.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	dbPath := raw.DatabasePath
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}

	retention := raw.Retention
	if retention == 0 {
		retention = model.DefaultRetention
	}

	cfg := &Config{
		CheckInterval: interval,
		DatabasePath:  dbPath,
		Retention:     retention,
		Notification:  raw.Notification,
		Telegram: TelegramConfig{
			Token:       raw.Telegram.Token,
			PollTimeout: pollTimeout,
		},
		Source: SourceConfig{
			BaseURL:  baseURL,
			Timeout:  sourceTimeout,
			MinDelay: minDelay,
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive, got %v", cfg.CheckInterval)
	}
	if cfg.Retention < 1 {
		return fmt.Errorf("retention must be at least 1, got %d", cfg.Retention)
	}

	switch cfg.Notification.Type {
	case "", "telegram", "log":
	default:
		return fmt.Errorf("notification.type must be \"telegram\" or \"log\", got %q", cfg.Notification.Type)
	}

	if cfg.Notification.Type != "log" && cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when notification.type is \"telegram\"")
	}

	if cfg.Telegram.PollTimeout <= 0 {
		return fmt.Errorf("telegram.poll_timeout must be positive, got %v", cfg.Telegram.PollTimeout)
	}

	return nil
}
