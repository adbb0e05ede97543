// Package config defines the TOML configuration surface for polyedge and its
// validation rules.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure, loaded from TOML.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Detector   DetectorConfig   `toml:"detector"`
	Spikes     SpikesConfig     `toml:"spikes"`
	Matcher    MatcherConfig    `toml:"matcher"`
	Agent      AgentConfig      `toml:"agent"`
	Paper      PaperConfig      `toml:"paper"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	WsHost    string `toml:"ws_host"`
}

// DetectorConfig holds mispricing-detection parameters.
type DetectorConfig struct {
	// MinROI filters BestOpportunities output, expressed as a fraction
	// (0.20 = 20%).
	MinROI    float64 `toml:"min_roi"`
	GasFeeUSD float64 `toml:"gas_fee_usd"`
	// AllowDegraded lets the ingestion normalizer substitute fallback
	// volume/liquidity figures for markets the API reports incompletely.
	// Off by default; every substitution is logged.
	AllowDegraded bool `toml:"allow_degraded"`
}

// SpikesConfig holds volume-spike detection thresholds.
type SpikesConfig struct {
	MinSpikeRatio      float64 `toml:"min_spike_ratio"`
	MinVolumeUSD       float64 `toml:"min_volume_usd"`
	MaxHoursToDeadline float64 `toml:"max_hours_to_deadline"`
	HistoryWindow      int     `toml:"history_window"`
	MinSnapshots       int     `toml:"min_snapshots"`
	// HistoryPath is where the engine persists its volume histories between
	// runs. Empty disables persistence.
	HistoryPath string `toml:"history_path"`
}

// MatcherConfig holds event-to-market matching parameters.
type MatcherConfig struct {
	CacheTTL     duration `toml:"cache_ttl"`
	MinVolumeUSD float64  `toml:"min_volume_usd"`
	MaxVolumeUSD float64  `toml:"max_volume_usd"`
}

// AgentConfig holds opportunity validation parameters.
type AgentConfig struct {
	Enabled        bool    `toml:"enabled"`
	MaxPositionUSD float64 `toml:"max_position_usd"`
}

// PaperConfig holds paper-trading session parameters.
type PaperConfig struct {
	Enabled         bool    `toml:"enabled"`
	StartingBalance float64 `toml:"starting_balance"`
}

// MonitorConfig holds the orchestration loop intervals.
type MonitorConfig struct {
	SpikeScanInterval    duration `toml:"spike_scan_interval"`
	EventPollInterval    duration `toml:"event_poll_interval"`
	HistorySaveInterval  duration `toml:"history_save_interval"`
	ArchiveInterval      duration `toml:"archive_interval"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	// GammaRateLimit caps Gamma API calls per GammaRateWindow across all
	// loops sharing the Redis rate limiter.
	GammaRateLimit  int      `toml:"gamma_rate_limit"`
	GammaRateWindow duration `toml:"gamma_rate_window"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters used for archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Detector: DetectorConfig{
			MinROI:        0.20,
			GasFeeUSD:     0.50,
			AllowDegraded: false,
		},
		Spikes: SpikesConfig{
			MinSpikeRatio:      3.0,
			MinVolumeUSD:       10000,
			MaxHoursToDeadline: 24,
			HistoryWindow:      20,
			MinSnapshots:       5,
			HistoryPath:        "volume_history.json",
		},
		Matcher: MatcherConfig{
			CacheTTL:     duration{5 * time.Minute},
			MinVolumeUSD: 10000,
			MaxVolumeUSD: 100000,
		},
		Agent: AgentConfig{
			Enabled:        true,
			MaxPositionUSD: 5000,
		},
		Paper: PaperConfig{
			Enabled:         true,
			StartingBalance: 10000,
		},
		Monitor: MonitorConfig{
			SpikeScanInterval:    duration{time.Minute},
			EventPollInterval:    duration{30 * time.Second},
			HistorySaveInterval:  duration{5 * time.Minute},
			ArchiveInterval:      duration{24 * time.Hour},
			ArchiveRetentionDays: 30,
			GammaRateLimit:       60,
			GammaRateWindow:      duration{time.Minute},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "polyedge",
			User:          "polyedge",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Region:         "us-east-1",
			Bucket:         "polyedge-archive",
			UseSSL:         true,
			ForcePathStyle: false,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "spike"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"detect": true,
	"spikes": true,
	"paper":  true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for inconsistencies and returns a single
// error describing everything that is wrong.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("mode: %q is not one of detect, spikes, paper, full", c.Mode))
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level: %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket.gamma_host: must not be empty")
	}

	if c.Detector.MinROI < 0 {
		errs = append(errs, "detector.min_roi: must not be negative")
	}
	if c.Detector.GasFeeUSD < 0 {
		errs = append(errs, "detector.gas_fee_usd: must not be negative")
	}

	if c.Spikes.MinSpikeRatio <= 1 {
		errs = append(errs, "spikes.min_spike_ratio: must be greater than 1")
	}
	if c.Spikes.MinVolumeUSD < 0 {
		errs = append(errs, "spikes.min_volume_usd: must not be negative")
	}
	if c.Spikes.MaxHoursToDeadline <= 0 {
		errs = append(errs, "spikes.max_hours_to_deadline: must be positive")
	}
	if c.Spikes.HistoryWindow <= 0 {
		errs = append(errs, "spikes.history_window: must be positive")
	}
	if c.Spikes.MinSnapshots <= 0 {
		errs = append(errs, "spikes.min_snapshots: must be positive")
	}
	if c.Spikes.MinSnapshots > c.Spikes.HistoryWindow {
		errs = append(errs, "spikes.min_snapshots: must not exceed spikes.history_window")
	}

	if c.Matcher.CacheTTL.Duration <= 0 {
		errs = append(errs, "matcher.cache_ttl: must be positive")
	}
	if c.Matcher.MinVolumeUSD < 0 {
		errs = append(errs, "matcher.min_volume_usd: must not be negative")
	}
	if c.Matcher.MaxVolumeUSD <= c.Matcher.MinVolumeUSD {
		errs = append(errs, "matcher.max_volume_usd: must exceed matcher.min_volume_usd")
	}

	if c.Paper.Enabled && c.Paper.StartingBalance <= 0 {
		errs = append(errs, "paper.starting_balance: must be positive when paper trading is enabled")
	}

	if c.Monitor.SpikeScanInterval.Duration <= 0 {
		errs = append(errs, "monitor.spike_scan_interval: must be positive")
	}
	if c.Monitor.EventPollInterval.Duration <= 0 {
		errs = append(errs, "monitor.event_poll_interval: must be positive")
	}
	if c.Monitor.HistorySaveInterval.Duration <= 0 {
		errs = append(errs, "monitor.history_save_interval: must be positive")
	}
	if c.Monitor.ArchiveRetentionDays < 0 {
		errs = append(errs, "monitor.archive_retention_days: must not be negative")
	}
	if c.Monitor.GammaRateLimit <= 0 {
		errs = append(errs, "monitor.gamma_rate_limit: must be positive")
	}
	if c.Monitor.GammaRateWindow.Duration <= 0 {
		errs = append(errs, "monitor.gamma_rate_window: must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr: must not be empty when redis is enabled")
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres.host: must not be empty when postgres is enabled and no dsn is set")
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres.database: must not be empty when postgres is enabled and no dsn is set")
		}
		if c.Postgres.User == "" {
			errs = append(errs, "postgres.user: must not be empty when postgres is enabled and no dsn is set")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3.bucket: must not be empty when s3 is enabled")
		}
		if c.S3.Region == "" && c.S3.Endpoint == "" {
			errs = append(errs, "s3.region: must be set when s3 is enabled and no custom endpoint is given")
		}
	}

	if c.S3.Enabled && !c.Postgres.Enabled {
		errs = append(errs, "s3.enabled: archival requires postgres to be enabled")
	}

	for _, ev := range c.Notify.Events {
		switch ev {
		case "opportunity", "spike", "paper", "summary":
		default:
			errs = append(errs, fmt.Sprintf("notify.events: unknown event %q", ev))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
