package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYEDGE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYEDGE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYEDGE_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYEDGE_POLYMARKET_WS_HOST")

	// ── Detector ──
	setFloat64(&cfg.Detector.MinROI, "POLYEDGE_DETECTOR_MIN_ROI")
	setFloat64(&cfg.Detector.GasFeeUSD, "POLYEDGE_DETECTOR_GAS_FEE_USD")
	setBool(&cfg.Detector.AllowDegraded, "POLYEDGE_DETECTOR_ALLOW_DEGRADED")

	// ── Spikes ──
	setFloat64(&cfg.Spikes.MinSpikeRatio, "POLYEDGE_SPIKES_MIN_SPIKE_RATIO")
	setFloat64(&cfg.Spikes.MinVolumeUSD, "POLYEDGE_SPIKES_MIN_VOLUME_USD")
	setFloat64(&cfg.Spikes.MaxHoursToDeadline, "POLYEDGE_SPIKES_MAX_HOURS_TO_DEADLINE")
	setInt(&cfg.Spikes.HistoryWindow, "POLYEDGE_SPIKES_HISTORY_WINDOW")
	setInt(&cfg.Spikes.MinSnapshots, "POLYEDGE_SPIKES_MIN_SNAPSHOTS")
	setStr(&cfg.Spikes.HistoryPath, "POLYEDGE_SPIKES_HISTORY_PATH")

	// ── Matcher ──
	setDuration(&cfg.Matcher.CacheTTL, "POLYEDGE_MATCHER_CACHE_TTL")
	setFloat64(&cfg.Matcher.MinVolumeUSD, "POLYEDGE_MATCHER_MIN_VOLUME_USD")
	setFloat64(&cfg.Matcher.MaxVolumeUSD, "POLYEDGE_MATCHER_MAX_VOLUME_USD")

	// ── Agent ──
	setBool(&cfg.Agent.Enabled, "POLYEDGE_AGENT_ENABLED")
	setFloat64(&cfg.Agent.MaxPositionUSD, "POLYEDGE_AGENT_MAX_POSITION_USD")

	// ── Paper ──
	setBool(&cfg.Paper.Enabled, "POLYEDGE_PAPER_ENABLED")
	setFloat64(&cfg.Paper.StartingBalance, "POLYEDGE_PAPER_STARTING_BALANCE")

	// ── Monitor ──
	setDuration(&cfg.Monitor.SpikeScanInterval, "POLYEDGE_MONITOR_SPIKE_SCAN_INTERVAL")
	setDuration(&cfg.Monitor.EventPollInterval, "POLYEDGE_MONITOR_EVENT_POLL_INTERVAL")
	setDuration(&cfg.Monitor.HistorySaveInterval, "POLYEDGE_MONITOR_HISTORY_SAVE_INTERVAL")
	setDuration(&cfg.Monitor.ArchiveInterval, "POLYEDGE_MONITOR_ARCHIVE_INTERVAL")
	setInt(&cfg.Monitor.ArchiveRetentionDays, "POLYEDGE_MONITOR_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Monitor.GammaRateLimit, "POLYEDGE_MONITOR_GAMMA_RATE_LIMIT")
	setDuration(&cfg.Monitor.GammaRateWindow, "POLYEDGE_MONITOR_GAMMA_RATE_WINDOW")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYEDGE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYEDGE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYEDGE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYEDGE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYEDGE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYEDGE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYEDGE_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "POLYEDGE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POLYEDGE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYEDGE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYEDGE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYEDGE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYEDGE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYEDGE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYEDGE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYEDGE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYEDGE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYEDGE_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYEDGE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYEDGE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYEDGE_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYEDGE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYEDGE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYEDGE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYEDGE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYEDGE_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYEDGE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYEDGE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYEDGE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYEDGE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYEDGE_MODE")
	setStr(&cfg.LogLevel, "POLYEDGE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
