package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"polyedge/internal/agent"
	s3blob "polyedge/internal/blob/s3"
	"polyedge/internal/cache/redis"
	"polyedge/internal/config"
	"polyedge/internal/detect"
	"polyedge/internal/domain"
	"polyedge/internal/ingest"
	"polyedge/internal/match"
	"polyedge/internal/monitor"
	"polyedge/internal/notify"
	"polyedge/internal/paper"
	"polyedge/internal/store/postgres"
	"polyedge/internal/volume"
)

// Dependencies bundles every component the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function. Fields
// backed by disabled infrastructure stay nil and the monitor skips the
// corresponding steps.
type Dependencies struct {
	// Detection core
	Gamma       *ingest.GammaClient
	Markets     monitor.MarketSource
	Matcher     *match.Matcher
	Detector    *detect.OpportunityDetector
	Validator   *agent.Validator
	Trader      *paper.Engine
	SpikeEngine *volume.SpikeEngine

	// Stores
	OppStore    domain.OpportunityStore
	SpikeStore  domain.SpikeStore
	TradeStore  domain.PaperTradeStore
	OppPruner   monitor.Pruner
	SpikePruner monitor.Pruner

	// Redis
	MarketCache domain.MarketCache
	SignalBus   *redis.SignalBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	Events      monitor.EventSource

	// Blob storage
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		oppStore := postgres.NewOpportunityStore(pool)
		spikeStore := postgres.NewSpikeStore(pool)
		deps.OppStore = oppStore
		deps.SpikeStore = spikeStore
		deps.TradeStore = postgres.NewPaperTradeStore(pool)
		deps.OppPruner = oppStore
		deps.SpikePruner = spikeStore
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)

		events := monitor.NewBusEventSource(deps.SignalBus, monitor.EventChannel, logger)
		if err := events.Start(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: event source: %w", err)
		}
		deps.Events = events
	}

	// --- Detection core ---
	normalizer := ingest.NewNormalizer(cfg.Detector.AllowDegraded, logger)
	deps.Gamma = ingest.NewGammaClient(cfg.Polymarket.GammaHost, normalizer)

	deps.Markets = deps.Gamma
	if deps.MarketCache != nil {
		deps.Markets = monitor.NewCachingMarketSource(deps.Gamma, deps.MarketCache, logger)
	}

	deps.Matcher = match.New(deps.Markets, match.Config{
		CacheTTL:     cfg.Matcher.CacheTTL.Duration,
		MinVolumeUSD: cfg.Matcher.MinVolumeUSD,
		MaxVolumeUSD: cfg.Matcher.MaxVolumeUSD,
	}, logger).WithSearch(deps.Gamma)

	deps.Detector = detect.NewOpportunityDetector(
		detect.NewProfitCalculator(detect.NewCostModel(cfg.Detector.GasFeeUSD)),
		logger,
	)

	if cfg.Agent.Enabled {
		deps.Validator = agent.NewValidator(
			agent.HeuristicSentiment{},
			agent.HeuristicRisk{MaxPositionUSD: cfg.Agent.MaxPositionUSD},
			logger,
		)
	}

	if cfg.Paper.Enabled {
		deps.Trader = paper.NewEngine(cfg.Paper.StartingBalance, deps.TradeStore, logger)
	}

	deps.SpikeEngine = volume.NewSpikeEngine(volume.Config{
		MinSpikeRatio:      cfg.Spikes.MinSpikeRatio,
		MinVolumeUSD:       cfg.Spikes.MinVolumeUSD,
		MaxHoursToDeadline: cfg.Spikes.MaxHoursToDeadline,
		HistoryWindow:      cfg.Spikes.HistoryWindow,
		MinSnapshots:       cfg.Spikes.MinSnapshots,
	}, logger)
	if cfg.Spikes.HistoryPath != "" {
		if err := deps.SpikeEngine.LoadHistory(cfg.Spikes.HistoryPath); err != nil {
			logger.Warn("could not load volume history, starting empty",
				slog.String("path", cfg.Spikes.HistoryPath),
				slog.String("error", err.Error()),
			)
		}
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		// Archival reads aged rows back out of Postgres; config validation
		// guarantees both are enabled together.
		if oppStore, ok := deps.OppStore.(*postgres.OpportunityStore); ok {
			deps.Archiver = s3blob.NewArchiver(
				s3blob.NewWriter(s3Client),
				oppStore,
				deps.SpikeStore.(*postgres.SpikeStore),
				deps.SpikeEngine,
			).WithVerify(s3blob.NewReader(s3Client))
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// monitorConfig translates the file configuration into monitor loop settings.
func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		EventPollInterval:   cfg.Monitor.EventPollInterval.Duration,
		SpikeScanInterval:   cfg.Monitor.SpikeScanInterval.Duration,
		HistorySaveInterval: cfg.Monitor.HistorySaveInterval.Duration,
		HistoryPath:         cfg.Spikes.HistoryPath,
		ArchiveInterval:     cfg.Monitor.ArchiveInterval.Duration,
		ArchiveRetention:    time.Duration(cfg.Monitor.ArchiveRetentionDays) * 24 * time.Hour,
		GammaRateLimit:      cfg.Monitor.GammaRateLimit,
		GammaRateWindow:     cfg.Monitor.GammaRateWindow.Duration,
	}
}
