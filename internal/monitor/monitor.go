// Package monitor runs the detection loops: event-driven mispricing scans,
// periodic volume-spike scans, history persistence, and cold-storage
// archival.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"polyedge/internal/agent"
	"polyedge/internal/detect"
	"polyedge/internal/domain"
	"polyedge/internal/match"
	"polyedge/internal/paper"
	"polyedge/internal/volume"
)

// EventSource reports newly resolved real-world events. Poll returns the
// events detected since the previous call.
type EventSource interface {
	Poll(ctx context.Context) ([]domain.DetectedEvent, error)
}

// MarketSource retrieves the current set of active markets.
type MarketSource interface {
	ActiveMarkets(ctx context.Context) ([]domain.Market, error)
}

// MarketFetcher retrieves a single market by ID. The event loop uses it to
// refresh matched markets, since pool snapshots can be minutes old by the
// time an event resolves.
type MarketFetcher interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
}

// SignalPublisher fans detection output out to live subscribers.
type SignalPublisher interface {
	PublishOpportunity(ctx context.Context, opp domain.Opportunity) error
	PublishSpike(ctx context.Context, spike domain.VolumeSpike) error
}

// Alerter delivers human-readable notifications.
type Alerter interface {
	NotifyOpportunity(ctx context.Context, opp domain.Opportunity) error
	NotifySpike(ctx context.Context, spike domain.VolumeSpike) error
	NotifyPaperTrade(ctx context.Context, trade domain.PaperTrade) error
}

// Pruner deletes rows older than the cutoff after they have been archived.
type Pruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Config holds the loop intervals and rate limits.
type Config struct {
	EventPollInterval   time.Duration
	SpikeScanInterval   time.Duration
	HistorySaveInterval time.Duration
	HistoryPath         string
	ArchiveInterval     time.Duration
	ArchiveRetention    time.Duration
	GammaRateLimit      int
	GammaRateWindow     time.Duration
}

// Monitor owns the long-running detection loops. Every dependency except the
// detector cluster is optional; a nil dependency disables the loops (or loop
// steps) that need it.
type Monitor struct {
	cfg    Config
	logger *slog.Logger

	events   EventSource
	markets  MarketSource
	fetcher  MarketFetcher
	matcher  *match.Matcher
	detector *detect.OpportunityDetector
	spikes   *volume.SpikeEngine

	validator *agent.Validator
	trader    *paper.Engine

	oppStore   domain.OpportunityStore
	spikeStore domain.SpikeStore
	bus        SignalPublisher
	alerter    Alerter

	archiver    domain.Archiver
	oppPruner   Pruner
	spikePruner Pruner

	locks   domain.LockManager
	limiter domain.RateLimiter
}

// Deps bundles the monitor's collaborators. Nil fields disable the
// corresponding behavior.
type Deps struct {
	Events   EventSource
	Markets  MarketSource
	Fetcher  MarketFetcher
	Matcher  *match.Matcher
	Detector *detect.OpportunityDetector
	Spikes   *volume.SpikeEngine

	Validator *agent.Validator
	Trader    *paper.Engine

	OppStore   domain.OpportunityStore
	SpikeStore domain.SpikeStore
	Bus        SignalPublisher
	Alerter    Alerter

	Archiver    domain.Archiver
	OppPruner   Pruner
	SpikePruner Pruner

	Locks   domain.LockManager
	Limiter domain.RateLimiter
}

// New creates a Monitor from its configuration and collaborators.
func New(cfg Config, deps Deps, logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "monitor")),
		events:      deps.Events,
		markets:     deps.Markets,
		fetcher:     deps.Fetcher,
		matcher:     deps.Matcher,
		detector:    deps.Detector,
		spikes:      deps.Spikes,
		validator:   deps.Validator,
		trader:      deps.Trader,
		oppStore:    deps.OppStore,
		spikeStore:  deps.SpikeStore,
		bus:         deps.Bus,
		alerter:     deps.Alerter,
		archiver:    deps.Archiver,
		oppPruner:   deps.OppPruner,
		spikePruner: deps.SpikePruner,
		locks:       deps.Locks,
		limiter:     deps.Limiter,
	}
}

// Run starts every loop whose dependencies are wired and blocks until the
// context is cancelled or a loop fails. Context cancellation is a clean
// shutdown, not an error.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor starting",
		slog.Duration("event_poll_interval", m.cfg.EventPollInterval),
		slog.Duration("spike_scan_interval", m.cfg.SpikeScanInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	if m.events != nil && m.matcher != nil && m.detector != nil {
		g.Go(func() error {
			m.logger.Info("starting event loop")
			err := m.runEventLoop(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("event loop: %w", err)
		})
	}

	if m.markets != nil && m.spikes != nil {
		g.Go(func() error {
			m.logger.Info("starting spike scan loop")
			err := m.runSpikeLoop(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("spike scan loop: %w", err)
		})
	}

	if m.spikes != nil && m.cfg.HistoryPath != "" && m.cfg.HistorySaveInterval > 0 {
		g.Go(func() error {
			m.logger.Info("starting history save loop")
			err := m.runHistorySaveLoop(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("history save loop: %w", err)
		})
	}

	if m.archiver != nil && m.cfg.ArchiveInterval > 0 {
		g.Go(func() error {
			m.logger.Info("starting archive loop")
			err := m.runArchiveLoop(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archive loop: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		m.logger.Error("monitor stopped with error", slog.String("error", err.Error()))
		return err
	}

	m.logger.Info("monitor stopped cleanly")
	return nil
}

// runHistorySaveLoop persists the spike engine's volume histories on a timer,
// and once more on shutdown so a restart resumes close to where it stopped.
func (m *Monitor) runHistorySaveLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.HistorySaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := m.spikes.SaveHistory(m.cfg.HistoryPath); err != nil {
				m.logger.Error("final history save failed", slog.String("error", err.Error()))
			} else {
				m.logger.Info("history saved on shutdown", slog.String("path", m.cfg.HistoryPath))
			}
			return ctx.Err()
		case <-ticker.C:
			if err := m.spikes.SaveHistory(m.cfg.HistoryPath); err != nil {
				m.logger.Error("history save failed", slog.String("error", err.Error()))
				continue
			}
			m.logger.Debug("history saved",
				slog.String("path", m.cfg.HistoryPath),
				slog.Int("markets", m.spikes.TrackedMarkets()),
			)
		}
	}
}
