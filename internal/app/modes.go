package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"polyedge/internal/domain"
	"polyedge/internal/ingest"
	"polyedge/internal/monitor"
)

// maxWatchAssets caps how many outcome tokens the websocket stream
// subscribes to at startup.
const maxWatchAssets = 100

// bus returns the signal publisher, or nil when Redis is disabled. The typed
// nil must not leak into the monitor's interface fields.
func (d *Dependencies) bus() monitor.SignalPublisher {
	if d.SignalBus == nil {
		return nil
	}
	return d.SignalBus
}

// archiver returns the blob archiver, or nil when S3 is disabled.
func (d *Dependencies) archiver() domain.Archiver {
	if d.Archiver == nil {
		return nil
	}
	return d.Archiver
}

// DetectMode runs the event-driven mispricing pipeline without paper trading.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting detect mode")

	if deps.Events == nil {
		return fmt.Errorf("app: detect mode needs redis enabled for the event channel")
	}

	m := monitor.New(monitorConfig(a.cfg), monitor.Deps{
		Events:    deps.Events,
		Fetcher:   deps.Gamma,
		Matcher:   deps.Matcher,
		Detector:  deps.Detector,
		Validator: deps.Validator,
		OppStore:  deps.OppStore,
		Bus:       deps.bus(),
		Alerter:   deps.Notifier,
	}, a.logger)
	return m.Run(ctx)
}

// SpikesMode runs the periodic volume-spike scanner with history
// persistence.
func (a *App) SpikesMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting spikes mode")

	m := monitor.New(monitorConfig(a.cfg), monitor.Deps{
		Markets:    deps.Markets,
		Spikes:     deps.SpikeEngine,
		SpikeStore: deps.SpikeStore,
		Bus:        deps.bus(),
		Alerter:    deps.Notifier,
		Locks:      deps.LockManager,
		Limiter:    deps.RateLimiter,
	}, a.logger)
	return a.runWithPriceStream(ctx, deps, m)
}

// PaperMode runs the mispricing pipeline with simulated trade execution.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode")

	if deps.Events == nil {
		return fmt.Errorf("app: paper mode needs redis enabled for the event channel")
	}
	if deps.Trader == nil {
		return fmt.Errorf("app: paper mode needs paper trading enabled")
	}

	m := monitor.New(monitorConfig(a.cfg), monitor.Deps{
		Events:    deps.Events,
		Fetcher:   deps.Gamma,
		Matcher:   deps.Matcher,
		Detector:  deps.Detector,
		Validator: deps.Validator,
		Trader:    deps.Trader,
		OppStore:  deps.OppStore,
		Bus:       deps.bus(),
		Alerter:   deps.Notifier,
	}, a.logger)
	defer a.reportSession(deps)
	return m.Run(ctx)
}

// reportSession logs the paper session summary and delivers the summary
// notification once a trading mode winds down.
func (a *App) reportSession(deps *Dependencies) {
	if deps.Trader == nil {
		return
	}
	s := deps.Trader.Summary()
	a.logger.Info("paper session summary",
		slog.Int("total_trades", s.TotalTrades),
		slog.Int("open_positions", s.OpenPositions),
		slog.Float64("win_rate", s.WinRate),
		slog.Float64("total_pnl", s.TotalPnL),
		slog.Float64("balance", s.CurrentBalance),
	)

	if deps.Notifier == nil {
		return
	}
	// The run context is already cancelled at this point.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := deps.Notifier.NotifySummary(ctx, s); err != nil {
		a.logger.Warn("session summary notification failed", slog.String("error", err.Error()))
	}
}

// FullMode runs every loop: event detection, paper trading, spike scanning,
// history persistence, and archival.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	m := monitor.New(monitorConfig(a.cfg), monitor.Deps{
		Events:      deps.Events,
		Markets:     deps.Markets,
		Fetcher:     deps.Gamma,
		Matcher:     deps.Matcher,
		Detector:    deps.Detector,
		Spikes:      deps.SpikeEngine,
		Validator:   deps.Validator,
		Trader:      deps.Trader,
		OppStore:    deps.OppStore,
		SpikeStore:  deps.SpikeStore,
		Bus:         deps.bus(),
		Alerter:     deps.Notifier,
		Archiver:    deps.archiver(),
		OppPruner:   deps.OppPruner,
		SpikePruner: deps.SpikePruner,
		Locks:       deps.LockManager,
		Limiter:     deps.RateLimiter,
	}, a.logger)
	defer a.reportSession(deps)
	return a.runWithPriceStream(ctx, deps, m)
}

// runWithPriceStream runs the monitor, and when a websocket host and a
// market cache are both configured, a live price stream next to it. The
// stream keeps cached token prices current between full market refreshes.
func (a *App) runWithPriceStream(ctx context.Context, deps *Dependencies, m *monitor.Monitor) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.Run(ctx) })

	if a.cfg.Polymarket.WsHost != "" && deps.MarketCache != nil {
		assetIDs := a.watchAssetIDs(ctx, deps.Markets)
		if len(assetIDs) > 0 {
			refresher := monitor.NewPriceRefresher(deps.MarketCache, a.logger)
			stream := ingest.NewMarketStream(a.cfg.Polymarket.WsHost, assetIDs, refresher.Apply, a.logger)
			g.Go(func() error {
				defer stream.Close()
				if err := stream.Run(ctx); err != nil {
					if ctx.Err() != nil {
						return nil // clean shutdown
					}
					return fmt.Errorf("app: price stream: %w", err)
				}
				return nil
			})
		}
	}

	return g.Wait()
}

// watchAssetIDs collects the outcome token IDs of the currently active
// markets for the websocket subscription. A failed fetch disables the
// stream for this run rather than aborting startup.
func (a *App) watchAssetIDs(ctx context.Context, src monitor.MarketSource) []string {
	markets, err := src.ActiveMarkets(ctx)
	if err != nil {
		a.logger.Warn("could not fetch markets for price stream",
			slog.String("error", err.Error()),
		)
		return nil
	}

	var ids []string
	for _, mkt := range markets {
		for _, tok := range mkt.Tokens {
			if tok.TokenID == "" {
				continue
			}
			ids = append(ids, tok.TokenID)
			if len(ids) >= maxWatchAssets {
				return ids
			}
		}
	}
	return ids
}
