package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"polyedge/internal/domain"
)

const (
	spikeScanLockKey = "lock:spike_scan"
	gammaRateKey     = "rate:gamma"
)

// runSpikeLoop refreshes volume histories and scans for spikes on a timer.
// When a lock manager is wired, only one instance across the deployment runs
// each scan; the others skip the tick.
func (m *Monitor) runSpikeLoop(ctx context.Context) error {
	// Scan immediately on start.
	m.scanSpikes(ctx)

	ticker := time.NewTicker(m.cfg.SpikeScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("spike scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
			m.scanSpikes(ctx)
		}
	}
}

// scanSpikes performs one scan pass. Failures are logged and the pass is
// abandoned; the next tick retries from scratch.
func (m *Monitor) scanSpikes(ctx context.Context) {
	if m.locks != nil {
		release, err := m.locks.Acquire(ctx, spikeScanLockKey, m.cfg.SpikeScanInterval)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				m.logger.Debug("spike scan held by another instance")
			} else {
				m.logger.Error("spike scan lock failed", slog.String("error", err.Error()))
			}
			return
		}
		defer release()
	}

	if m.limiter != nil {
		allowed, err := m.limiter.Allow(ctx, gammaRateKey, m.cfg.GammaRateLimit, m.cfg.GammaRateWindow)
		if err != nil {
			m.logger.Error("rate limiter check failed", slog.String("error", err.Error()))
			return
		}
		if !allowed {
			m.logger.Warn("gamma rate limit reached, skipping spike scan")
			return
		}
	}

	markets, err := m.markets.ActiveMarkets(ctx)
	if err != nil {
		m.logger.Error("fetching markets for spike scan failed", slog.String("error", err.Error()))
		return
	}
	if len(markets) == 0 {
		m.logger.Debug("no active markets to scan")
		return
	}

	// DetectSpikes records a fresh snapshot per market before scanning.
	spikes := m.spikes.DetectSpikes(markets)

	m.logger.Info("spike scan complete",
		slog.Int("markets", len(markets)),
		slog.Int("spikes", len(spikes)),
		slog.Int("tracked", m.spikes.TrackedMarkets()),
	)

	for _, spike := range spikes {
		m.handleSpike(ctx, spike)
	}
}

// handleSpike persists, publishes, and notifies one detected spike. Steps are
// independent; a failure in one does not suppress the others.
func (m *Monitor) handleSpike(ctx context.Context, spike domain.VolumeSpike) {
	log := m.logger.With(
		slog.String("spike_id", spike.ID),
		slog.String("market", spike.Slug),
	)
	log.Info("volume spike detected",
		slog.Float64("ratio", spike.SpikeRatio),
		slog.Float64("strength", spike.SignalStrength),
	)

	if m.spikeStore != nil {
		if err := m.spikeStore.Insert(ctx, spike); err != nil {
			log.Error("storing spike failed", slog.String("error", err.Error()))
		}
	}
	if m.bus != nil {
		if err := m.bus.PublishSpike(ctx, spike); err != nil {
			log.Error("publishing spike failed", slog.String("error", err.Error()))
		}
	}
	if m.alerter != nil {
		if err := m.alerter.NotifySpike(ctx, spike); err != nil {
			log.Error("spike notification failed", slog.String("error", err.Error()))
		}
	}
}
