package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// runArchiveLoop runs the archiver on a repeating interval until the context
// is cancelled.
func (m *Monitor) runArchiveLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.ArchiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("archive loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := m.runArchive(ctx); err != nil {
				m.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runArchive executes a single archive run. Rows older than the retention
// cutoff are shipped to cold storage first and pruned from the database only
// after the upload succeeded, so a failed upload never loses data.
func (m *Monitor) runArchive(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-m.cfg.ArchiveRetention)
	m.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Duration("retention", m.cfg.ArchiveRetention),
	)

	oppCount, err := m.archiver.ArchiveOpportunities(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving opportunities before %v: %w", cutoff, err)
	}
	if oppCount > 0 && m.oppPruner != nil {
		pruned, err := m.oppPruner.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pruning archived opportunities: %w", err)
		}
		m.logger.Info("archived opportunities",
			slog.Int64("archived", oppCount),
			slog.Int64("pruned", pruned),
		)
	}

	spikeCount, err := m.archiver.ArchiveSpikes(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving spikes before %v: %w", cutoff, err)
	}
	if spikeCount > 0 && m.spikePruner != nil {
		pruned, err := m.spikePruner.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pruning archived spikes: %w", err)
		}
		m.logger.Info("archived spikes",
			slog.Int64("archived", spikeCount),
			slog.Int64("pruned", pruned),
		)
	}

	if err := m.archiver.ArchiveVolumeHistory(ctx); err != nil {
		return fmt.Errorf("archiving volume history: %w", err)
	}

	m.logger.Info("archive run complete",
		slog.Int64("opportunities_archived", oppCount),
		slog.Int64("spikes_archived", spikeCount),
	)
	return nil
}
