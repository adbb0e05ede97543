package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"polyedge/internal/domain"
)

// SpikeStore implements domain.SpikeStore using PostgreSQL.
type SpikeStore struct {
	pool *pgxpool.Pool
}

// NewSpikeStore creates a SpikeStore backed by the given pool.
func NewSpikeStore(pool *pgxpool.Pool) *SpikeStore {
	return &SpikeStore{pool: pool}
}

const spikeSelectCols = `id, market_id, slug, token_id, outcome,
	current_volume_24h, avg_volume_24h, spike_ratio,
	current_price, price_change_1h,
	hours_to_deadline, deadline_proximity,
	signal_strength, confidence,
	position_usd, max_loss_usd, expected_roi,
	detected_at, reasoning`

// Insert stores a detected volume spike.
func (s *SpikeStore) Insert(ctx context.Context, spike domain.VolumeSpike) error {
	const query = `
		INSERT INTO volume_spikes (
			id, market_id, slug, token_id, outcome,
			current_volume_24h, avg_volume_24h, spike_ratio,
			current_price, price_change_1h,
			hours_to_deadline, deadline_proximity,
			signal_strength, confidence,
			position_usd, max_loss_usd, expected_roi,
			detected_at, reasoning
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10,
			$11, $12,
			$13, $14,
			$15, $16, $17,
			$18, $19
		)`

	_, err := s.pool.Exec(ctx, query,
		spike.ID, spike.MarketID, spike.Slug, spike.TokenID, spike.Outcome,
		spike.CurrentVolume24h, spike.AvgVolume24h, spike.SpikeRatio,
		spike.CurrentPrice, spike.PriceChange1h,
		spike.HoursToDeadline, spike.DeadlineProximity,
		spike.SignalStrength, spike.Confidence,
		spike.RecommendedPositionUSD, spike.MaxLossUSD, spike.ExpectedROIPercent,
		spike.DetectedAt, spike.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert spike %s: %w", spike.ID, err)
	}
	return nil
}

// ListRecent returns the most recent spikes ordered by detection time.
func (s *SpikeStore) ListRecent(ctx context.Context, limit int) ([]domain.VolumeSpike, error) {
	query := `SELECT ` + spikeSelectCols + ` FROM volume_spikes ORDER BY detected_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent spikes: %w", err)
	}
	defer rows.Close()

	return scanSpikes(rows)
}

// ListBefore returns spikes detected strictly before the cutoff.
func (s *SpikeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.VolumeSpike, error) {
	query := `SELECT ` + spikeSelectCols + `
		FROM volume_spikes WHERE detected_at < $1 ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list spikes before %s: %w", before, err)
	}
	defer rows.Close()

	return scanSpikes(rows)
}

// DeleteBefore removes spikes detected strictly before the cutoff, after they
// have been archived. Returns the number of rows removed.
func (s *SpikeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM volume_spikes WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete spikes before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanSpikes(rows pgxRows) ([]domain.VolumeSpike, error) {
	var spikes []domain.VolumeSpike
	for rows.Next() {
		var spike domain.VolumeSpike
		if err := rows.Scan(
			&spike.ID, &spike.MarketID, &spike.Slug, &spike.TokenID, &spike.Outcome,
			&spike.CurrentVolume24h, &spike.AvgVolume24h, &spike.SpikeRatio,
			&spike.CurrentPrice, &spike.PriceChange1h,
			&spike.HoursToDeadline, &spike.DeadlineProximity,
			&spike.SignalStrength, &spike.Confidence,
			&spike.RecommendedPositionUSD, &spike.MaxLossUSD, &spike.ExpectedROIPercent,
			&spike.DetectedAt, &spike.Reasoning,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan spike: %w", err)
		}
		spikes = append(spikes, spike)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: spike rows: %w", err)
	}
	return spikes, nil
}

// Compile-time interface check.
var _ domain.SpikeStore = (*SpikeStore)(nil)
