package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"polyedge/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `id, market_id, slug, condition_id, token_id, outcome,
	entry_price, target_price, position_usd, shares, expected_payout,
	gross_profit, vig_cost, gas_cost, net_profit, roi_percent,
	certainty_score, volume_usd, liquidity_usd,
	event_timestamp, detected_at, latency_seconds, reasoning`

// Insert stores a detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, market_id, slug, condition_id, token_id, outcome,
			entry_price, target_price, position_usd, shares, expected_payout,
			gross_profit, vig_cost, gas_cost, net_profit, roi_percent,
			certainty_score, volume_usd, liquidity_usd,
			event_timestamp, detected_at, latency_seconds, reasoning
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19,
			$20, $21, $22, $23
		)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.MarketID, opp.Slug, opp.ConditionID, opp.TokenID, opp.Outcome,
		opp.EntryPrice, opp.TargetPrice, opp.PositionSizeUSD, opp.Shares, opp.ExpectedPayout,
		opp.GrossProfit, opp.VigCost, opp.GasCost, opp.NetProfit, opp.ROIPercent,
		opp.CertaintyScore, opp.VolumeUSD, opp.LiquidityUSD,
		opp.EventTimestamp, opp.DetectedAt, opp.LatencySeconds, opp.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recent opportunities ordered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities ORDER BY detected_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// ListBefore returns opportunities detected strictly before the cutoff.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunitySelectCols + `
		FROM opportunities WHERE detected_at < $1 ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %s: %w", before, err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// DeleteBefore removes opportunities detected strictly before the cutoff,
// after they have been archived. Returns the number of rows removed.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanOpportunities(rows pgxRows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		if err := rows.Scan(
			&opp.ID, &opp.MarketID, &opp.Slug, &opp.ConditionID, &opp.TokenID, &opp.Outcome,
			&opp.EntryPrice, &opp.TargetPrice, &opp.PositionSizeUSD, &opp.Shares, &opp.ExpectedPayout,
			&opp.GrossProfit, &opp.VigCost, &opp.GasCost, &opp.NetProfit, &opp.ROIPercent,
			&opp.CertaintyScore, &opp.VolumeUSD, &opp.LiquidityUSD,
			&opp.EventTimestamp, &opp.DetectedAt, &opp.LatencySeconds, &opp.Reasoning,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return opps, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
