package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"polyedge/internal/domain"
)

// PaperTradeStore implements domain.PaperTradeStore using PostgreSQL.
type PaperTradeStore struct {
	pool *pgxpool.Pool
}

// NewPaperTradeStore creates a PaperTradeStore backed by the given pool.
func NewPaperTradeStore(pool *pgxpool.Pool) *PaperTradeStore {
	return &PaperTradeStore{pool: pool}
}

// Insert stores a newly opened paper trade.
func (s *PaperTradeStore) Insert(ctx context.Context, trade domain.PaperTrade) error {
	const query = `
		INSERT INTO paper_trades (
			id, opened_at, market_id, slug, outcome,
			entry_price, position_usd, shares, expected_payout, expected_profit,
			costs, status, exit_price, actual_profit, roi_percent,
			certainty_score, reasoning
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17
		)`

	_, err := s.pool.Exec(ctx, query,
		trade.ID, trade.Timestamp, trade.MarketID, trade.Slug, trade.Outcome,
		trade.EntryPrice, trade.PositionSize, trade.Shares, trade.ExpectedPayout, trade.ExpectedProfit,
		trade.Costs, trade.Status, trade.ExitPrice, trade.ActualProfit, trade.ROIPercent,
		trade.CertaintyScore, trade.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert paper trade %s: %w", trade.ID, err)
	}
	return nil
}

// Resolve settles a trade, recording its final status, exit price, and
// realized profit. Returns domain.ErrNotFound for unknown IDs.
func (s *PaperTradeStore) Resolve(ctx context.Context, id string, status domain.PaperTradeStatus, exitPrice, actualProfit float64) error {
	const query = `
		UPDATE paper_trades SET
			status        = $2,
			exit_price    = $3,
			actual_profit = $4
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, status, exitPrice, actualProfit)
	if err != nil {
		return fmt.Errorf("postgres: resolve paper trade %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByStatus returns all trades in the given state, oldest first.
func (s *PaperTradeStore) ListByStatus(ctx context.Context, status domain.PaperTradeStatus) ([]domain.PaperTrade, error) {
	const query = `
		SELECT id, opened_at, market_id, slug, outcome,
			entry_price, position_usd, shares, expected_payout, expected_profit,
			costs, status, exit_price, actual_profit, roi_percent,
			certainty_score, reasoning
		FROM paper_trades WHERE status = $1 ORDER BY opened_at ASC`

	rows, err := s.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("postgres: list paper trades by status %s: %w", status, err)
	}
	defer rows.Close()

	var trades []domain.PaperTrade
	for rows.Next() {
		var trade domain.PaperTrade
		if err := rows.Scan(
			&trade.ID, &trade.Timestamp, &trade.MarketID, &trade.Slug, &trade.Outcome,
			&trade.EntryPrice, &trade.PositionSize, &trade.Shares, &trade.ExpectedPayout, &trade.ExpectedProfit,
			&trade.Costs, &trade.Status, &trade.ExitPrice, &trade.ActualProfit, &trade.ROIPercent,
			&trade.CertaintyScore, &trade.Reasoning,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan paper trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: paper trade rows: %w", err)
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.PaperTradeStore = (*PaperTradeStore)(nil)
