// Package paper simulates trade execution against detected opportunities so
// the detection pipeline can be validated without placing real orders.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"polyedge/internal/domain"
)

// DefaultStartingBalance is the simulated bankroll when none is configured.
const DefaultStartingBalance = 10000

// Engine tracks a simulated bankroll and the paper trades opened against it.
// Safe for concurrent use. When a store is configured, trades are persisted
// on open and on resolution.
type Engine struct {
	store  domain.PaperTradeStore
	logger *slog.Logger

	mu              sync.Mutex
	startingBalance float64
	balance         float64
	trades          map[string]*domain.PaperTrade
	wins            int
	losses          int
	startedAt       time.Time

	now func() time.Time
}

// NewEngine creates a paper trading engine. store may be nil for a purely
// in-memory session. startingBalance <= 0 selects the default.
func NewEngine(startingBalance float64, store domain.PaperTradeStore, logger *slog.Logger) *Engine {
	if startingBalance <= 0 {
		startingBalance = DefaultStartingBalance
	}
	e := &Engine{
		store:           store,
		logger:          logger.With(slog.String("component", "paper_engine")),
		startingBalance: startingBalance,
		balance:         startingBalance,
		trades:          make(map[string]*domain.PaperTrade),
		now:             time.Now,
	}
	e.startedAt = e.now()
	return e
}

// ExecuteTrade opens a simulated position against the opportunity, deducting
// the position size from the bankroll. Returns ErrInsufficientFunds when the
// bankroll cannot cover the position.
func (e *Engine) ExecuteTrade(ctx context.Context, opp domain.Opportunity) (*domain.PaperTrade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if opp.PositionSizeUSD > e.balance {
		return nil, fmt.Errorf("paper: position %.2f exceeds balance %.2f: %w",
			opp.PositionSizeUSD, e.balance, domain.ErrInsufficientFunds)
	}

	trade := &domain.PaperTrade{
		ID:             uuid.NewString(),
		Timestamp:      e.now(),
		MarketID:       opp.MarketID,
		Slug:           opp.Slug,
		Outcome:        opp.Outcome,
		EntryPrice:     opp.EntryPrice,
		PositionSize:   opp.PositionSizeUSD,
		Shares:         opp.Shares,
		ExpectedPayout: opp.ExpectedPayout,
		ExpectedProfit: opp.NetProfit,
		Costs:          opp.VigCost + opp.GasCost,
		Status:         domain.PaperTradeOpen,
		ROIPercent:     opp.ROIPercent,
		CertaintyScore: opp.CertaintyScore,
		Reasoning:      opp.Reasoning,
	}

	e.balance -= trade.PositionSize
	e.trades[trade.ID] = trade

	if e.store != nil {
		if err := e.store.Insert(ctx, *trade); err != nil {
			// Roll back the bankroll so memory and store stay consistent.
			e.balance += trade.PositionSize
			delete(e.trades, trade.ID)
			return nil, fmt.Errorf("paper: persist trade: %w", err)
		}
	}

	e.logger.Info("paper trade opened",
		slog.String("trade_id", trade.ID),
		slog.String("market", trade.Slug),
		slog.Float64("position_usd", trade.PositionSize),
		slog.Float64("balance_usd", e.balance),
	)
	return cloneTrade(trade), nil
}

// Resolve settles an open trade. A won trade credits shares at the exit
// price minus costs; a lost trade credits nothing beyond the exit value of
// the shares. Returns ErrNotFound for unknown IDs and ErrAlreadyExists when
// the trade was already settled.
func (e *Engine) Resolve(ctx context.Context, tradeID string, won bool, exitPrice float64) (*domain.PaperTrade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	trade, ok := e.trades[tradeID]
	if !ok {
		return nil, fmt.Errorf("paper: trade %s: %w", tradeID, domain.ErrNotFound)
	}
	if trade.Status != domain.PaperTradeOpen {
		return nil, fmt.Errorf("paper: trade %s already %s: %w", tradeID, trade.Status, domain.ErrAlreadyExists)
	}

	proceeds := trade.Shares * exitPrice
	profit := proceeds - trade.PositionSize - trade.Costs

	if won {
		trade.Status = domain.PaperTradeWon
		e.wins++
	} else {
		trade.Status = domain.PaperTradeLost
		e.losses++
	}
	trade.ExitPrice = &exitPrice
	trade.ActualProfit = &profit
	e.balance += proceeds - trade.Costs

	if e.store != nil {
		if err := e.store.Resolve(ctx, trade.ID, trade.Status, exitPrice, profit); err != nil {
			return nil, fmt.Errorf("paper: persist resolution: %w", err)
		}
	}

	e.logger.Info("paper trade resolved",
		slog.String("trade_id", trade.ID),
		slog.String("status", string(trade.Status)),
		slog.Float64("profit_usd", profit),
		slog.Float64("balance_usd", e.balance),
	)
	return cloneTrade(trade), nil
}

// Cancel closes an open trade at its entry price, returning the position to
// the bankroll with no profit or loss beyond costs already charged.
func (e *Engine) Cancel(ctx context.Context, tradeID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	trade, ok := e.trades[tradeID]
	if !ok {
		return fmt.Errorf("paper: trade %s: %w", tradeID, domain.ErrNotFound)
	}
	if trade.Status != domain.PaperTradeOpen {
		return fmt.Errorf("paper: trade %s already %s: %w", tradeID, trade.Status, domain.ErrAlreadyExists)
	}

	trade.Status = domain.PaperTradeCancelled
	e.balance += trade.PositionSize

	if e.store != nil {
		if err := e.store.Resolve(ctx, trade.ID, trade.Status, trade.EntryPrice, 0); err != nil {
			return fmt.Errorf("paper: persist cancellation: %w", err)
		}
	}
	return nil
}

// OpenTrades returns copies of all trades still open. Order is unspecified.
func (e *Engine) OpenTrades() []domain.PaperTrade {
	e.mu.Lock()
	defer e.mu.Unlock()

	var open []domain.PaperTrade
	for _, t := range e.trades {
		if t.Status == domain.PaperTradeOpen {
			open = append(open, *cloneTrade(t))
		}
	}
	return open
}

// Balance returns the current simulated bankroll.
func (e *Engine) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// Summary aggregates the session's performance so far.
func (e *Engine) Summary() domain.PaperSessionSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := 0
	for _, t := range e.trades {
		if t.Status == domain.PaperTradeOpen {
			open++
		}
	}

	s := domain.PaperSessionSummary{
		StartedAt:       e.startedAt,
		StartingBalance: e.startingBalance,
		CurrentBalance:  e.balance,
		OpenPositions:   open,
		TotalTrades:     len(e.trades),
		Wins:            e.wins,
		Losses:          e.losses,
		TotalPnL:        e.balance - e.startingBalance,
	}
	if resolved := e.wins + e.losses; resolved > 0 {
		s.WinRate = float64(e.wins) / float64(resolved) * 100
	}
	if e.startingBalance > 0 {
		s.ReturnPercent = s.TotalPnL / e.startingBalance * 100
	}
	return s
}

func cloneTrade(t *domain.PaperTrade) *domain.PaperTrade {
	c := *t
	if t.ExitPrice != nil {
		v := *t.ExitPrice
		c.ExitPrice = &v
	}
	if t.ActualProfit != nil {
		v := *t.ActualProfit
		c.ActualProfit = &v
	}
	return &c
}
