package domain

import "time"

// PaperTradeStatus is the lifecycle state of a simulated trade.
type PaperTradeStatus string

const (
	PaperTradeOpen      PaperTradeStatus = "open"
	PaperTradeWon       PaperTradeStatus = "won"
	PaperTradeLost      PaperTradeStatus = "lost"
	PaperTradeCancelled PaperTradeStatus = "cancelled"
)

// PaperTrade is a simulated position opened against a detected opportunity.
// No real order is placed; the paper engine tracks it to validate the
// detection pipeline.
type PaperTrade struct {
	ID             string
	Timestamp      time.Time
	MarketID       string
	Slug           string
	Outcome        string
	EntryPrice     float64
	PositionSize   float64
	Shares         float64
	ExpectedPayout float64
	ExpectedProfit float64
	Costs          float64
	Status         PaperTradeStatus
	ExitPrice      *float64
	ActualProfit   *float64
	ROIPercent     float64
	CertaintyScore float64
	Reasoning      string
}

// PaperSessionSummary aggregates the performance of a paper trading session.
type PaperSessionSummary struct {
	StartedAt       time.Time
	StartingBalance float64
	CurrentBalance  float64
	OpenPositions   int
	TotalTrades     int
	Wins            int
	Losses          int
	WinRate         float64 // percent of resolved trades won
	TotalPnL        float64
	ReturnPercent   float64
}
