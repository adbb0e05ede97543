package domain

import "time"

// Opportunity is a certainty-arbitrage candidate that passed every filter:
// the outcome is certain, the market has not adjusted, and the sized position
// clears the cost and ROI thresholds. Opportunities are immutable after
// creation.
type Opportunity struct {
	ID          string // UUID assigned at detection time
	MarketID    string
	Slug        string
	ConditionID string
	TokenID     string
	Outcome     string

	EntryPrice  float64 // current market price in (0,1)
	TargetPrice float64 // price the token should trade at, normally 1.0

	PositionSizeUSD float64
	Shares          float64
	ExpectedPayout  float64
	GrossProfit     float64
	VigCost         float64
	GasCost         float64
	NetProfit       float64
	ROIPercent      float64

	CertaintyScore float64
	VolumeUSD      float64
	LiquidityUSD   float64

	EventTimestamp time.Time
	DetectedAt     time.Time
	LatencySeconds float64 // time between event resolution and detection

	Reasoning string
}

// CostBreakdown itemizes the costs of a candidate position.
type CostBreakdown struct {
	Vig       float64 // proportional platform fee on gross profit
	Gas       float64 // fixed network fee
	API       float64
	Total     float64
	NetProfit float64
	ROI       float64 // net profit / position size, 0 when position is 0
}

// PositionPlan is a fully costed, sized position produced by the profit
// calculator for an accepted candidate.
type PositionPlan struct {
	PositionSizeUSD float64
	Shares          float64
	ExpectedPayout  float64
	GrossProfit     float64
	Costs           CostBreakdown
}
