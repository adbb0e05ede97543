package domain

import "time"

// VolumeSnapshot is a single observation of a market's trading activity.
// Snapshots are owned by exactly one history ring and serialized verbatim in
// the persisted history file, hence the JSON tags.
type VolumeSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Volume24h float64   `json:"volume_24h"`
	Price     float64   `json:"price"`
	Liquidity float64   `json:"liquidity"`
}

// VolumeSpike is a detected volume anomaly near a resolution deadline. It is
// derived read-only output, recomputed on every scan and never retained by
// the engine.
type VolumeSpike struct {
	ID       string // UUID assigned at detection time
	MarketID string
	Slug     string
	TokenID  string
	Outcome  string

	CurrentVolume24h float64
	AvgVolume24h     float64
	SpikeRatio       float64 // current / historical average

	CurrentPrice  float64
	PriceChange1h float64 // percent change over the trailing hour

	HoursToDeadline   float64
	DeadlineProximity float64 // 0..100, 100 at or past the deadline

	SignalStrength float64 // 0..100 composite score
	Confidence     float64 // 0..100, grows with history depth

	RecommendedPositionUSD float64
	MaxLossUSD             float64
	ExpectedROIPercent     float64

	DetectedAt time.Time
	Reasoning  string
}
