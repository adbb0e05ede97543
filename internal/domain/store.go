package domain

import (
	"context"
	"time"
)

// OpportunityStore persists detected certainty opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
	// ListBefore returns opportunities detected strictly before the cutoff,
	// for archival.
	ListBefore(ctx context.Context, before time.Time) ([]Opportunity, error)
}

// SpikeStore persists detected volume spikes.
type SpikeStore interface {
	Insert(ctx context.Context, spike VolumeSpike) error
	ListRecent(ctx context.Context, limit int) ([]VolumeSpike, error)
	ListBefore(ctx context.Context, before time.Time) ([]VolumeSpike, error)
}

// PaperTradeStore persists simulated trades.
type PaperTradeStore interface {
	Insert(ctx context.Context, trade PaperTrade) error
	Resolve(ctx context.Context, id string, status PaperTradeStatus, exitPrice, actualProfit float64) error
	ListByStatus(ctx context.Context, status PaperTradeStatus) ([]PaperTrade, error)
}
