package detect

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"polyedge/internal/domain"
)

// certainOutcomePrice is the price a token should converge to once its
// outcome is certain.
const certainOutcomePrice = 1.0

// adjustedPriceFloor is the price at or above which the market is considered
// to have already priced in the outcome.
const adjustedPriceFloor = 0.95

// OpportunityDetector runs the certainty validator and profit calculator
// against one market snapshot plus one reported event outcome, producing at
// most one Opportunity per call. It keeps an append-only history of every
// accepted opportunity for the lifetime of the instance.
//
// All methods are safe for concurrent use; a single mutex serializes history
// mutation, matching the one-writer-per-cycle design.
type OpportunityDetector struct {
	validator CertaintyValidator
	profit    *ProfitCalculator
	logger    *slog.Logger

	mu      sync.Mutex
	history []domain.Opportunity

	now func() time.Time
}

// NewOpportunityDetector creates a detector using the given profit
// calculator.
func NewOpportunityDetector(profit *ProfitCalculator, logger *slog.Logger) *OpportunityDetector {
	return &OpportunityDetector{
		profit: profit,
		logger: logger.With(slog.String("component", "opportunity_detector")),
		now:    time.Now,
	}
}

// Detect checks whether market lags the reported event outcome. On success it
// returns the accepted Opportunity and appends it to the detector's history;
// otherwise it returns nil and the reason the candidate was rejected.
//
// The market must already be validated by the ingestion layer: volume and
// liquidity are taken as-is, never defaulted here.
func (d *OpportunityDetector) Detect(market domain.Market, eventOutcome string, eventTime time.Time, info domain.CertaintyInfo) (*domain.Opportunity, domain.RejectReason) {
	detectedAt := d.now()
	latency := detectedAt.Sub(eventTime).Seconds()

	token, ok := market.Token(eventOutcome)
	if !ok {
		return d.reject(market, domain.ReasonOutcomeTokenNotFound)
	}

	if token.Price >= adjustedPriceFloor {
		return d.reject(market, domain.ReasonAlreadyPriced)
	}

	assessment := d.validator.Validate(info)
	if !assessment.IsCertain {
		return d.reject(market, domain.ReasonCertaintyTooLow)
	}

	plan, reason := d.profit.Calculate(
		token.Price, certainOutcomePrice,
		market.Volume24h, market.Liquidity,
		assessment.Score,
	)
	if reason.Rejected() {
		return d.reject(market, reason)
	}

	opp := domain.Opportunity{
		ID:              uuid.NewString(),
		MarketID:        market.ID,
		Slug:            market.Slug,
		ConditionID:     market.ConditionID,
		TokenID:         token.TokenID,
		Outcome:         eventOutcome,
		EntryPrice:      token.Price,
		TargetPrice:     certainOutcomePrice,
		PositionSizeUSD: plan.PositionSizeUSD,
		Shares:          plan.Shares,
		ExpectedPayout:  plan.ExpectedPayout,
		GrossProfit:     plan.GrossProfit,
		VigCost:         plan.Costs.Vig,
		GasCost:         plan.Costs.Gas,
		NetProfit:       plan.Costs.NetProfit,
		ROIPercent:      plan.Costs.ROI * 100,
		CertaintyScore:  assessment.Score,
		VolumeUSD:       market.Volume24h,
		LiquidityUSD:    market.Liquidity,
		EventTimestamp:  eventTime,
		DetectedAt:      detectedAt,
		LatencySeconds:  latency,
		Reasoning:       assessment.Reasoning,
	}

	d.mu.Lock()
	d.history = append(d.history, opp)
	d.mu.Unlock()

	d.logger.Info("opportunity detected",
		slog.String("market", market.Display()),
		slog.String("outcome", eventOutcome),
		slog.Float64("roi_percent", opp.ROIPercent),
		slog.Float64("net_profit", opp.NetProfit),
		slog.Float64("latency_seconds", latency),
	)
	return &opp, domain.ReasonNone
}

func (d *OpportunityDetector) reject(market domain.Market, reason domain.RejectReason) (*domain.Opportunity, domain.RejectReason) {
	d.logger.Debug("candidate rejected",
		slog.String("market", market.Display()),
		slog.String("reason", string(reason)),
	)
	return nil, reason
}

// History returns a copy of every opportunity accepted by this detector, in
// detection order.
func (d *OpportunityDetector) History() []domain.Opportunity {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Opportunity, len(d.history))
	copy(out, d.history)
	return out
}

// BestOpportunities returns accepted opportunities with ROI of at least
// minROIPercent and certainty of at least 0.95, sorted by ROI descending.
func (d *OpportunityDetector) BestOpportunities(minROIPercent float64) []domain.Opportunity {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.Opportunity, 0, len(d.history))
	for _, opp := range d.history {
		if opp.ROIPercent >= minROIPercent && opp.CertaintyScore >= minCertainty {
			out = append(out, opp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ROIPercent > out[j].ROIPercent
	})
	return out
}
