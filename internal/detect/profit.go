package detect

import "polyedge/internal/domain"

const (
	// MinimumROI is the floor on net return for an accepted position.
	MinimumROI = 0.20

	// MaxPositionUSD caps any single position.
	MaxPositionUSD = 5000

	// MinVolumeUSD and MaxVolumeUSD bound the target market size. Below the
	// floor there is nothing to trade against; above the cap the market is
	// too efficient to lag an event.
	MinVolumeUSD = 10000
	MaxVolumeUSD = 100000

	// minPositionUSD rejects positions too small to be worth the fixed costs.
	minPositionUSD = 100

	// minCertainty is the certainty score below which no position is taken.
	minCertainty = 0.95
)

// ProfitCalculator sizes positions and computes expected profit for
// certainty candidates.
type ProfitCalculator struct {
	costs CostModel
}

// NewProfitCalculator creates a ProfitCalculator using the given cost model.
func NewProfitCalculator(costs CostModel) *ProfitCalculator {
	return &ProfitCalculator{costs: costs}
}

// Calculate sizes a position for buying at currentPrice a token that should
// trade at targetPrice (normally 1.0). It returns nil plus a reason code when
// any eligibility condition fails:
//
//   - market volume outside [MinVolumeUSD, MaxVolumeUSD]
//   - certainty score below minCertainty
//   - sized position below minPositionUSD
//   - entry price on or outside (0,1)
//   - non-positive gross profit or ROI below MinimumROI
//
// The position is capped at MaxPositionUSD, 10% of liquidity, and 5% of
// volume, whichever is smallest.
func (p *ProfitCalculator) Calculate(currentPrice, targetPrice, marketVolume, marketLiquidity, certaintyScore float64) (*domain.PositionPlan, domain.RejectReason) {
	if marketVolume < MinVolumeUSD || marketVolume > MaxVolumeUSD {
		return nil, domain.ReasonVolumeOutOfRange
	}
	if certaintyScore < minCertainty {
		return nil, domain.ReasonCertaintyTooLow
	}

	position := min(MaxPositionUSD, marketLiquidity*0.10, marketVolume*0.05)
	if position < minPositionUSD {
		return nil, domain.ReasonPositionBelowFloor
	}

	if currentPrice <= 0 || currentPrice >= 1 {
		return nil, domain.ReasonInvalidEntryPrice
	}

	shares := position / currentPrice
	payout := shares * targetPrice
	gross := payout - position
	if gross <= 0 {
		return nil, domain.ReasonROIBelowThreshold
	}

	costs := p.costs.TradeCost(position, gross)
	if costs.ROI < MinimumROI {
		return nil, domain.ReasonROIBelowThreshold
	}

	return &domain.PositionPlan{
		PositionSizeUSD: position,
		Shares:          shares,
		ExpectedPayout:  payout,
		GrossProfit:     gross,
		Costs:           costs,
	}, domain.ReasonNone
}
