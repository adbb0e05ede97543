package detect

import "polyedge/internal/domain"

const (
	// VigPercent is the platform's proportional fee on gross winnings.
	VigPercent = 0.02

	// DefaultGasFeeUSD is a conservative per-trade estimate of Polygon gas.
	DefaultGasFeeUSD = 0.50

	// apiCostUSD is zero: read-only market data carries no charge.
	apiCostUSD = 0.0
)

// CostModel computes the fixed plus proportional costs of a candidate
// position.
type CostModel struct {
	gasFeeUSD float64
}

// NewCostModel creates a CostModel with the given fixed gas fee. A
// non-positive fee selects the default.
func NewCostModel(gasFeeUSD float64) CostModel {
	if gasFeeUSD <= 0 {
		gasFeeUSD = DefaultGasFeeUSD
	}
	return CostModel{gasFeeUSD: gasFeeUSD}
}

// TradeCost itemizes all costs for a position of the given size and gross
// profit. ROI is net profit over position size, or 0 for a zero position.
func (c CostModel) TradeCost(positionSize, grossProfit float64) domain.CostBreakdown {
	gas := c.gasFeeUSD
	if gas == 0 {
		gas = DefaultGasFeeUSD
	}
	vig := grossProfit * VigPercent
	total := vig + gas + apiCostUSD
	net := grossProfit - total

	var roi float64
	if positionSize > 0 {
		roi = net / positionSize
	}

	return domain.CostBreakdown{
		Vig:       vig,
		Gas:       gas,
		API:       apiCostUSD,
		Total:     total,
		NetProfit: net,
		ROI:       roi,
	}
}
