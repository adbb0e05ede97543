package detect

import (
	"math"
	"testing"

	"polyedge/internal/domain"
)

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v (tol %v)", name, got, want, tol)
	}
}

func TestCostModel(t *testing.T) {
	c := NewCostModel(0)

	costs := c.TradeCost(1000, 500)
	approx(t, "Vig", costs.Vig, 10, 1e-9)
	approx(t, "Gas", costs.Gas, 0.50, 1e-9)
	approx(t, "API", costs.API, 0, 1e-9)
	approx(t, "Total", costs.Total, 10.50, 1e-9)
	approx(t, "NetProfit", costs.NetProfit, 489.50, 1e-9)
	approx(t, "ROI", costs.ROI, 0.4895, 1e-9)
}

func TestCostModelZeroPosition(t *testing.T) {
	c := NewCostModel(0)
	if roi := c.TradeCost(0, 100).ROI; roi != 0 {
		t.Errorf("ROI for zero position = %v, want 0", roi)
	}
}

func TestCalculateAccepted(t *testing.T) {
	p := NewProfitCalculator(NewCostModel(0))

	// 75k volume, 20k liquidity, entry at 0.65 with full certainty.
	plan, reason := p.Calculate(0.65, 1.0, 75000, 20000, 1.0)
	if reason.Rejected() {
		t.Fatalf("unexpected rejection: %s", reason)
	}

	// Position is the liquidity cap: min(5000, 2000, 3750).
	approx(t, "PositionSizeUSD", plan.PositionSizeUSD, 2000, 1e-9)
	approx(t, "Shares", plan.Shares, 3076.92, 0.01)
	approx(t, "ExpectedPayout", plan.ExpectedPayout, 3076.92, 0.01)
	approx(t, "GrossProfit", plan.GrossProfit, 1076.92, 0.01)
	approx(t, "Vig", plan.Costs.Vig, 21.54, 0.01)
	approx(t, "Gas", plan.Costs.Gas, 0.50, 1e-9)
	approx(t, "NetProfit", plan.Costs.NetProfit, 1054.88, 0.01)
	approx(t, "ROI", plan.Costs.ROI, 0.5274, 0.0001)
}

func TestCalculateRejections(t *testing.T) {
	p := NewProfitCalculator(NewCostModel(0))

	tests := []struct {
		name                                string
		price, volume, liquidity, certainty float64
		want                                domain.RejectReason
	}{
		{"volume below floor", 0.65, 9999, 20000, 1.0, domain.ReasonVolumeOutOfRange},
		{"volume above cap", 0.65, 100001, 20000, 1.0, domain.ReasonVolumeOutOfRange},
		{"certainty too low", 0.65, 75000, 20000, 0.94, domain.ReasonCertaintyTooLow},
		{"position below floor", 0.65, 10000, 900, 1.0, domain.ReasonPositionBelowFloor},
		{"price at zero", 0.0, 75000, 20000, 1.0, domain.ReasonInvalidEntryPrice},
		{"price at one", 1.0, 75000, 20000, 1.0, domain.ReasonInvalidEntryPrice},
		{"roi too thin", 0.90, 75000, 20000, 1.0, domain.ReasonROIBelowThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, reason := p.Calculate(tt.price, 1.0, tt.volume, tt.liquidity, tt.certainty)
			if plan != nil {
				t.Fatalf("expected nil plan, got %+v", plan)
			}
			if reason != tt.want {
				t.Errorf("reason = %s, want %s", reason, tt.want)
			}
		})
	}
}

// Any accepted plan satisfies the position bounds and the minimum return.
func TestCalculateInvariants(t *testing.T) {
	p := NewProfitCalculator(NewCostModel(0))

	for _, price := range []float64{0.05, 0.2, 0.5, 0.65, 0.8} {
		for _, volume := range []float64{10000, 25000, 75000, 100000} {
			for _, liquidity := range []float64{500, 2000, 20000, 250000} {
				plan, reason := p.Calculate(price, 1.0, volume, liquidity, 1.0)
				if reason.Rejected() {
					continue
				}
				pos := plan.PositionSizeUSD
				maxPos := math.Min(MaxPositionUSD, math.Min(liquidity*0.10, volume*0.05))
				if pos < minPositionUSD || pos > maxPos+1e-9 {
					t.Errorf("price=%v vol=%v liq=%v: position %v outside [100, %v]", price, volume, liquidity, pos, maxPos)
				}
				if roi := plan.Costs.NetProfit / pos; roi < MinimumROI-1e-9 {
					t.Errorf("price=%v vol=%v liq=%v: roi %v below minimum", price, volume, liquidity, roi)
				}
			}
		}
	}
}

// Example position math: buying at 0.60 with $1000 yields 1666.67 shares and
// $666.67 gross on resolution.
func TestCalculateShareMath(t *testing.T) {
	p := NewProfitCalculator(NewCostModel(0))

	plan, reason := p.Calculate(0.60, 1.0, 20000, 10000, 1.0)
	if reason.Rejected() {
		t.Fatalf("unexpected rejection: %s", reason)
	}
	approx(t, "PositionSizeUSD", plan.PositionSizeUSD, 1000, 1e-9)
	approx(t, "Shares", plan.Shares, 1666.67, 0.01)
	approx(t, "GrossProfit", plan.GrossProfit, 666.67, 0.01)
}
