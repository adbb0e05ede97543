package detect

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"polyedge/internal/domain"
)

func testDetector() *OpportunityDetector {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewOpportunityDetector(NewProfitCalculator(NewCostModel(0)), logger)
	return d
}

func sportsCertainty() domain.CertaintyInfo {
	return domain.CertaintyInfo{
		Type: domain.EventTypeSports,
		Sports: &domain.SportsOutcome{
			GameStatus:     "FINAL",
			FinalScore:     "108-95",
			OfficialSource: "ESPN Official API",
		},
	}
}

func testMarket(yesPrice float64) domain.Market {
	return domain.Market{
		ID:          "12345",
		Slug:        "will-team-a-win-game",
		ConditionID: "0xabc123",
		Volume24h:   75000,
		Liquidity:   20000,
		EndDate:     time.Now().Add(24 * time.Hour),
		Tokens: []domain.OutcomeToken{
			{TokenID: "token_yes", Outcome: "Yes", Price: yesPrice},
			{TokenID: "token_no", Outcome: "No", Price: 1 - yesPrice},
		},
	}
}

func TestDetectAccepted(t *testing.T) {
	d := testDetector()
	eventTime := time.Now().Add(-30 * time.Second)

	opp, reason := d.Detect(testMarket(0.65), "Yes", eventTime, sportsCertainty())
	if reason.Rejected() {
		t.Fatalf("unexpected rejection: %s", reason)
	}

	approx(t, "PositionSizeUSD", opp.PositionSizeUSD, 2000, 1e-9)
	approx(t, "NetProfit", opp.NetProfit, 1054.88, 0.01)
	approx(t, "ROIPercent", opp.ROIPercent, 52.74, 0.01)
	approx(t, "CertaintyScore", opp.CertaintyScore, 1.0, 1e-9)
	if opp.TokenID != "token_yes" {
		t.Errorf("TokenID = %q", opp.TokenID)
	}
	if opp.LatencySeconds < 29 {
		t.Errorf("LatencySeconds = %v, want >= 29", opp.LatencySeconds)
	}
	if opp.ID == "" {
		t.Error("expected opportunity ID")
	}

	if got := len(d.History()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
}

func TestDetectCaseInsensitiveOutcome(t *testing.T) {
	d := testDetector()

	opp, reason := d.Detect(testMarket(0.65), "yes", time.Now(), sportsCertainty())
	if reason.Rejected() {
		t.Fatalf("unexpected rejection: %s", reason)
	}
	if opp.TokenID != "token_yes" {
		t.Errorf("TokenID = %q", opp.TokenID)
	}
}

func TestDetectRejections(t *testing.T) {
	inProgress := domain.CertaintyInfo{
		Type:   domain.EventTypeSports,
		Sports: &domain.SportsOutcome{GameStatus: "IN_PROGRESS"},
	}

	tests := []struct {
		name    string
		market  domain.Market
		outcome string
		info    domain.CertaintyInfo
		want    domain.RejectReason
	}{
		{"unknown outcome", testMarket(0.65), "Maybe", sportsCertainty(), domain.ReasonOutcomeTokenNotFound},
		{"already priced", testMarket(0.97), "Yes", sportsCertainty(), domain.ReasonAlreadyPriced},
		{"game in progress", testMarket(0.65), "Yes", inProgress, domain.ReasonCertaintyTooLow},
		{"unknown event type", testMarket(0.65), "Yes", domain.CertaintyInfo{Type: "economic"}, domain.ReasonCertaintyTooLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDetector()
			opp, reason := d.Detect(tt.market, tt.outcome, time.Now(), tt.info)
			if opp != nil {
				t.Fatalf("expected nil opportunity, got %+v", opp)
			}
			if reason != tt.want {
				t.Errorf("reason = %s, want %s", reason, tt.want)
			}
			if len(d.History()) != 0 {
				t.Error("rejection must not append to history")
			}
		})
	}
}

// Price >= 0.95 means the market already adjusted, regardless of certainty or
// volume.
func TestDetectAlreadyPricedWinsOverEverything(t *testing.T) {
	d := testDetector()

	m := testMarket(0.95)
	m.Volume24h = 75000
	if _, reason := d.Detect(m, "Yes", time.Now(), sportsCertainty()); reason != domain.ReasonAlreadyPriced {
		t.Errorf("reason = %s, want %s", reason, domain.ReasonAlreadyPriced)
	}
}

func TestBestOpportunities(t *testing.T) {
	d := testDetector()
	eventTime := time.Now()

	// Two accepted opportunities at different entry prices, hence different
	// ROI.
	if _, reason := d.Detect(testMarket(0.65), "Yes", eventTime, sportsCertainty()); reason.Rejected() {
		t.Fatalf("first detect rejected: %s", reason)
	}
	if _, reason := d.Detect(testMarket(0.40), "Yes", eventTime, sportsCertainty()); reason.Rejected() {
		t.Fatalf("second detect rejected: %s", reason)
	}

	best := d.BestOpportunities(20)
	if len(best) != 2 {
		t.Fatalf("len(best) = %d, want 2", len(best))
	}
	if best[0].ROIPercent < best[1].ROIPercent {
		t.Error("best opportunities not sorted by ROI descending")
	}
	approx(t, "best entry", best[0].EntryPrice, 0.40, 1e-9)

	// A filter above both ROIs returns nothing.
	if got := d.BestOpportunities(1000); len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}
