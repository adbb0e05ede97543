package notify

import (
	"fmt"
	"strings"

	"polyedge/internal/domain"
)

// FormatOpportunity renders a certainty opportunity as a multi-line alert
// body. Plain text with markdown bold-compatible emphasis left to the sender.
func FormatOpportunity(opp domain.Opportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market: %s\n", opp.Slug)
	fmt.Fprintf(&b, "Outcome: %s @ %.3f -> %.2f\n", opp.Outcome, opp.EntryPrice, opp.TargetPrice)
	fmt.Fprintf(&b, "Position: $%.2f (%.2f shares)\n", opp.PositionSizeUSD, opp.Shares)
	fmt.Fprintf(&b, "Net profit: $%.2f (ROI %.1f%%)\n", opp.NetProfit, opp.ROIPercent)
	fmt.Fprintf(&b, "Certainty: %.0f%%, latency %.1fs\n", opp.CertaintyScore*100, opp.LatencySeconds)
	fmt.Fprintf(&b, "Why: %s", opp.Reasoning)
	return b.String()
}

// FormatSpike renders a volume spike as a multi-line alert body.
func FormatSpike(spike domain.VolumeSpike) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market: %s\n", spike.Slug)
	fmt.Fprintf(&b, "Volume: $%.0f vs avg $%.0f (%.1fx)\n",
		spike.CurrentVolume24h, spike.AvgVolume24h, spike.SpikeRatio)
	fmt.Fprintf(&b, "Price: %.3f (%+.1f%% 1h)\n", spike.CurrentPrice, spike.PriceChange1h)
	fmt.Fprintf(&b, "Deadline: %.1fh away (proximity %.0f)\n",
		spike.HoursToDeadline, spike.DeadlineProximity)
	fmt.Fprintf(&b, "Signal: %.0f/100, confidence %.0f%%\n", spike.SignalStrength, spike.Confidence)
	fmt.Fprintf(&b, "Suggested: $%.0f, max loss $%.0f, est ROI %.0f%%",
		spike.RecommendedPositionUSD, spike.MaxLossUSD, spike.ExpectedROIPercent)
	return b.String()
}

// FormatPaperTrade renders a simulated trade event.
func FormatPaperTrade(trade domain.PaperTrade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market: %s (%s)\n", trade.Slug, trade.Status)
	fmt.Fprintf(&b, "Entry: %s @ %.3f, $%.2f\n", trade.Outcome, trade.EntryPrice, trade.PositionSize)
	if trade.ActualProfit != nil {
		fmt.Fprintf(&b, "P&L: $%.2f", *trade.ActualProfit)
	} else {
		fmt.Fprintf(&b, "Expected: $%.2f (ROI %.1f%%)", trade.ExpectedProfit, trade.ROIPercent)
	}
	return b.String()
}

// FormatSummary renders a paper session recap.
func FormatSummary(s domain.PaperSessionSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Balance: $%.2f (started $%.2f)\n", s.CurrentBalance, s.StartingBalance)
	fmt.Fprintf(&b, "Trades: %d total, %d open\n", s.TotalTrades, s.OpenPositions)
	fmt.Fprintf(&b, "Record: %dW/%dL (%.0f%% win rate)\n", s.Wins, s.Losses, s.WinRate)
	fmt.Fprintf(&b, "P&L: $%.2f (%+.1f%%)", s.TotalPnL, s.ReturnPercent)
	return b.String()
}
