package domain

// MarketMatch maps a detected event to a candidate market and the market
// outcome that corresponds to the event outcome.
type MarketMatch struct {
	Event          DetectedEvent
	Market         Market
	Confidence     float64 // matched keywords / event keywords, in (0.5, 1]
	MatchedOutcome string
	Reasoning      string
}
