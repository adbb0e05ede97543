package domain

import (
	"strings"
	"time"
)

// OutcomeToken is one tradeable outcome of a market, with its last known
// price in (0,1).
type OutcomeToken struct {
	TokenID string
	Outcome string // e.g. "Yes", "No", "Team A"
	Price   float64
}

// Market is a validated snapshot of a prediction market as produced by the
// ingestion layer. The detection core treats it as immutable: one Market
// value corresponds to one fetch, and no component mutates it after
// normalization.
type Market struct {
	ID          string
	ConditionID string
	Slug        string
	Question    string
	Tokens      []OutcomeToken
	Volume24h   float64   // USD traded in the last 24h
	Liquidity   float64   // USD available
	EndDate     time.Time // resolution deadline; zero when the market has none
}

// Token returns the outcome token whose label equals outcome
// (case-insensitive, exact match only) and whether it was found.
func (m Market) Token(outcome string) (OutcomeToken, bool) {
	for _, t := range m.Tokens {
		if strings.EqualFold(t.Outcome, outcome) {
			return t, true
		}
	}
	return OutcomeToken{}, false
}

// Display returns the market's slug, falling back to its question when the
// slug is empty.
func (m Market) Display() string {
	if m.Slug != "" {
		return m.Slug
	}
	return m.Question
}
