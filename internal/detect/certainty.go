// Package detect implements the certainty-arbitrage detection core: outcome
// certainty validation, cost and profit modelling, and opportunity detection
// over validated market snapshots.
package detect

import (
	"fmt"

	"polyedge/internal/domain"
)

// CertaintyValidator scores confidence that an externally reported event
// outcome is final and will not reverse. It is stateless; every call
// recomputes the assessment from its inputs.
type CertaintyValidator struct{}

// ValidateSportsOutcome judges whether a sports result is certain. Only a
// FINAL game with a score confirmed by an official source counts as certain.
//
// A final score without an official source yields a not-certain result that
// still carries a 0.8 score. That asymmetry is intentional and load-bearing
// for callers that inspect the score of rejected assessments.
func (CertaintyValidator) ValidateSportsOutcome(gameStatus, finalScore, officialSource string) domain.CertaintyAssessment {
	if gameStatus != "FINAL" {
		return domain.CertaintyAssessment{Reasoning: "game not finished"}
	}
	if finalScore == "" {
		return domain.CertaintyAssessment{Reasoning: "no final score available"}
	}
	if officialSource == "" {
		return domain.CertaintyAssessment{Score: 0.8, Reasoning: "no official source confirmation"}
	}
	return domain.CertaintyAssessment{
		IsCertain: true,
		Score:     1.0,
		Reasoning: fmt.Sprintf("official final score from %s", officialSource),
	}
}

// ValidateNewsOutcome judges whether an announced decision is certain. The
// announcement must exist, be irreversible, and come from a credible source;
// corroboration by multiple sources adds 0.1 to the score, capped at 1.0.
func (CertaintyValidator) ValidateNewsOutcome(announcementMade bool, sourceCredibility float64, multipleSources, reversible bool) domain.CertaintyAssessment {
	if !announcementMade {
		return domain.CertaintyAssessment{Reasoning: "no official announcement"}
	}
	if reversible {
		return domain.CertaintyAssessment{Score: 0.5, Reasoning: "decision could be reversed"}
	}
	if sourceCredibility < 0.9 {
		return domain.CertaintyAssessment{Score: 0.7, Reasoning: "source not credible enough"}
	}

	certainty := sourceCredibility
	if multipleSources {
		certainty = min(1.0, certainty+0.1)
	}

	reasoning := fmt.Sprintf("official announcement, credibility=%.2f", sourceCredibility)
	if multipleSources {
		reasoning += ", multiple sources confirm"
	}

	return domain.CertaintyAssessment{
		IsCertain: certainty >= 0.95,
		Score:     certainty,
		Reasoning: reasoning,
	}
}

// Validate dispatches on the evidence type. Unknown types are never certain.
func (v CertaintyValidator) Validate(info domain.CertaintyInfo) domain.CertaintyAssessment {
	switch info.Type {
	case domain.EventTypeSports:
		s := info.Sports
		if s == nil {
			s = &domain.SportsOutcome{}
		}
		return v.ValidateSportsOutcome(s.GameStatus, s.FinalScore, s.OfficialSource)
	case domain.EventTypeNews:
		n := info.News
		if n == nil {
			n = &domain.NewsOutcome{Reversible: true}
		}
		return v.ValidateNewsOutcome(n.AnnouncementMade, n.SourceCredibility, n.MultipleSources, n.Reversible)
	default:
		return domain.CertaintyAssessment{Reasoning: "unknown event type"}
	}
}
