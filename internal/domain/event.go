package domain

import "time"

// EventType classifies the real-world event backing a certainty claim.
type EventType string

const (
	EventTypeSports EventType = "sports"
	EventTypeNews   EventType = "news"
)

// SportsOutcome carries the facts needed to judge whether a sports result is
// final. FinalScore is empty when no score is available.
type SportsOutcome struct {
	GameStatus     string // e.g. "FINAL", "IN_PROGRESS"
	FinalScore     string // e.g. "108-95"; empty when unknown
	OfficialSource string // e.g. "ESPN Official API"; empty when unconfirmed
}

// NewsOutcome carries the facts needed to judge whether an announcement is
// final and irreversible.
type NewsOutcome struct {
	AnnouncementMade  bool
	SourceCredibility float64 // 0..1
	MultipleSources   bool
	Reversible        bool
}

// CertaintyInfo is the tagged union of per-type certainty evidence. Exactly
// one of Sports/News is set, matching Type.
type CertaintyInfo struct {
	Type   EventType
	Sports *SportsOutcome
	News   *NewsOutcome
}

// CertaintyAssessment is the result of validating a certainty claim. It is a
// value object with no identity, recomputed on every call.
type CertaintyAssessment struct {
	IsCertain bool
	Score     float64 // 0..1
	Reasoning string
}

// DetectedEvent is a real-world event reported by an external source,
// candidate input for market matching.
type DetectedEvent struct {
	ID                string
	Type              EventType
	Description       string // free text, e.g. "Lakers vs Celtics NBA game final score"
	Outcome           string // e.g. "Lakers Won", "Bill Passed"
	Timestamp         time.Time
	Source            string
	SourceCredibility float64 // 0..1
	Reversible        bool
	Metadata          map[string]string
}

// CertaintyInfo converts the event into the evidence structure consumed by
// the opportunity detector. Sports events reported here are assumed final by
// the source; news events carry the source's own credibility.
func (e DetectedEvent) CertaintyInfo() CertaintyInfo {
	switch e.Type {
	case EventTypeSports:
		return CertaintyInfo{
			Type: EventTypeSports,
			Sports: &SportsOutcome{
				GameStatus:     "FINAL",
				FinalScore:     e.Metadata["score"],
				OfficialSource: e.Source,
			},
		}
	case EventTypeNews:
		return CertaintyInfo{
			Type: EventTypeNews,
			News: &NewsOutcome{
				AnnouncementMade:  true,
				SourceCredibility: e.SourceCredibility,
				MultipleSources:   e.Metadata["multiple_sources"] == "true",
				Reversible:        e.Reversible,
			},
		}
	default:
		return CertaintyInfo{Type: e.Type}
	}
}
