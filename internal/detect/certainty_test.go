package detect

import (
	"math"
	"testing"

	"polyedge/internal/domain"
)

func TestValidateSportsOutcome(t *testing.T) {
	var v CertaintyValidator

	tests := []struct {
		name        string
		status      string
		score       string
		source      string
		wantCertain bool
		wantScore   float64
	}{
		{"in progress", "IN_PROGRESS", "101-99", "ESPN", false, 0.0},
		{"final without score", "FINAL", "", "ESPN", false, 0.0},
		{"final without source keeps partial score", "FINAL", "108-95", "", false, 0.8},
		{"final official", "FINAL", "108-95", "ESPN Official API", true, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.ValidateSportsOutcome(tt.status, tt.score, tt.source)
			if got.IsCertain != tt.wantCertain {
				t.Errorf("IsCertain = %v, want %v", got.IsCertain, tt.wantCertain)
			}
			if math.Abs(got.Score-tt.wantScore) > 1e-9 {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Reasoning == "" {
				t.Error("expected non-empty reasoning")
			}
		})
	}
}

func TestValidateNewsOutcome(t *testing.T) {
	var v CertaintyValidator

	tests := []struct {
		name        string
		announced   bool
		credibility float64
		multiple    bool
		reversible  bool
		wantCertain bool
		wantScore   float64
	}{
		{"no announcement", false, 1.0, true, false, false, 0.0},
		{"reversible decision", true, 1.0, true, true, false, 0.5},
		{"low credibility", true, 0.85, true, false, false, 0.7},
		{"credible single source below cutoff", true, 0.92, false, false, false, 0.92},
		{"credible single source at cutoff", true, 0.95, false, false, true, 0.95},
		{"multiple sources boost", true, 0.9, true, false, true, 1.0},
		{"boost capped at one", true, 0.99, true, false, true, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.ValidateNewsOutcome(tt.announced, tt.credibility, tt.multiple, tt.reversible)
			if got.IsCertain != tt.wantCertain {
				t.Errorf("IsCertain = %v, want %v", got.IsCertain, tt.wantCertain)
			}
			if math.Abs(got.Score-tt.wantScore) > 1e-9 {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
		})
	}
}

func TestValidateUnknownType(t *testing.T) {
	var v CertaintyValidator

	got := v.Validate(domain.CertaintyInfo{Type: "economic"})
	if got.IsCertain || got.Score != 0 {
		t.Errorf("unknown type must never be certain, got %+v", got)
	}
	if got.Reasoning != "unknown event type" {
		t.Errorf("Reasoning = %q", got.Reasoning)
	}
}

func TestValidateNilEvidence(t *testing.T) {
	var v CertaintyValidator

	if got := v.Validate(domain.CertaintyInfo{Type: domain.EventTypeSports}); got.IsCertain {
		t.Errorf("sports with nil evidence must not be certain, got %+v", got)
	}
	if got := v.Validate(domain.CertaintyInfo{Type: domain.EventTypeNews}); got.IsCertain {
		t.Errorf("news with nil evidence must not be certain, got %+v", got)
	}
}
