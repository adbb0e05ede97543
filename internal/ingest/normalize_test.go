package ingest

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"polyedge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validRaw() RawMarket {
	return RawMarket{
		ID:            "514528",
		Question:      "Will the Lakers beat the Celtics?",
		ConditionID:   "0xabc123",
		Slug:          "lakers-celtics",
		Active:        true,
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.85","0.15"]`,
		ClobTokenIDs:  `["711","712"]`,
		Volume24h:     45000,
		Liquidity:     20000,
		EndDate:       "2026-03-02T00:00:00Z",
	}
}

func TestNormalizeValidMarket(t *testing.T) {
	n := NewNormalizer(false, testLogger())

	raw := validRaw()
	m, err := n.Normalize(&raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if m.ID != "514528" || m.ConditionID != "0xabc123" {
		t.Errorf("identity fields not carried over: %+v", m)
	}
	if len(m.Tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(m.Tokens))
	}
	if m.Tokens[0].Outcome != "Yes" || m.Tokens[0].Price != 0.85 || m.Tokens[0].TokenID != "711" {
		t.Errorf("first token = %+v", m.Tokens[0])
	}
	if m.Volume24h != 45000 || m.Liquidity != 20000 {
		t.Errorf("volume/liquidity = %v/%v", m.Volume24h, m.Liquidity)
	}
	if m.EndDate.IsZero() {
		t.Error("end date not parsed")
	}
}

func TestNormalizeRejections(t *testing.T) {
	n := NewNormalizer(false, testLogger())

	tests := []struct {
		name    string
		mutate  func(*RawMarket)
		wantErr error
	}{
		{"missing volume", func(r *RawMarket) { r.Volume24h = 0 }, domain.ErrMissingVolume},
		{"missing liquidity", func(r *RawMarket) { r.Liquidity = 0 }, domain.ErrMissingLiquidity},
		{"no outcomes", func(r *RawMarket) { r.Outcomes = "" }, domain.ErrNoTokens},
		{"price count mismatch", func(r *RawMarket) { r.OutcomePrices = `["0.85"]` }, domain.ErrNoTokens},
		{"bad deadline", func(r *RawMarket) { r.EndDate = "tomorrow" }, domain.ErrBadDeadline},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := validRaw()
			tc.mutate(&raw)
			_, err := n.Normalize(&raw)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Normalize err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestNormalizeDegradedSubstitutesFallbacks(t *testing.T) {
	n := NewNormalizer(true, testLogger())

	raw := validRaw()
	raw.Volume24h = 0
	raw.Liquidity = 0

	m, err := n.Normalize(&raw)
	if err != nil {
		t.Fatalf("Normalize degraded: %v", err)
	}
	if m.Volume24h != degradedVolumeUSD {
		t.Errorf("volume = %v, want fallback %v", m.Volume24h, float64(degradedVolumeUSD))
	}
	if m.Liquidity != degradedLiquidityUSD {
		t.Errorf("liquidity = %v, want fallback %v", m.Liquidity, float64(degradedLiquidityUSD))
	}
}

func TestNormalizeDegradedStillRejectsShape(t *testing.T) {
	n := NewNormalizer(true, testLogger())

	raw := validRaw()
	raw.Outcomes = ""
	if _, err := n.Normalize(&raw); !errors.Is(err, domain.ErrNoTokens) {
		t.Errorf("degraded mode accepted tokenless market: %v", err)
	}

	raw = validRaw()
	raw.EndDate = "not-a-date"
	if _, err := n.Normalize(&raw); !errors.Is(err, domain.ErrBadDeadline) {
		t.Errorf("degraded mode accepted bad deadline: %v", err)
	}
}

func TestNormalizeZeroEndDateAllowed(t *testing.T) {
	n := NewNormalizer(false, testLogger())

	raw := validRaw()
	raw.EndDate = ""
	m, err := n.Normalize(&raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !m.EndDate.IsZero() {
		t.Errorf("end date = %v, want zero", m.EndDate)
	}
}

func TestFlexFieldDecoding(t *testing.T) {
	var f flexFloat
	if err := f.UnmarshalJSON([]byte(`"45000.5"`)); err != nil || float64(f) != 45000.5 {
		t.Errorf("string float: %v %v", f, err)
	}
	if err := f.UnmarshalJSON([]byte(`12.5`)); err != nil || float64(f) != 12.5 {
		t.Errorf("number float: %v %v", f, err)
	}
	if err := f.UnmarshalJSON([]byte(`""`)); err != nil || float64(f) != 0 {
		t.Errorf("empty string float: %v %v", f, err)
	}

	var b flexBool
	if err := b.UnmarshalJSON([]byte(`"true"`)); err != nil || !bool(b) {
		t.Errorf("string bool: %v %v", b, err)
	}
	if err := b.UnmarshalJSON([]byte(`false`)); err != nil || bool(b) {
		t.Errorf("native bool: %v %v", b, err)
	}
}
