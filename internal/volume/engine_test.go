package volume

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"polyedge/internal/domain"
)

func testEngine(cfg Config) *SpikeEngine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSpikeEngine(cfg, logger)
}

func spikeMarket(id string, volume, price float64, endDate time.Time) domain.Market {
	return domain.Market{
		ID:        id,
		Slug:      "market-" + id,
		Volume24h: volume,
		Liquidity: 25000,
		EndDate:   endDate,
		Tokens: []domain.OutcomeToken{
			{TokenID: "tok-" + id, Outcome: "Yes", Price: price},
		},
	}
}

// Drives the engine through warmup cycles with a controllable clock.
func warmup(e *SpikeEngine, id string, endDate time.Time, base time.Time, prices []float64, volume float64) time.Time {
	now := base
	for _, p := range prices {
		now = now.Add(5 * time.Minute)
		clock := now
		e.now = func() time.Time { return clock }
		e.UpdateHistory([]domain.Market{spikeMarket(id, volume, p, endDate)})
	}
	return now
}

func TestDetectSpikesScenario(t *testing.T) {
	e := testEngine(Config{MinSpikeRatio: 3.0, MinVolumeUSD: 50000, MaxHoursToDeadline: 72})
	base := time.Now()
	endDate := base.Add(90 * time.Minute)

	// Five flat cycles, then a sixth with 6x volume and a price jump.
	now := warmup(e, "m1", endDate, base, []float64{0.50, 0.52, 0.54, 0.56, 0.58}, 50000)
	now = now.Add(5 * time.Minute)
	e.now = func() time.Time { return now }

	spikes := e.DetectSpikes([]domain.Market{spikeMarket("m1", 300000, 0.60, endDate)})
	if len(spikes) != 1 {
		t.Fatalf("len(spikes) = %d, want 1", len(spikes))
	}
	s := spikes[0]

	if math.Abs(s.SpikeRatio-3.2727) > 0.001 {
		t.Errorf("SpikeRatio = %v, want 3.2727", s.SpikeRatio)
	}
	if math.Abs(s.PriceChange1h-20.0) > 1e-6 {
		t.Errorf("PriceChange1h = %v, want 20.0", s.PriceChange1h)
	}
	if s.SignalStrength < minSignalStrength {
		t.Errorf("SignalStrength = %v, want >= %d", s.SignalStrength, minSignalStrength)
	}
	if s.HoursToDeadline <= 0 || s.HoursToDeadline > 1.5 {
		t.Errorf("HoursToDeadline = %v, want about 1.1", s.HoursToDeadline)
	}
	wantPosition := basePositionUSD * (s.SignalStrength / minSignalStrength)
	if math.Abs(s.RecommendedPositionUSD-wantPosition) > 1e-9 {
		t.Errorf("RecommendedPositionUSD = %v, want %v", s.RecommendedPositionUSD, wantPosition)
	}
	if s.MaxLossUSD != s.RecommendedPositionUSD {
		t.Errorf("MaxLossUSD = %v, want %v", s.MaxLossUSD, s.RecommendedPositionUSD)
	}
	// 0.60 entry sits above 0.5, so the inverted framing applies.
	if math.Abs(s.ExpectedROIPercent-150.0) > 0.001 {
		t.Errorf("ExpectedROIPercent = %v, want 150.0", s.ExpectedROIPercent)
	}
	if s.Reasoning == "" || s.ID == "" {
		t.Error("expected reasoning and ID to be set")
	}
}

func TestDetectSpikesAsymmetricROI(t *testing.T) {
	e := testEngine(Config{MinSpikeRatio: 3.0, MinVolumeUSD: 50000, MaxHoursToDeadline: 72})
	base := time.Now()
	endDate := base.Add(90 * time.Minute)

	now := warmup(e, "m1", endDate, base, []float64{0.40, 0.38, 0.36, 0.34, 0.32}, 50000)
	now = now.Add(5 * time.Minute)
	e.now = func() time.Time { return now }

	spikes := e.DetectSpikes([]domain.Market{spikeMarket("m1", 300000, 0.30, endDate)})
	if len(spikes) != 1 {
		t.Fatalf("len(spikes) = %d, want 1", len(spikes))
	}
	// 0.30 entry: (1-0.30)/0.30 = 233.3% upside framing.
	if got := spikes[0].ExpectedROIPercent; math.Abs(got-233.333) > 0.01 {
		t.Errorf("ExpectedROIPercent = %v, want 233.333", got)
	}
}

func TestDetectSpikesInsufficientHistory(t *testing.T) {
	e := testEngine(Config{})
	endDate := time.Now().Add(time.Hour)

	// Three updates plus the one inside DetectSpikes: four snapshots, below
	// the floor of five.
	m := spikeMarket("m1", 300000, 0.5, endDate)
	for i := 0; i < 3; i++ {
		e.UpdateHistory([]domain.Market{m})
	}
	if spikes := e.DetectSpikes([]domain.Market{m}); len(spikes) != 0 {
		t.Errorf("expected no spikes, got %d", len(spikes))
	}
	if got := e.HistoryLen("m1"); got != 4 {
		t.Errorf("HistoryLen = %d, want 4", got)
	}
}

func TestDetectSpikesFlatSeries(t *testing.T) {
	e := testEngine(Config{})
	endDate := time.Now().Add(time.Hour)

	m := spikeMarket("m1", 60000, 0.5, endDate)
	for i := 0; i < 6; i++ {
		e.UpdateHistory([]domain.Market{m})
	}
	if spikes := e.DetectSpikes([]domain.Market{m}); len(spikes) != 0 {
		t.Errorf("flat volume series produced %d spikes", len(spikes))
	}
}

func TestDetectSpikesFilters(t *testing.T) {
	base := time.Now()

	tests := []struct {
		name    string
		volume  float64 // final-cycle volume
		endDate time.Time
		minVol  float64
	}{
		{"below absolute volume floor", 40000, base.Add(time.Hour), 50000},
		{"deadline too far", 300000, base.Add(100 * time.Hour), 50000},
		{"no deadline", 300000, time.Time{}, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine(Config{MinSpikeRatio: 3.0, MinVolumeUSD: tt.minVol, MaxHoursToDeadline: 72})
			now := warmup(e, "m1", tt.endDate, base, []float64{0.5, 0.5, 0.5, 0.5, 0.5}, 5000)
			now = now.Add(5 * time.Minute)
			e.now = func() time.Time { return now }

			spikes := e.DetectSpikes([]domain.Market{spikeMarket("m1", tt.volume, 0.5, tt.endDate)})
			if len(spikes) != 0 {
				t.Errorf("expected no spikes, got %d", len(spikes))
			}
		})
	}
}

func TestDetectSpikesWeakSignal(t *testing.T) {
	// High ratio but flat price and a deadline near the horizon: the
	// composite score stays below 50.
	e := testEngine(Config{MinSpikeRatio: 3.0, MinVolumeUSD: 50000, MaxHoursToDeadline: 72})
	base := time.Now()
	endDate := base.Add(71 * time.Hour)

	now := warmup(e, "m1", endDate, base, []float64{0.5, 0.5, 0.5, 0.5, 0.5}, 50000)
	now = now.Add(5 * time.Minute)
	e.now = func() time.Time { return now }

	spikes := e.DetectSpikes([]domain.Market{spikeMarket("m1", 300000, 0.5, endDate)})
	if len(spikes) != 0 {
		t.Errorf("expected weak signal to be filtered, got %d spikes", len(spikes))
	}
}

func TestDetectSpikesSorted(t *testing.T) {
	e := testEngine(Config{MinSpikeRatio: 3.0, MinVolumeUSD: 50000, MaxHoursToDeadline: 72})
	base := time.Now()
	endDate := base.Add(90 * time.Minute)

	now := base
	for i, p := range []float64{0.50, 0.52, 0.54, 0.56, 0.58} {
		now = base.Add(time.Duration(i+1) * 5 * time.Minute)
		clock := now
		e.now = func() time.Time { return clock }
		e.UpdateHistory([]domain.Market{
			spikeMarket("a", 50000, p, endDate),
			spikeMarket("b", 50000, p, endDate),
		})
	}
	now = now.Add(5 * time.Minute)
	e.now = func() time.Time { return now }

	spikes := e.DetectSpikes([]domain.Market{
		spikeMarket("a", 300000, 0.60, endDate),
		spikeMarket("b", 600000, 0.60, endDate),
	})
	if len(spikes) != 2 {
		t.Fatalf("len(spikes) = %d, want 2", len(spikes))
	}
	if spikes[0].SignalStrength < spikes[1].SignalStrength {
		t.Error("spikes not sorted by signal strength descending")
	}
	if spikes[0].MarketID != "b" {
		t.Errorf("strongest spike = %s, want b", spikes[0].MarketID)
	}
}

// Two identical updates with no elapsed time still append two snapshots:
// observations count insertions, not value changes.
func TestUpdateHistoryInsertionSemantics(t *testing.T) {
	e := testEngine(Config{})
	m := spikeMarket("m1", 50000, 0.5, time.Now().Add(time.Hour))

	e.UpdateHistory([]domain.Market{m})
	e.UpdateHistory([]domain.Market{m})

	if got := e.HistoryLen("m1"); got != 2 {
		t.Errorf("HistoryLen = %d, want 2", got)
	}
}

// Histories are never pruned, even when a market stops appearing in scans.
func TestEngineRetainsDepartedMarkets(t *testing.T) {
	e := testEngine(Config{})
	end := time.Now().Add(time.Hour)

	e.UpdateHistory([]domain.Market{spikeMarket("a", 50000, 0.5, end)})
	e.UpdateHistory([]domain.Market{spikeMarket("b", 50000, 0.5, end)})
	e.UpdateHistory([]domain.Market{spikeMarket("b", 50000, 0.5, end)})

	if got := e.TrackedMarkets(); got != 2 {
		t.Errorf("TrackedMarkets = %d, want 2", got)
	}
	if got := e.HistoryLen("a"); got != 1 {
		t.Errorf("HistoryLen(a) = %d, want 1", got)
	}
}
