package volume

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"polyedge/internal/domain"
)

// Defaults for the spike engine configuration.
const (
	DefaultMinSpikeRatio      = 3.0
	DefaultMinVolumeUSD       = 50000
	DefaultMaxHoursToDeadline = 72
	DefaultHistoryWindow      = 20
	DefaultMinSnapshots       = 5
)

// minSignalStrength is the composite score below which no spike is emitted.
const minSignalStrength = 50

// basePositionUSD anchors spike position sizing: $1k at the minimum signal,
// scaling linearly with signal strength.
const basePositionUSD = 1000

// Config holds the spike detection thresholds. Zero values select the
// defaults.
type Config struct {
	MinSpikeRatio      float64
	MinVolumeUSD       float64
	MaxHoursToDeadline float64
	HistoryWindow      int
	MinSnapshots       int
}

func (c *Config) setDefaults() {
	if c.MinSpikeRatio <= 0 {
		c.MinSpikeRatio = DefaultMinSpikeRatio
	}
	if c.MinVolumeUSD <= 0 {
		c.MinVolumeUSD = DefaultMinVolumeUSD
	}
	if c.MaxHoursToDeadline <= 0 {
		c.MaxHoursToDeadline = DefaultMaxHoursToDeadline
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.MinSnapshots <= 0 {
		c.MinSnapshots = DefaultMinSnapshots
	}
}

// SpikeEngine owns one History per observed market and scans refreshed market
// snapshots for volume anomalies near resolution deadlines.
//
// The history map grows with the set of distinct market IDs ever observed and
// is never pruned: a market that disappears from the feed keeps its history
// for the lifetime of the engine. Long-lived deployments trade that memory
// for the ability to score a market the moment it reappears.
//
// All methods are safe for concurrent use; a single instance lock serializes
// history mutation, scans, and persistence.
type SpikeEngine struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	histories map[string]*History

	now func() time.Time
}

// NewSpikeEngine creates a SpikeEngine with the given thresholds.
func NewSpikeEngine(cfg Config, logger *slog.Logger) *SpikeEngine {
	cfg.setDefaults()
	return &SpikeEngine{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "spike_engine")),
		histories: make(map[string]*History),
		now:       time.Now,
	}
}

// marketKey identifies a market in the history map.
func marketKey(m domain.Market) string {
	if m.ID != "" {
		return m.ID
	}
	return m.ConditionID
}

// UpdateHistory appends one snapshot per market to that market's history,
// creating the history on first sight. Calling it twice with the same list
// appends twice: observations count insertions, not value changes.
func (e *SpikeEngine) UpdateHistory(markets []domain.Market) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateHistoryLocked(markets)
}

func (e *SpikeEngine) updateHistoryLocked(markets []domain.Market) {
	now := e.now()
	for _, m := range markets {
		if len(m.Tokens) == 0 {
			continue
		}
		key := marketKey(m)
		h, ok := e.histories[key]
		if !ok {
			h = NewHistory(key, e.cfg.HistoryWindow)
			e.histories[key] = h
		}
		h.Append(domain.VolumeSnapshot{
			Timestamp: now,
			Volume24h: m.Volume24h,
			Price:     m.Tokens[0].Price,
			Liquidity: m.Liquidity,
		})
	}
}

// DetectSpikes records fresh snapshots for every market, then scans for
// volume spikes. Results are sorted by signal strength descending. Markets
// that fail a filter are skipped with a debug-logged reason code.
func (e *SpikeEngine) DetectSpikes(markets []domain.Market) []domain.VolumeSpike {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.updateHistoryLocked(markets)
	now := e.now()

	var spikes []domain.VolumeSpike
	for _, m := range markets {
		spike, reason := e.scanMarket(m, now)
		if reason.Rejected() {
			e.logger.Debug("market skipped",
				slog.String("market", m.Display()),
				slog.String("reason", string(reason)),
			)
			continue
		}
		spikes = append(spikes, *spike)
	}

	sort.Slice(spikes, func(i, j int) bool {
		return spikes[i].SignalStrength > spikes[j].SignalStrength
	})
	return spikes
}

func (e *SpikeEngine) scanMarket(m domain.Market, now time.Time) (*domain.VolumeSpike, domain.RejectReason) {
	h, ok := e.histories[marketKey(m)]
	if !ok || !h.Sufficient(e.cfg.MinSnapshots) {
		return nil, domain.ReasonInsufficientHistory
	}

	ratio := h.SpikeRatio()
	if ratio < e.cfg.MinSpikeRatio {
		return nil, domain.ReasonSignalBelowThreshold
	}

	current := h.CurrentVolume()
	if current < e.cfg.MinVolumeUSD {
		return nil, domain.ReasonVolumeOutOfRange
	}

	hours, proximity := e.deadlineProximity(m.EndDate, now)
	if hours > e.cfg.MaxHoursToDeadline {
		return nil, domain.ReasonDeadlineTooFar
	}

	priceChange := h.PriceChange(now, time.Hour)
	strength := signalStrength(ratio, priceChange, proximity)
	if strength < minSignalStrength {
		return nil, domain.ReasonSignalBelowThreshold
	}

	if len(m.Tokens) == 0 {
		return nil, domain.ReasonOutcomeTokenNotFound
	}
	token := m.Tokens[0]

	position := basePositionUSD * (strength / minSignalStrength)

	// ROI framing is asymmetric around 0.5: below it, upside assumes
	// resolution to 1.0; above it, the framing inverts. Kept verbatim
	// pending validation against resolved-market outcomes.
	var expectedROI float64
	if token.Price < 0.5 {
		expectedROI = (1 - token.Price) / token.Price * 100
	} else {
		expectedROI = token.Price / (1 - token.Price) * 100
	}

	direction := "up"
	if priceChange < 0 {
		direction = "down"
	}
	reasoning := fmt.Sprintf(
		"volume spike %.1fx ($%.0f vs $%.0f avg); price %s %.1f%% in 1h; deadline in %.1fh (proximity %.0f/100); signal %.0f/100",
		ratio, current, h.AvgVolume(), direction, math.Abs(priceChange), hours, proximity, strength,
	)

	return &domain.VolumeSpike{
		ID:                     uuid.NewString(),
		MarketID:               marketKey(m),
		Slug:                   m.Display(),
		TokenID:                token.TokenID,
		Outcome:                token.Outcome,
		CurrentVolume24h:       current,
		AvgVolume24h:           h.AvgVolume(),
		SpikeRatio:             ratio,
		CurrentPrice:           token.Price,
		PriceChange1h:          priceChange,
		HoursToDeadline:        hours,
		DeadlineProximity:      proximity,
		SignalStrength:         strength,
		Confidence:             math.Min(100, float64(h.Len())*5),
		RecommendedPositionUSD: position,
		MaxLossUSD:             position,
		ExpectedROIPercent:     expectedROI,
		DetectedAt:             now,
		Reasoning:              reasoning,
	}, domain.ReasonNone
}

// deadlineProximity returns hours until the deadline and a 0-100 proximity
// score: 100 at or past the deadline, 0 at the configured horizon, linear in
// between. A market without a deadline is treated as infinitely far.
func (e *SpikeEngine) deadlineProximity(endDate, now time.Time) (hours, score float64) {
	if endDate.IsZero() {
		return math.Inf(1), 0
	}
	hours = endDate.Sub(now).Hours()
	switch {
	case hours <= 0:
		score = 100
	case hours >= e.cfg.MaxHoursToDeadline:
		score = 0
	default:
		score = 100 * (1 - hours/e.cfg.MaxHoursToDeadline)
	}
	return hours, score
}

// signalStrength combines spike magnitude (up to 40 points), absolute price
// movement (up to 30), and deadline proximity (up to 30) into a 0-100 score.
func signalStrength(spikeRatio, priceChange1h, proximity float64) float64 {
	volumeScore := math.Min(40, (spikeRatio-1)*8)
	priceScore := math.Min(30, math.Abs(priceChange1h)*3)
	deadlineScore := proximity * 0.3
	return math.Max(0, math.Min(100, volumeScore+priceScore+deadlineScore))
}

// TrackedMarkets returns the number of distinct market IDs ever observed.
func (e *SpikeEngine) TrackedMarkets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.histories)
}

// HistoryLen returns the number of retained snapshots for a market, 0 when
// the market has never been observed.
func (e *SpikeEngine) HistoryLen(marketID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.histories[marketID]
	if !ok {
		return 0
	}
	return h.Len()
}
