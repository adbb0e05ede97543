package ingest

import (
	"fmt"
	"log/slog"
	"time"

	"polyedge/internal/domain"
)

// Fallback figures applied only in degraded mode, for market records that
// omit volume or liquidity entirely.
const (
	degradedVolumeUSD    = 50000
	degradedLiquidityUSD = 10000
)

// Normalizer converts raw Gamma market records into validated domain markets.
//
// By default a record missing volume, liquidity, or outcome tokens is
// rejected with a sentinel error. AllowDegraded opts in to substituting
// fallback volume and liquidity figures instead, which makes downstream
// volume filters pass on data that was never observed. Leave it off unless
// the market universe being scanned is known to omit these fields.
type Normalizer struct {
	AllowDegraded bool

	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. logger may not be nil.
func NewNormalizer(allowDegraded bool, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		AllowDegraded: allowDegraded,
		logger:        logger.With(slog.String("component", "market_normalizer")),
	}
}

// Normalize validates a raw market record and converts it into a
// domain.Market. Errors wrap domain sentinels so callers can classify the
// rejection with errors.Is.
func (n *Normalizer) Normalize(raw *RawMarket) (domain.Market, error) {
	labels := raw.outcomeLabels()
	prices := raw.outcomePrices()
	ids := raw.tokenIDs()
	if len(labels) == 0 || len(prices) != len(labels) {
		return domain.Market{}, fmt.Errorf("ingest: market %s: %w", raw.ID, domain.ErrNoTokens)
	}

	tokens := make([]domain.OutcomeToken, len(labels))
	for i, label := range labels {
		var tokenID string
		if i < len(ids) {
			tokenID = ids[i]
		}
		tokens[i] = domain.OutcomeToken{
			TokenID: tokenID,
			Outcome: label,
			Price:   prices[i],
		}
	}

	volume := float64(raw.Volume24h)
	liquidity := float64(raw.Liquidity)
	if volume <= 0 {
		if !n.AllowDegraded {
			return domain.Market{}, fmt.Errorf("ingest: market %s: %w", raw.ID, domain.ErrMissingVolume)
		}
		n.logger.Warn("market missing volume, substituting fallback",
			slog.String("market", raw.ID),
			slog.Float64("fallback_usd", degradedVolumeUSD),
		)
		volume = degradedVolumeUSD
	}
	if liquidity <= 0 {
		if !n.AllowDegraded {
			return domain.Market{}, fmt.Errorf("ingest: market %s: %w", raw.ID, domain.ErrMissingLiquidity)
		}
		n.logger.Warn("market missing liquidity, substituting fallback",
			slog.String("market", raw.ID),
			slog.Float64("fallback_usd", degradedLiquidityUSD),
		)
		liquidity = degradedLiquidityUSD
	}

	var endDate time.Time
	if raw.EndDate != "" {
		t, err := time.Parse(time.RFC3339, raw.EndDate)
		if err != nil {
			return domain.Market{}, fmt.Errorf("ingest: market %s: %w: %q", raw.ID, domain.ErrBadDeadline, raw.EndDate)
		}
		endDate = t
	}

	return domain.Market{
		ID:          raw.ID,
		ConditionID: raw.ConditionID,
		Slug:        raw.Slug,
		Question:    raw.Question,
		Tokens:      tokens,
		Volume24h:   volume,
		Liquidity:   liquidity,
		EndDate:     endDate,
	}, nil
}
