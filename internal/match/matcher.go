// Package match maintains a TTL-cached pool of candidate markets and maps
// free-text event descriptions onto them via keyword overlap.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"polyedge/internal/domain"
)

// MarketSource supplies the active markets (with token data already joined)
// that the matcher caches. Implemented by the ingestion client.
type MarketSource interface {
	ActiveMarkets(ctx context.Context) ([]domain.Market, error)
}

// Searcher runs a free-text market query. Used as a fallback when the
// cached pool yields no match, since the pool only holds markets inside the
// volume band.
type Searcher interface {
	SearchMarkets(ctx context.Context, query string) ([]domain.Market, error)
}

// Defaults for the matcher configuration.
const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultMinVolumeUSD = 10000
	DefaultMaxVolumeUSD = 100000

	// minConfidence is the keyword-overlap fraction a market must exceed to
	// be considered a match.
	minConfidence = 0.5
)

// Config holds the matcher's cache and filter parameters. Zero values select
// the defaults.
type Config struct {
	CacheTTL     time.Duration
	MinVolumeUSD float64
	MaxVolumeUSD float64
}

func (c *Config) setDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.MinVolumeUSD <= 0 {
		c.MinVolumeUSD = DefaultMinVolumeUSD
	}
	if c.MaxVolumeUSD <= 0 {
		c.MaxVolumeUSD = DefaultMaxVolumeUSD
	}
}

// Matcher caches a volume-filtered market pool and matches detected events
// against it. Safe for concurrent use.
type Matcher struct {
	source MarketSource
	search Searcher
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	pool        []domain.Market
	lastRefresh time.Time

	now func() time.Time
}

// New creates a Matcher over the given market source.
func New(source MarketSource, cfg Config, logger *slog.Logger) *Matcher {
	cfg.setDefaults()
	return &Matcher{
		source: source,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "market_matcher")),
		now:    time.Now,
	}
}

// WithSearch enables the direct-query fallback and returns the matcher.
func (m *Matcher) WithSearch(s Searcher) *Matcher {
	m.search = s
	return m
}

// Match returns candidate markets for the event, sorted by confidence
// descending. A market qualifies when more than half of the event's keywords
// appear in its slug or question and one of its outcome labels resolves
// against the event outcome. The market pool is refreshed from the source
// when older than the configured TTL.
func (m *Matcher) Match(ctx context.Context, event domain.DetectedEvent) ([]domain.MarketMatch, error) {
	pool, err := m.cachedPool(ctx)
	if err != nil {
		return nil, err
	}

	keywords := ExtractKeywords(event.Description)
	if len(keywords) == 0 {
		return nil, nil
	}

	matches := m.score(event, keywords, pool)

	if len(matches) == 0 && m.search != nil {
		query := strings.Join(keywords, " ")
		found, err := m.search.SearchMarkets(ctx, query)
		if err != nil {
			m.logger.Warn("market search fallback failed",
				slog.String("query", query),
				slog.String("error", err.Error()),
			)
		} else {
			matches = m.score(event, keywords, m.eligible(found))
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches, nil
}

// score ranks the given markets against the event keywords.
func (m *Matcher) score(event domain.DetectedEvent, keywords []string, markets []domain.Market) []domain.MarketMatch {
	var matches []domain.MarketMatch
	for _, market := range markets {
		text := strings.ToLower(market.Slug + " " + market.Question)

		matched := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matched++
			}
		}
		confidence := float64(matched) / float64(len(keywords))
		if confidence <= minConfidence {
			continue
		}

		labels := make([]string, len(market.Tokens))
		for i, t := range market.Tokens {
			labels[i] = t.Outcome
		}
		outcome, ok := matchOutcome(event.Outcome, labels)
		if !ok {
			continue
		}

		matches = append(matches, domain.MarketMatch{
			Event:          event,
			Market:         market,
			Confidence:     confidence,
			MatchedOutcome: outcome,
			Reasoning:      fmt.Sprintf("matched %d/%d keywords", matched, len(keywords)),
		})
	}
	return matches
}

// cachedPool returns the market pool, refreshing it when stale.
func (m *Matcher) cachedPool(ctx context.Context) ([]domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.lastRefresh.IsZero() && now.Sub(m.lastRefresh) <= m.cfg.CacheTTL {
		return m.pool, nil
	}

	markets, err := m.source.ActiveMarkets(ctx)
	if err != nil {
		// Serve the stale pool rather than fail the match when a refresh
		// attempt errors and a previous pool exists.
		if m.pool != nil {
			m.logger.Warn("market pool refresh failed, serving stale pool",
				slog.String("error", err.Error()),
			)
			return m.pool, nil
		}
		return nil, fmt.Errorf("match: refresh market pool: %w", err)
	}

	pool := m.eligible(markets)

	m.pool = pool
	m.lastRefresh = now
	m.logger.Info("market pool refreshed",
		slog.Int("cached", len(pool)),
		slog.Int("fetched", len(markets)),
	)
	return m.pool, nil
}

// eligible filters markets down to those the matcher will consider: a
// condition ID, at least one token, and volume inside the configured band.
func (m *Matcher) eligible(markets []domain.Market) []domain.Market {
	out := make([]domain.Market, 0, len(markets))
	for _, market := range markets {
		if market.ConditionID == "" || len(market.Tokens) == 0 {
			continue
		}
		if market.Volume24h < m.cfg.MinVolumeUSD || market.Volume24h > m.cfg.MaxVolumeUSD {
			continue
		}
		out = append(out, market)
	}
	return out
}

// PoolSize returns the number of markets currently cached.
func (m *Matcher) PoolSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pool)
}
