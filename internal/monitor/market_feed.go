package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"polyedge/internal/domain"
	"polyedge/internal/ingest"
)

// CachingMarketSource wraps a MarketSource and writes every fetched market
// through to a shared cache, so other instances and the live price stream
// can look markets up without hitting the API.
type CachingMarketSource struct {
	src    MarketSource
	cache  domain.MarketCache
	logger *slog.Logger
}

// NewCachingMarketSource creates a write-through wrapper around src.
func NewCachingMarketSource(src MarketSource, cache domain.MarketCache, logger *slog.Logger) *CachingMarketSource {
	return &CachingMarketSource{
		src:    src,
		cache:  cache,
		logger: logger.With(slog.String("component", "market_source")),
	}
}

// ActiveMarkets fetches from the underlying source and caches each market.
// Cache writes are best effort; a failed write never fails the fetch.
func (s *CachingMarketSource) ActiveMarkets(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.src.ActiveMarkets(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range markets {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.Warn("caching market failed",
				slog.String("market", m.ID),
				slog.String("error", err.Error()),
			)
			break
		}
	}
	return markets, nil
}

var _ MarketSource = (*CachingMarketSource)(nil)

// priceApplyTimeout bounds the cache round trip for one tick.
const priceApplyTimeout = 5 * time.Second

// PriceRefresher applies live trade-price ticks from the market stream to
// the cached market snapshots, keeping cached token prices close to the
// exchange between full refreshes.
type PriceRefresher struct {
	cache  domain.MarketCache
	logger *slog.Logger
}

// NewPriceRefresher creates a PriceRefresher writing into cache.
func NewPriceRefresher(cache domain.MarketCache, logger *slog.Logger) *PriceRefresher {
	return &PriceRefresher{
		cache:  cache,
		logger: logger.With(slog.String("component", "price_refresher")),
	}
}

// Apply updates the cached market owning the tick's token. Ticks for unknown
// tokens are dropped.
func (r *PriceRefresher) Apply(update ingest.PriceUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), priceApplyTimeout)
	defer cancel()

	market, err := r.cache.GetByToken(ctx, update.AssetID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("price tick lookup failed",
				slog.String("asset_id", update.AssetID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	updated := false
	for i := range market.Tokens {
		if market.Tokens[i].TokenID == update.AssetID {
			market.Tokens[i].Price = update.Price
			updated = true
			break
		}
	}
	if !updated {
		return
	}

	if err := r.cache.Set(ctx, market); err != nil {
		r.logger.Warn("price tick write failed",
			slog.String("market", market.ID),
			slog.String("error", err.Error()),
		)
	}
}
