package monitor

import (
	"context"
	"log/slog"
	"time"

	"polyedge/internal/domain"
)

// runEventLoop polls the event source on a timer and pushes every reported
// event through the detection pipeline. Individual event failures are logged
// and skipped; only context cancellation stops the loop.
func (m *Monitor) runEventLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.EventPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("event loop stopped")
			return ctx.Err()
		case <-ticker.C:
			events, err := m.events.Poll(ctx)
			if err != nil {
				m.logger.Error("event poll failed", slog.String("error", err.Error()))
				continue
			}
			for _, ev := range events {
				m.processEvent(ctx, ev)
			}
		}
	}
}

// processEvent matches one resolved event against the market pool and turns
// every qualifying match into a stored, published, and optionally
// paper-traded opportunity.
func (m *Monitor) processEvent(ctx context.Context, ev domain.DetectedEvent) {
	log := m.logger.With(slog.String("event_id", ev.ID))

	matches, err := m.matcher.Match(ctx, ev)
	if err != nil {
		log.Error("market matching failed", slog.String("error", err.Error()))
		return
	}
	if len(matches) == 0 {
		log.Debug("no market matched event", slog.String("description", ev.Description))
		return
	}

	info := ev.CertaintyInfo()
	for _, mt := range matches {
		market := mt.Market
		if m.fetcher != nil {
			fresh, err := m.fetcher.GetMarket(ctx, market.ID)
			if err != nil {
				log.Warn("market refresh failed, using matched snapshot",
					slog.String("market", market.Display()),
					slog.String("error", err.Error()),
				)
			} else {
				market = fresh
			}
		}

		opp, reason := m.detector.Detect(market, mt.MatchedOutcome, ev.Timestamp, info)
		if reason.Rejected() {
			log.Debug("candidate rejected",
				slog.String("market", market.Display()),
				slog.String("reason", string(reason)),
			)
			continue
		}
		m.handleOpportunity(ctx, log, *opp)
	}
}

// handleOpportunity validates, persists, publishes, and paper-trades one
// accepted opportunity. Each downstream step is independent: a store or
// publish failure is logged but does not suppress the remaining steps.
func (m *Monitor) handleOpportunity(ctx context.Context, log *slog.Logger, opp domain.Opportunity) {
	log = log.With(
		slog.String("opportunity_id", opp.ID),
		slog.String("market", opp.Slug),
	)

	if m.validator != nil {
		verdict, err := m.validator.Validate(ctx, opp)
		if err != nil {
			log.Error("opportunity validation errored", slog.String("error", err.Error()))
			return
		}
		if !verdict.Approved {
			log.Info("opportunity rejected by validator", slog.String("reasoning", verdict.Reasoning))
			return
		}
	}

	log.Info("opportunity detected",
		slog.Float64("net_profit_usd", opp.NetProfit),
		slog.Float64("roi_percent", opp.ROIPercent),
	)

	if m.oppStore != nil {
		if err := m.oppStore.Insert(ctx, opp); err != nil {
			log.Error("storing opportunity failed", slog.String("error", err.Error()))
		}
	}
	if m.bus != nil {
		if err := m.bus.PublishOpportunity(ctx, opp); err != nil {
			log.Error("publishing opportunity failed", slog.String("error", err.Error()))
		}
	}
	if m.alerter != nil {
		if err := m.alerter.NotifyOpportunity(ctx, opp); err != nil {
			log.Error("opportunity notification failed", slog.String("error", err.Error()))
		}
	}

	if m.trader == nil {
		return
	}
	trade, err := m.trader.ExecuteTrade(ctx, opp)
	if err != nil {
		log.Error("paper trade failed", slog.String("error", err.Error()))
		return
	}
	log.Info("paper trade opened",
		slog.String("trade_id", trade.ID),
		slog.Float64("position_usd", trade.PositionSize),
	)
	if m.alerter != nil {
		if err := m.alerter.NotifyPaperTrade(ctx, *trade); err != nil {
			log.Error("paper trade notification failed", slog.String("error", err.Error()))
		}
	}
}
