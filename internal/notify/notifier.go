// Package notify delivers opportunity and spike alerts through one or more
// channels (Telegram, Discord). Alerts are filtered by event type so
// operators receive only the signals they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"polyedge/internal/domain"
)

// Event types emitted by the detection pipeline.
const (
	EventOpportunity = "opportunity"
	EventSpike       = "spike"
	EventPaper       = "paper"
	EventSummary     = "summary"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches alerts to one or more Senders. It maintains a set of
// allowed event types; events outside the set are dropped silently. An empty
// set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders,
// forwarding only the listed event types. An empty events slice allows all.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// NotifyOpportunity formats and dispatches a certainty-arbitrage alert.
func (n *Notifier) NotifyOpportunity(ctx context.Context, opp domain.Opportunity) error {
	return n.notify(ctx, EventOpportunity, "Certainty opportunity", FormatOpportunity(opp))
}

// NotifySpike formats and dispatches a volume-spike alert.
func (n *Notifier) NotifySpike(ctx context.Context, spike domain.VolumeSpike) error {
	return n.notify(ctx, EventSpike, "Volume spike", FormatSpike(spike))
}

// NotifyPaperTrade formats and dispatches a simulated-trade alert.
func (n *Notifier) NotifyPaperTrade(ctx context.Context, trade domain.PaperTrade) error {
	return n.notify(ctx, EventPaper, "Paper trade", FormatPaperTrade(trade))
}

// NotifySummary dispatches a paper session recap.
func (n *Notifier) NotifySummary(ctx context.Context, s domain.PaperSessionSummary) error {
	return n.notify(ctx, EventSummary, "Session summary", FormatSummary(s))
}

// notify applies the event filter and dispatches.
func (n *Notifier) notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// dispatch iterates over all senders. Errors from individual senders are
// collected and returned combined; a single sender failure does not prevent
// delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
