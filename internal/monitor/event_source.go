package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"polyedge/internal/domain"
)

// EventChannel is the signal-bus channel external reporters publish resolved
// events on.
const EventChannel = "events"

// BusEventSource feeds the event loop from a signal-bus channel. External
// reporters publish domain.DetectedEvent JSON on the channel; the source
// buffers them and hands them to the monitor in Poll-sized batches.
type BusEventSource struct {
	bus     domain.SignalBus
	channel string
	logger  *slog.Logger

	mu      sync.Mutex
	pending []domain.DetectedEvent
}

// NewBusEventSource creates a BusEventSource reading from channel. An empty
// channel selects EventChannel.
func NewBusEventSource(bus domain.SignalBus, channel string, logger *slog.Logger) *BusEventSource {
	if channel == "" {
		channel = EventChannel
	}
	return &BusEventSource{
		bus:     bus,
		channel: channel,
		logger:  logger.With(slog.String("component", "event_source")),
	}
}

// Start subscribes to the channel and pumps incoming events into the buffer
// until the context is cancelled. It must be called once before Poll.
func (s *BusEventSource) Start(ctx context.Context) error {
	msgs, err := s.bus.Subscribe(ctx, s.channel)
	if err != nil {
		return err
	}

	go func() {
		for payload := range msgs {
			var ev domain.DetectedEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				s.logger.Warn("dropping malformed event payload", slog.String("error", err.Error()))
				continue
			}
			s.mu.Lock()
			s.pending = append(s.pending, ev)
			s.mu.Unlock()
		}
	}()

	s.logger.Info("subscribed to event channel", slog.String("channel", s.channel))
	return nil
}

// Poll drains and returns the buffered events.
func (s *BusEventSource) Poll(ctx context.Context) ([]domain.DetectedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.pending
	s.pending = nil
	return events, nil
}

var _ EventSource = (*BusEventSource)(nil)
