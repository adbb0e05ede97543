// Package volume tracks per-market trading activity over bounded time-series
// windows and detects volume-spike signals near resolution deadlines.
package volume

import (
	"time"

	"polyedge/internal/domain"
)

// History is a fixed-capacity FIFO ring of volume observations for a single
// market. Once the window is full, appending evicts the oldest snapshot.
//
// History is not safe for concurrent use on its own; the owning SpikeEngine
// serializes all access under its instance lock.
type History struct {
	marketID string
	window   int
	snaps    []domain.VolumeSnapshot
}

// NewHistory creates a History holding at most window snapshots.
func NewHistory(marketID string, window int) *History {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &History{
		marketID: marketID,
		window:   window,
		snaps:    make([]domain.VolumeSnapshot, 0, window),
	}
}

// Append records a new observation at the tail, evicting from the head when
// the window is exceeded.
func (h *History) Append(snap domain.VolumeSnapshot) {
	h.snaps = append(h.snaps, snap)
	if len(h.snaps) > h.window {
		// Shift in place so capacity stays bounded at the window size.
		copy(h.snaps, h.snaps[1:])
		h.snaps = h.snaps[:h.window]
	}
}

// Len returns the number of retained snapshots.
func (h *History) Len() int { return len(h.snaps) }

// Snapshots returns a copy of the retained snapshots in insertion order.
func (h *History) Snapshots() []domain.VolumeSnapshot {
	out := make([]domain.VolumeSnapshot, len(h.snaps))
	copy(out, h.snaps)
	return out
}

// AvgVolume returns the mean 24h volume across all retained snapshots,
// including the current one. Empty history yields 0.
func (h *History) AvgVolume() float64 {
	if len(h.snaps) == 0 {
		return 0
	}
	var sum float64
	for _, s := range h.snaps {
		sum += s.Volume24h
	}
	return sum / float64(len(h.snaps))
}

// CurrentVolume returns the most recent 24h volume, or 0 for an empty
// history.
func (h *History) CurrentVolume() float64 {
	if len(h.snaps) == 0 {
		return 0
	}
	return h.snaps[len(h.snaps)-1].Volume24h
}

// SpikeRatio is the current volume over the historical average. A zero
// average (empty or all-zero history) yields 1.0, never a division error or
// a false spike.
func (h *History) SpikeRatio() float64 {
	avg := h.AvgVolume()
	if avg == 0 {
		return 1.0
	}
	return h.CurrentVolume() / avg
}

// PriceChange returns the percent change between the earliest snapshot within
// the trailing window ending at now and the latest snapshot. Fewer than two
// snapshots in the window, or a zero starting price, yield 0.
func (h *History) PriceChange(now time.Time, window time.Duration) float64 {
	if len(h.snaps) < 2 {
		return 0
	}
	cutoff := now.Add(-window)

	var recent []domain.VolumeSnapshot
	for _, s := range h.snaps {
		if !s.Timestamp.Before(cutoff) {
			recent = append(recent, s)
		}
	}
	if len(recent) < 2 {
		return 0
	}

	oldPrice := recent[0].Price
	newPrice := recent[len(recent)-1].Price
	if oldPrice == 0 {
		return 0
	}
	return (newPrice - oldPrice) / oldPrice * 100
}

// Sufficient reports whether the history holds at least minSnapshots
// observations, the floor for reliable spike detection.
func (h *History) Sufficient(minSnapshots int) bool {
	return len(h.snaps) >= minSnapshots
}
