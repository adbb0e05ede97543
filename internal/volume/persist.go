package volume

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"polyedge/internal/domain"
)

// historyFile is the persisted shape: market ID to ordered snapshots.
type historyFile map[string][]domain.VolumeSnapshot

// SaveHistory writes the full per-market snapshot map to path. The write is
// all-or-nothing: data goes to a temporary file in the same directory first
// and is renamed into place, so a failure never leaves a truncated file and
// never touches the in-memory state.
func (e *SpikeEngine) SaveHistory(path string) error {
	e.mu.Lock()
	out := make(historyFile, len(e.histories))
	for id, h := range e.histories {
		out[id] = h.Snapshots()
	}
	e.mu.Unlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("volume: marshal history: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("volume: create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("volume: create temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("volume: write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("volume: close history file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("volume: replace history file: %w", err)
	}

	e.logger.Info("volume history saved",
		slog.String("path", path),
		slog.Int("markets", len(out)),
	)
	return nil
}

// LoadHistory reads a persisted snapshot map from path and merges it into the
// in-memory map, truncating each market to the configured window. A missing
// file is not an error. A corrupt file is reported as an error; the engine
// keeps whatever state it already has and continues with empty history for
// the affected markets.
func (e *SpikeEngine) LoadHistory(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("volume: read history file: %w", err)
	}

	var in historyFile
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("volume: decode history file: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id, snaps := range in {
		h, ok := e.histories[id]
		if !ok {
			h = NewHistory(id, e.cfg.HistoryWindow)
			e.histories[id] = h
		}
		for _, s := range snaps {
			h.Append(s)
		}
	}

	e.logger.Info("volume history loaded",
		slog.String("path", path),
		slog.Int("markets", len(in)),
	)
	return nil
}

// HistoryJSON serializes the current snapshot map, for archival to cold
// storage.
func (e *SpikeEngine) HistoryJSON() ([]byte, error) {
	e.mu.Lock()
	out := make(historyFile, len(e.histories))
	for id, h := range e.histories {
		out[id] = h.Snapshots()
	}
	e.mu.Unlock()

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("volume: marshal history: %w", err)
	}
	return data, nil
}
