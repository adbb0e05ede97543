package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"polyedge/internal/domain"
)

// Narrow store interfaces required by the archiver. The archiver only needs
// the time-ranged query methods it actually calls; the Postgres stores
// satisfy these implicitly.

// OpportunityArchiveStore provides read access to opportunities for archival.
type OpportunityArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error)
}

// SpikeArchiveStore provides read access to volume spikes for archival.
type SpikeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.VolumeSpike, error)
}

// HistorySource exposes the spike engine's volume history as a JSON
// document for snapshotting.
type HistorySource interface {
	HistoryJSON() ([]byte, error)
}

// Archiver implements domain.Archiver by querying the stores for aged
// records, serializing them to JSONL, and uploading the result to object
// storage.
//
// Deletion of the archived records from the primary store is intentionally
// not performed here; that is a separate, explicit step to run after the
// archive has been verified.
type Archiver struct {
	writer        domain.BlobWriter
	reader        domain.BlobReader
	opportunities OpportunityArchiveStore
	spikes        SpikeArchiveStore
	history       HistorySource

	now func() time.Time
}

// historyPartSize is the multipart chunk size for volume history snapshots,
// which grow without bound over the life of a deployment.
const historyPartSize = 5 * 1024 * 1024

// NewArchiver creates an Archiver. history may be nil when the process does
// not run the spike engine.
func NewArchiver(writer domain.BlobWriter, opportunities OpportunityArchiveStore, spikes SpikeArchiveStore, history HistorySource) *Archiver {
	return &Archiver{
		writer:        writer,
		opportunities: opportunities,
		spikes:        spikes,
		history:       history,
		now:           time.Now,
	}
}

// WithVerify makes every archive upload read its object back before
// reporting success, so callers only prune rows whose archive is known to
// be retrievable.
func (a *Archiver) WithVerify(reader domain.BlobReader) *Archiver {
	a.reader = reader
	return a
}

// ArchiveOpportunities uploads all opportunities detected before the cutoff
// as one JSONL object and returns the number of records archived. Nothing is
// uploaded when no records match.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opportunities.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: query opportunities for archive: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	records := make([]any, len(opps))
	for i := range opps {
		records[i] = opps[i]
	}
	path := a.archivePath("opportunities", before)
	if err := a.uploadJSONL(ctx, path, records); err != nil {
		return 0, err
	}
	if err := a.verify(ctx, path); err != nil {
		return 0, err
	}
	return int64(len(opps)), nil
}

// ArchiveSpikes uploads all spikes detected before the cutoff as one JSONL
// object and returns the number of records archived.
func (a *Archiver) ArchiveSpikes(ctx context.Context, before time.Time) (int64, error) {
	spikes, err := a.spikes.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: query spikes for archive: %w", err)
	}
	if len(spikes) == 0 {
		return 0, nil
	}

	records := make([]any, len(spikes))
	for i := range spikes {
		records[i] = spikes[i]
	}
	path := a.archivePath("spikes", before)
	if err := a.uploadJSONL(ctx, path, records); err != nil {
		return 0, err
	}
	if err := a.verify(ctx, path); err != nil {
		return 0, err
	}
	return int64(len(spikes)), nil
}

// ArchiveVolumeHistory snapshots the spike engine's full volume history as a
// single JSON document.
func (a *Archiver) ArchiveVolumeHistory(ctx context.Context) error {
	if a.history == nil {
		return nil
	}

	data, err := a.history.HistoryJSON()
	if err != nil {
		return fmt.Errorf("s3blob: serialize volume history: %w", err)
	}

	path := fmt.Sprintf("archive/volume_history/%s.json", a.now().UTC().Format("2006-01-02T15-04-05"))
	if err := a.writer.PutMultipart(ctx, path, bytes.NewReader(data), historyPartSize); err != nil {
		return fmt.Errorf("s3blob: upload volume history: %w", err)
	}
	return a.verify(ctx, path)
}

// verify reads the uploaded object back when a reader is configured.
func (a *Archiver) verify(ctx context.Context, path string) error {
	if a.reader == nil {
		return nil
	}
	rc, err := a.reader.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: verify archive %s: %w", path, err)
	}
	return rc.Close()
}

// archivePath builds the object key for a batch archived at the cutoff.
func (a *Archiver) archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01-02T15-04-05"))
}

// uploadJSONL serializes records one JSON document per line and uploads the
// batch as a single object.
func (a *Archiver) uploadJSONL(ctx context.Context, path string, records []any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("s3blob: encode archive record: %w", err)
		}
	}
	if err := a.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: upload archive %s: %w", path, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
