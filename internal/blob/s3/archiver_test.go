package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"polyedge/internal/domain"
)

type fakeWriter struct {
	paths        []string
	contentTypes []string
	bodies       [][]byte
}

func (f *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.paths = append(f.paths, path)
	f.contentTypes = append(f.contentTypes, contentType)
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return f.Put(ctx, path, data, "application/octet-stream")
}

type fakeOppStore struct{ opps []domain.Opportunity }

func (f fakeOppStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	return f.opps, nil
}

type fakeSpikeStore struct{ spikes []domain.VolumeSpike }

func (f fakeSpikeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.VolumeSpike, error) {
	return f.spikes, nil
}

type fakeHistory struct{ data []byte }

func (f fakeHistory) HistoryJSON() ([]byte, error) { return f.data, nil }

func TestArchiveOpportunitiesUploadsJSONL(t *testing.T) {
	w := &fakeWriter{}
	store := fakeOppStore{opps: []domain.Opportunity{
		{ID: "a", Slug: "market-a", ROIPercent: 52.74},
		{ID: "b", Slug: "market-b", ROIPercent: 31.2},
	}}
	a := NewArchiver(w, store, fakeSpikeStore{}, nil)

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	n, err := a.ArchiveOpportunities(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchiveOpportunities: %v", err)
	}
	if n != 2 {
		t.Errorf("archived %d records, want 2", n)
	}
	if len(w.paths) != 1 {
		t.Fatalf("uploads = %d, want 1", len(w.paths))
	}
	if !strings.HasPrefix(w.paths[0], "archive/opportunities/2026-03-01") {
		t.Errorf("path = %q", w.paths[0])
	}
	if w.contentTypes[0] != "application/x-ndjson" {
		t.Errorf("content type = %q", w.contentTypes[0])
	}

	lines := bytes.Split(bytes.TrimSpace(w.bodies[0]), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("jsonl lines = %d, want 2", len(lines))
	}
	var first domain.Opportunity
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("decode first line: %v", err)
	}
	if first.ID != "a" || first.Slug != "market-a" {
		t.Errorf("first record = %+v", first)
	}
}

func TestArchiveSkipsEmptyBatches(t *testing.T) {
	w := &fakeWriter{}
	a := NewArchiver(w, fakeOppStore{}, fakeSpikeStore{}, nil)

	n, err := a.ArchiveOpportunities(context.Background(), time.Now())
	if err != nil || n != 0 {
		t.Fatalf("empty archive = (%d, %v), want (0, nil)", n, err)
	}
	if len(w.paths) != 0 {
		t.Errorf("uploads = %d, want 0", len(w.paths))
	}
}

func TestArchiveVolumeHistorySnapshot(t *testing.T) {
	w := &fakeWriter{}
	a := NewArchiver(w, fakeOppStore{}, fakeSpikeStore{}, fakeHistory{data: []byte(`{"m1":[]}`)})
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	if err := a.ArchiveVolumeHistory(context.Background()); err != nil {
		t.Fatalf("ArchiveVolumeHistory: %v", err)
	}
	if len(w.paths) != 1 || !strings.Contains(w.paths[0], "archive/volume_history/2026-03-01T12-00-00") {
		t.Fatalf("paths = %v", w.paths)
	}
	if string(w.bodies[0]) != `{"m1":[]}` {
		t.Errorf("body = %s", w.bodies[0])
	}
}

func TestArchiveVolumeHistoryNoSource(t *testing.T) {
	w := &fakeWriter{}
	a := NewArchiver(w, fakeOppStore{}, fakeSpikeStore{}, nil)
	if err := a.ArchiveVolumeHistory(context.Background()); err != nil {
		t.Fatalf("ArchiveVolumeHistory with nil source: %v", err)
	}
	if len(w.paths) != 0 {
		t.Errorf("uploads = %d, want 0", len(w.paths))
	}
}

type fakeReader struct {
	paths []string
	err   error
}

func (f *fakeReader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader("{}")), nil
}

func (f *fakeReader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	return nil, nil
}

func TestArchiveVerifiesUpload(t *testing.T) {
	w := &fakeWriter{}
	r := &fakeReader{}
	store := fakeOppStore{opps: []domain.Opportunity{{ID: "a"}}}
	a := NewArchiver(w, store, fakeSpikeStore{}, nil).WithVerify(r)

	n, err := a.ArchiveOpportunities(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ArchiveOpportunities: %v", err)
	}
	if n != 1 {
		t.Errorf("archived %d records, want 1", n)
	}
	if len(r.paths) != 1 || r.paths[0] != w.paths[0] {
		t.Errorf("verified paths %v, uploaded %v", r.paths, w.paths)
	}
}

func TestArchiveVerifyFailureReportsError(t *testing.T) {
	w := &fakeWriter{}
	r := &fakeReader{err: domain.ErrNotFound}
	store := fakeOppStore{opps: []domain.Opportunity{{ID: "a"}}}
	a := NewArchiver(w, store, fakeSpikeStore{}, nil).WithVerify(r)

	if _, err := a.ArchiveOpportunities(context.Background(), time.Now()); err == nil {
		t.Fatal("expected verify error")
	}
}
