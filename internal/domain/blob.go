package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobInfo is metadata for one object in cold storage.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobReader downloads objects from cold storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// Archiver ships aged detection records and volume history to cold storage.
type Archiver interface {
	ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error)
	ArchiveSpikes(ctx context.Context, before time.Time) (int64, error)
	ArchiveVolumeHistory(ctx context.Context) error
}
