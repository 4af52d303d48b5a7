package domain

import (
	"context"
	"io"
	"time"

	"github.com/golang-sql/civil"
)

// SettlementArchiver snapshots a date's prediction rows to cold storage
// before the executor deletes them, preserving an audit trail of every
// settled day. It returns the path the snapshot was written to.
type SettlementArchiver interface {
	ArchivePredictions(ctx context.Context, mt MarketType, question string, date civil.Date, predictions []Prediction) (string, error)
}

// BlobWriter uploads objects. PutMultipart is for payloads too large for a
// single request.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader fetches stored objects back out; Get reports ErrNotFound for
// missing paths.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// BlobInfo describes one stored object as returned by List.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}
