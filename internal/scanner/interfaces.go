package scanner

import (
	"context"
	"io"
	"time"
)

// Provider fetches raw postings for one query.
type Provider interface {
	Search(ctx context.Context, q Query) ([]JobPosting, error)
	Configured() bool
}

// ScanStore persists scan summaries and applies retention on every save.
type ScanStore interface {
	Save(ctx context.Context, rec ScanRecord) (SaveResult, error)
	History(ctx context.Context, limit int) ([]ScanRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// BlobStore archives full reports.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher emits scan completion events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock provides time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator creates run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher hashes content for stable identity keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}
