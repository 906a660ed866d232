package registry

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// FetchRequest describes one HTTP exchange against the registry. Form is
// non-nil for form-encoded POSTs and nil for GETs.
type FetchRequest struct {
	Method  string
	URL     string
	Form    url.Values
	Headers http.Header
	Timeout time.Duration
}

// FetchResponse is the raw outcome of a fetch.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher is the fetch port. Implementations own cookies and pacing; one
// Fetcher instance is exclusively owned by one worker.
type Fetcher interface {
	Do(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Sink receives accepted records and human-readable progress lines. The
// scheduler hands every worker the same Sink; implementations must be safe
// for concurrent use.
type Sink interface {
	OnRecord(rec Record)
	OnProgress(msg string)
}

// StopFunc is polled between pages and between work items for cooperative
// cancellation. In-flight requests are allowed to complete.
type StopFunc func() bool

// RecordStore persists accepted records idempotently. The engine does not
// retry storage failures; it logs them and moves on.
type RecordStore interface {
	StoreRecord(ctx context.Context, rec Record) error
	Close()
}

// Publisher notifies downstream consumers of an accepted record.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
	Close() error
}

// BlobStore archives raw page bodies keyed by caller-chosen paths. It
// returns the stored object's location.
type BlobStore interface {
	Save(ctx context.Context, key string, data []byte) (string, error)
}
