package core

import (
	"context"
	"time"
)

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// Complete sends a single prompt and returns the raw response text
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CacheRepository defines the interface for persisting classification results.
// Implementations never judge freshness; that is done by AnalysisCache.
type CacheRepository interface {
	// Get retrieves the entry for a thread, or ErrCacheMiss
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set upserts an entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes an entry
	Delete(ctx context.Context, key string) error
}

// MailProvider lists and fetches messages for a single mailbox
type MailProvider interface {
	// ListThreads returns a page of thread ids matching query
	ListThreads(ctx context.Context, query, pageToken string, pageSize int64) (*ThreadPage, error)

	// GetThread returns the most recent message of a thread
	GetThread(ctx context.Context, threadID string) (*RawMessage, error)
}

// MailProviderFactory opens a mailbox for a bearer access token
type MailProviderFactory interface {
	ForToken(ctx context.Context, accessToken string) (MailProvider, error)
}

// Recorder receives pipeline events for metrics
type Recorder interface {
	CacheLookup(hit bool)
	Classification(outcome string)
	Prefiltered()
	FetchFailed()
	Ingested(d time.Duration, emails int)
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(bool) {}
func (nopRecorder) Classification(string) {}
func (nopRecorder) Prefiltered() {}
func (nopRecorder) FetchFailed() {}
func (nopRecorder) Ingested(time.Duration, int) {}

// NopRecorder returns a Recorder that discards all events
func NopRecorder() Recorder {
	return nopRecorder{}
}

// Frontend is a long-running surface in front of the ingestion service
type Frontend interface {
	Start() error
	Stop() error
}
