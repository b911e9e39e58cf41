package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/mikey/inbox-triage/internal/core"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreCache keeps one document per thread in a Firestore collection
type FirestoreCache struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
}

type firestoreDoc struct {
	ThreadID    string                 `firestore:"threadId"`
	Result      map[string]interface{} `firestore:"result"`
	TimestampMs int64                  `firestore:"timestamp_ms"`
	TTLMs       int64                  `firestore:"ttl_ms"`
}

// NewFirestoreCache opens a Firestore client for projectID
func NewFirestoreCache(ctx context.Context, projectID, collection string, logger *zap.Logger) (*FirestoreCache, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	logger.Info("Opened firestore cache",
		zap.String("project", projectID),
		zap.String("collection", collection))

	return &FirestoreCache{client: client, collection: collection, logger: logger}, nil
}

// Get retrieves the entry for a thread
func (c *FirestoreCache) Get(ctx context.Context, threadID string) (*core.CacheEntry, error) {
	snap, err := c.client.Collection(c.collection).Doc(threadID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, core.ErrCacheMiss
		}
		return nil, &core.StorageError{Op: "get", Key: threadID, Err: err}
	}

	var doc firestoreDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, &core.StorageError{Op: "get", Key: threadID, Err: err}
	}

	entry, err := doc.entry(threadID)
	if err != nil {
		return nil, &core.StorageError{Op: "get", Key: threadID, Err: err}
	}
	return entry, nil
}

// Set overwrites the document of a thread
func (c *FirestoreCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	doc, err := newFirestoreDoc(entry)
	if err != nil {
		return &core.StorageError{Op: "set", Key: entry.Key, Err: err}
	}
	if _, err := c.client.Collection(c.collection).Doc(entry.Key).Set(ctx, doc); err != nil {
		return &core.StorageError{Op: "set", Key: entry.Key, Err: err}
	}
	return nil
}

// Delete removes the document of a thread
func (c *FirestoreCache) Delete(ctx context.Context, threadID string) error {
	if _, err := c.client.Collection(c.collection).Doc(threadID).Delete(ctx); err != nil {
		return &core.StorageError{Op: "delete", Key: threadID, Err: err}
	}
	return nil
}

// Close closes the client
func (c *FirestoreCache) Close() error {
	return c.client.Close()
}

func newFirestoreDoc(entry *core.CacheEntry) (*firestoreDoc, error) {
	raw, err := json.Marshal(entry.Result)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &firestoreDoc{
		ThreadID:    entry.Key,
		Result:      result,
		TimestampMs: entry.Timestamp.UnixMilli(),
		TTLMs:       entry.TTL.Milliseconds(),
	}, nil
}

func (d *firestoreDoc) entry(threadID string) (*core.CacheEntry, error) {
	raw, err := json.Marshal(d.Result)
	if err != nil {
		return nil, err
	}
	var result core.ClassificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &core.CacheEntry{
		Key:       threadID,
		Result:    result,
		Timestamp: time.UnixMilli(d.TimestampMs),
		TTL:       time.Duration(d.TTLMs) * time.Millisecond,
	}, nil
}
