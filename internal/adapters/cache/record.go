package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/inbox-triage/internal/core"
)

// record is the storage form shared by all backends: the result as a JSON
// document plus its write time and ttl in milliseconds
type record struct {
	ThreadID    string `db:"thread_id" json:"threadId"`
	Result      string `db:"result" json:"result"`
	TimestampMs int64  `db:"timestamp_ms" json:"timestamp_ms"`
	TTLMs       int64  `db:"ttl_ms" json:"ttl_ms"`
}

func newRecord(entry *core.CacheEntry) (*record, error) {
	doc, err := json.Marshal(entry.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode classification result: %w", err)
	}
	return &record{
		ThreadID:    entry.Key,
		Result:      string(doc),
		TimestampMs: entry.Timestamp.UnixMilli(),
		TTLMs:       entry.TTL.Milliseconds(),
	}, nil
}

func (r *record) entry() (*core.CacheEntry, error) {
	var result core.ClassificationResult
	if err := json.Unmarshal([]byte(r.Result), &result); err != nil {
		return nil, fmt.Errorf("failed to decode classification result: %w", err)
	}
	return &core.CacheEntry{
		Key:       r.ThreadID,
		Result:    result,
		Timestamp: time.UnixMilli(r.TimestampMs),
		TTL:       time.Duration(r.TTLMs) * time.Millisecond,
	}, nil
}
