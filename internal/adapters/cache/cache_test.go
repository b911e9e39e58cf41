package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleEntry(key string) *core.CacheEntry {
	return &core.CacheEntry{
		Key: key,
		Result: core.ClassificationResult{
			IsSupport:          true,
			Confidence:         0.82,
			Reason:             "customer asks about a duplicate charge",
			Sentiment:          core.SentimentNegative,
			KeyPoints:          []string{"charged twice"},
			SuggestedQuestions: []string{"Can I get a refund?"},
			MatchedFAQ:         &core.MatchedFAQ{Question: "How do refunds work?", Index: 2, Score: 0.66},
			Category:           "billing",
			Model:              "gpt-4o-mini",
			AnalyzedAt:         time.UnixMilli(1717232400000).UTC(),
		},
		Timestamp: time.UnixMilli(1717232400123),
		TTL:       30 * 24 * time.Hour,
	}
}

// exerciseRepository runs the contract every backend must satisfy
func exerciseRepository(t *testing.T, repo core.CacheRepository) {
	ctx := context.Background()

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	want := sampleEntry("thread-1")
	require.NoError(t, repo.Set(ctx, want))

	got, err := repo.Get(ctx, "thread-1")
	require.NoError(t, err)
	if diff := cmp.Diff(want.Result, got.Result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, want.TTL, got.TTL)

	// last write wins
	updated := sampleEntry("thread-1")
	updated.Result.Category = "dispute"
	updated.Timestamp = updated.Timestamp.Add(time.Hour)
	require.NoError(t, repo.Set(ctx, updated))

	got, err = repo.Get(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "dispute", got.Result.Category)
	assert.True(t, updated.Timestamp.Equal(got.Timestamp))

	require.NoError(t, repo.Delete(ctx, "thread-1"))
	_, err = repo.Get(ctx, "thread-1")
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	require.NoError(t, repo.Delete(ctx, "never-existed"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(zaptest.NewLogger(t))
	exerciseRepository(t, c)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	c := NewMemoryCache(zaptest.NewLogger(t))
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, sampleEntry("t")))

	got, err := c.Get(ctx, "t")
	require.NoError(t, err)
	got.Result.Category = "mutated"

	again, err := c.Get(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "billing", again.Result.Category)
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	exerciseRepository(t, c)
}

func TestSQLiteCacheSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	logger := zaptest.NewLogger(t)

	c, err := NewSQLiteCache(path, logger)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), sampleEntry("t1")))
	require.NoError(t, c.Close())

	reopened, err := NewSQLiteCache(path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "billing", got.Result.Category)
}

func TestFirestoreDocConversion(t *testing.T) {
	want := sampleEntry("thread-9")

	doc, err := newFirestoreDoc(want)
	require.NoError(t, err)
	assert.Equal(t, "billing", doc.Result["category"])
	assert.Equal(t, want.Timestamp.UnixMilli(), doc.TimestampMs)

	got, err := doc.entry("thread-9")
	require.NoError(t, err)
	if diff := cmp.Diff(want.Result, got.Result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}
