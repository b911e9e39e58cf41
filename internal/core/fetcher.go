package core

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FetcherConfig holds the pacing and retry settings of a BatchFetcher
type FetcherConfig struct {
	BatchSize  int
	Delay      time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// BatchFetcher fetches items in sequential chunks, concurrently within a chunk
type BatchFetcher struct {
	cfg    FetcherConfig
	logger *zap.Logger
	rec    Recorder
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(cfg FetcherConfig, logger *zap.Logger, rec Recorder) *BatchFetcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if rec == nil {
		rec = NopRecorder()
	}
	return &BatchFetcher{cfg: cfg, logger: logger, rec: rec}
}

// FetchFunc fetches a single item by id
type FetchFunc[T any] func(ctx context.Context, id string) (T, error)

// FetchAll fetches every id and returns the items that succeeded, in input order.
// Failed items are logged and dropped.
func FetchAll[T any](ctx context.Context, f *BatchFetcher, ids []string, fetchOne FetchFunc[T]) []T {
	results := make([]T, 0, len(ids))

	for start := 0; start < len(ids); start += f.cfg.BatchSize {
		if start > 0 && f.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				f.logger.Warn("Fetch cancelled between batches",
					zap.Int("fetched", len(results)),
					zap.Int("remaining", len(ids)-start),
					zap.Error(ctx.Err()))
				return results
			case <-time.After(f.cfg.Delay):
			}
		}
		if ctx.Err() != nil {
			return results
		}

		end := min(start+f.cfg.BatchSize, len(ids))
		chunk := ids[start:end]
		items := make([]T, len(chunk))
		ok := make([]bool, len(chunk))

		var g errgroup.Group
		for i, id := range chunk {
			g.Go(func() error {
				item, err := fetchWithRetry(ctx, f, id, fetchOne)
				if err != nil {
					f.rec.FetchFailed()
					f.logger.Warn("Dropping item after failed fetch",
						zap.String("id", id),
						zap.Error(err))
					return nil
				}
				items[i] = item
				ok[i] = true
				return nil
			})
		}
		_ = g.Wait()

		for i := range chunk {
			if ok[i] {
				results = append(results, items[i])
			}
		}
	}

	return results
}

func fetchWithRetry[T any](ctx context.Context, f *BatchFetcher, id string, fetchOne FetchFunc[T]) (T, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     f.cfg.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         f.cfg.BaseDelay << f.cfg.MaxRetries,
	}

	op := func() (T, error) {
		item, err := fetchOne(ctx, id)
		if err != nil && errors.Is(err, ErrAuthentication) {
			return item, backoff.Permanent(err)
		}
		return item, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(f.cfg.MaxRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			f.logger.Debug("Retrying fetch",
				zap.String("id", id),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)
}
