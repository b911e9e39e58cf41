package core

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HTMLConverter renders html content as plain text
type HTMLConverter interface {
	HTMLToText(html string) string
}

// IngestRequest is a request for one page of enriched emails
type IngestRequest struct {
	PageToken    string
	PageSize     int64
	ForceRefresh bool
}

// IngestResponse is one page of enriched emails
type IngestResponse struct {
	Emails        []*EnrichedEmail `json:"emails"`
	HasMore       bool             `json:"hasMore"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

// IngestionConfig holds the orchestration settings of the ingestion service
type IngestionConfig struct {
	Query           string
	DefaultPageSize int64
	MaxPageSize     int64
	Concurrency     int
	FAQs            []string
}

// IngestionService is the core service composing fetch, prefilter, cache and classification
type IngestionService struct {
	fetcher    *BatchFetcher
	prefilter  *Prefilter
	cache      *AnalysisCache
	classifier *Classifier
	html       HTMLConverter
	cfg        IngestionConfig
	logger     *zap.Logger
	rec        Recorder
}

// NewIngestionService creates a new ingestion service. A nil cache disables caching.
func NewIngestionService(
	fetcher *BatchFetcher,
	prefilter *Prefilter,
	cache *AnalysisCache,
	classifier *Classifier,
	html HTMLConverter,
	cfg IngestionConfig,
	logger *zap.Logger,
	rec Recorder,
) *IngestionService {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if rec == nil {
		rec = NopRecorder()
	}
	return &IngestionService{
		fetcher:    fetcher,
		prefilter:  prefilter,
		cache:      cache,
		classifier: classifier,
		html:       html,
		cfg:        cfg,
		logger:     logger,
		rec:        rec,
	}
}

// candidate is an email that passed the prefilter and awaits an analysis
type candidate struct {
	email *EnrichedEmail
	input EmailInput
}

// Ingest returns one page of enriched emails from the provider's mailbox.
// Only the thread listing can fail the request; per-email failures are isolated.
func (s *IngestionService) Ingest(ctx context.Context, provider MailProvider, req IngestRequest) (*IngestResponse, error) {
	started := time.Now()
	pageSize := s.pageSize(req.PageSize)

	page, err := provider.ListThreads(ctx, s.cfg.Query, req.PageToken, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	messages := FetchAll[*RawMessage](ctx, s.fetcher, page.ThreadIDs, provider.GetThread)

	var misses []*candidate
	emails := make([]*EnrichedEmail, 0, len(messages))
	for _, msg := range messages {
		c := s.enrich(msg)
		allowed := s.prefilter.Allow(c.email.From, c.input.Subject, c.input.Content)

		var entry *CacheEntry
		var fresh bool
		if s.cache != nil && (allowed || req.ForceRefresh) {
			entry, fresh = s.lookup(ctx, c.email.ThreadID)
		}

		if !allowed && !(req.ForceRefresh && entry != nil) {
			s.rec.Prefiltered()
			s.logger.Debug("Email skipped by prefilter",
				zap.String("thread_id", c.email.ThreadID),
				zap.String("subject", c.input.Subject))
			continue
		}

		emails = append(emails, c.email)
		if fresh && !req.ForceRefresh {
			result := entry.Result
			c.email.Analysis = &result
			c.email.Source = SourceCache
			continue
		}
		misses = append(misses, c)
	}

	s.classifyAll(ctx, misses)

	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Date.After(emails[j].Date)
	})
	if int64(len(emails)) > pageSize {
		emails = emails[:pageSize]
	}

	s.rec.Ingested(time.Since(started), len(emails))
	s.logger.Info("Ingested page",
		zap.Int("threads", len(page.ThreadIDs)),
		zap.Int("fetched", len(messages)),
		zap.Int("returned", len(emails)),
		zap.Int("classified", len(misses)),
		zap.Bool("force_refresh", req.ForceRefresh))

	return &IngestResponse{
		Emails:        emails,
		HasMore:       page.NextPageToken != "",
		NextPageToken: page.NextPageToken,
	}, nil
}

// Analyze classifies ad hoc emails in one batch call, without touching the cache
func (s *IngestionService) Analyze(ctx context.Context, emails []EmailInput) ([]*ClassificationResult, error) {
	results, err := s.classifier.ClassifyBatch(ctx, emails, s.cfg.FAQs)
	if err != nil {
		s.rec.Classification("error")
		return nil, err
	}
	s.rec.Classification("success")
	return results, nil
}

// Invalidate removes the cached analysis of a thread
func (s *IngestionService) Invalidate(ctx context.Context, threadID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, threadID)
}

func (s *IngestionService) pageSize(requested int64) int64 {
	size := requested
	if size <= 0 {
		size = s.cfg.DefaultPageSize
	}
	if s.cfg.MaxPageSize > 0 && size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	return size
}

func (s *IngestionService) lookup(ctx context.Context, threadID string) (*CacheEntry, bool) {
	entry, fresh, err := s.cache.Get(ctx, threadID)
	if err != nil {
		s.logger.Warn("Cache lookup failed, treating as miss",
			zap.String("thread_id", threadID),
			zap.Error(err))
		s.rec.CacheLookup(false)
		return nil, false
	}
	s.rec.CacheLookup(entry != nil && fresh)
	return entry, fresh
}

func (s *IngestionService) classifyAll(ctx context.Context, misses []*candidate) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, c := range misses {
		g.Go(func() error {
			c.email.Source = SourceFresh

			result, err := s.classifier.Classify(gctx, c.input, s.cfg.FAQs)
			if err != nil {
				s.rec.Classification("error")
				s.logger.Error("Failed to classify email",
					zap.String("thread_id", c.email.ThreadID),
					zap.Error(err))
				c.email.AnalysisError = err.Error()
				return nil
			}
			s.rec.Classification("success")
			c.email.Analysis = result

			if s.cache != nil {
				if err := s.cache.Put(gctx, c.email.ThreadID, *result); err != nil {
					s.logger.Error("Failed to update cache",
						zap.String("thread_id", c.email.ThreadID),
						zap.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *IngestionService) enrich(msg *RawMessage) *candidate {
	content := Extract(msg)
	email := &EnrichedEmail{
		ID:       msg.ID,
		ThreadID: msg.ThreadID,
		Subject:  msg.Header("Subject"),
		From:     msg.Header("From"),
		To:       msg.Header("To"),
		Date:     messageDate(msg),
		Snippet:  msg.Snippet,
		Labels:   msg.LabelIDs,
		Content:  content,
	}

	return &candidate{
		email: email,
		input: ClassifierInput(msg, content, s.html),
	}
}

// ClassifierInput builds the text the classifier sees for msg. The plain text
// body is preferred, then the html body rendered by html, then the snippet.
func ClassifierInput(msg *RawMessage, content ExtractedContent, html HTMLConverter) EmailInput {
	body := content.Text
	if strings.TrimSpace(body) == "" && strings.TrimSpace(content.HTML) != "" && html != nil {
		body = html.HTMLToText(content.HTML)
	}
	if strings.TrimSpace(body) == "" {
		body = msg.Snippet
	}
	return EmailInput{Subject: msg.Header("Subject"), Content: body}
}

func messageDate(msg *RawMessage) time.Time {
	if !msg.ReceivedAt.IsZero() {
		return msg.ReceivedAt
	}
	if d, err := mail.ParseDate(msg.Header("Date")); err == nil {
		return d
	}
	return time.Time{}
}
