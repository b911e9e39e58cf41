// Package gmail reads threads from the Gmail API on behalf of a bearer token
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/inbox-triage/internal/adapters/rawmail"
	"github.com/mikey/inbox-triage/internal/core"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Gmail quota units per call
const (
	unitsThreadsList = 10
	unitsThreadsGet  = 10
	unitsMessagesGet = 5
)

// Fetch formats
const (
	FormatFull     = "full"
	FormatMetadata = "metadata"
	FormatRaw      = "raw"
)

// Config holds the Gmail adapter settings
type Config struct {
	Format         string
	QuotaPerSecond int
	// Endpoint overrides the API base URL
	Endpoint string
}

// Factory opens Gmail clients that share one quota limiter
type Factory struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFactory creates a new factory for Gmail clients
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	switch cfg.Format {
	case FormatFull, FormatMetadata, FormatRaw:
	default:
		cfg.Format = FormatFull
	}
	if cfg.QuotaPerSecond < unitsThreadsList {
		cfg.QuotaPerSecond = 250
	}
	return &Factory{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.QuotaPerSecond), cfg.QuotaPerSecond),
		logger:  logger,
	}
}

// ForToken creates a client authenticated with accessToken
func (f *Factory) ForToken(ctx context.Context, accessToken string) (core.MailProvider, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if f.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(f.cfg.Endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:     svc.Users,
		limiter: f.limiter,
		format:  f.cfg.Format,
		logger:  f.logger,
	}, nil
}

// Client implements core.MailProvider over the Gmail users service
type Client struct {
	svc     *gmail.UsersService
	limiter *rate.Limiter
	format  string
	logger  *zap.Logger
}

func (c *Client) wait(ctx context.Context, units int) error {
	if err := c.limiter.WaitN(ctx, units); err != nil {
		return fmt.Errorf("gmail quota wait: %w", err)
	}
	return nil
}

// ListThreads returns a page of thread ids matching query
func (c *Client) ListThreads(ctx context.Context, query, pageToken string, pageSize int64) (*core.ThreadPage, error) {
	if err := c.wait(ctx, unitsThreadsList); err != nil {
		return nil, err
	}

	req := c.svc.Threads.List("me").Q(query).Context(ctx)
	if pageSize > 0 {
		req = req.MaxResults(pageSize)
	}
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}

	res, err := req.Do()
	if err != nil {
		return nil, mapError(err)
	}

	page := &core.ThreadPage{
		ThreadIDs:     make([]string, 0, len(res.Threads)),
		NextPageToken: res.NextPageToken,
	}
	for _, t := range res.Threads {
		page.ThreadIDs = append(page.ThreadIDs, t.Id)
	}

	c.logger.Debug("Listed threads",
		zap.Int("count", len(page.ThreadIDs)),
		zap.Bool("has_more", page.NextPageToken != ""))
	return page, nil
}

// GetThread returns the latest message of a thread
func (c *Client) GetThread(ctx context.Context, threadID string) (*core.RawMessage, error) {
	if err := c.wait(ctx, unitsThreadsGet); err != nil {
		return nil, err
	}

	format := c.format
	if format == FormatRaw {
		format = "minimal"
	}
	thread, err := c.svc.Threads.Get("me", threadID).Format(format).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}

	latest := latestMessage(thread.Messages)
	if latest == nil {
		return nil, &core.ProviderError{Provider: "gmail", StatusCode: 404, Err: fmt.Errorf("thread %s has no messages", threadID)}
	}

	if c.format == FormatRaw {
		return c.getRaw(ctx, latest.Id)
	}
	return convertMessage(latest), nil
}

func (c *Client) getRaw(ctx context.Context, messageID string) (*core.RawMessage, error) {
	if err := c.wait(ctx, unitsMessagesGet); err != nil {
		return nil, err
	}

	m, err := c.svc.Messages.Get("me", messageID).Format(FormatRaw).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}

	data, err := base64.URLEncoding.DecodeString(m.Raw)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(m.Raw)
	}
	if err != nil {
		return nil, &core.ProviderError{Provider: "gmail", Err: fmt.Errorf("failed to decode raw message: %w", err)}
	}

	msg, err := rawmail.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &core.ProviderError{Provider: "gmail", Err: err}
	}
	msg.ID = m.Id
	msg.ThreadID = m.ThreadId
	msg.LabelIDs = m.LabelIds
	msg.Snippet = m.Snippet
	if m.InternalDate > 0 {
		msg.ReceivedAt = time.UnixMilli(m.InternalDate)
	}
	return msg, nil
}

func latestMessage(messages []*gmail.Message) *gmail.Message {
	var latest *gmail.Message
	for _, m := range messages {
		if latest == nil || m.InternalDate >= latest.InternalDate {
			latest = m
		}
	}
	return latest
}

func convertMessage(m *gmail.Message) *core.RawMessage {
	msg := &core.RawMessage{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		LabelIDs: m.LabelIds,
		Snippet:  m.Snippet,
		Payload:  convertPart(m.Payload),
	}
	if m.InternalDate > 0 {
		msg.ReceivedAt = time.UnixMilli(m.InternalDate)
	}
	if msg.Payload != nil {
		msg.Headers = msg.Payload.Headers
	}
	return msg
}

func convertPart(p *gmail.MessagePart) *core.MessagePart {
	if p == nil {
		return nil
	}
	part := &core.MessagePart{
		MimeType: strings.ToLower(p.MimeType),
		Filename: p.Filename,
	}
	for _, h := range p.Headers {
		part.Headers = append(part.Headers, core.Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil && p.Body.Data != "" {
		part.Body = &core.MessageBody{Data: p.Body.Data, Size: p.Body.Size}
	}
	for _, child := range p.Parts {
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}
