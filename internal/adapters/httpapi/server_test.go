package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubIngester struct {
	lastReq     core.IngestRequest
	ingestErr   error
	analyzeErr  error
	invalidated []string
	analyzed    []core.EmailInput
}

func (s *stubIngester) Ingest(_ context.Context, _ core.MailProvider, req core.IngestRequest) (*core.IngestResponse, error) {
	s.lastReq = req
	if s.ingestErr != nil {
		return nil, s.ingestErr
	}
	return &core.IngestResponse{
		Emails:        []*core.EnrichedEmail{{ID: "m1", ThreadID: "t1", Subject: "Refund please"}},
		HasMore:       true,
		NextPageToken: "next",
	}, nil
}

func (s *stubIngester) Analyze(_ context.Context, emails []core.EmailInput) ([]*core.ClassificationResult, error) {
	s.analyzed = emails
	if s.analyzeErr != nil {
		return nil, s.analyzeErr
	}
	out := make([]*core.ClassificationResult, len(emails))
	for i := range emails {
		out[i] = &core.ClassificationResult{IsSupport: true, Category: "billing"}
	}
	return out, nil
}

func (s *stubIngester) Invalidate(_ context.Context, threadID string) error {
	s.invalidated = append(s.invalidated, threadID)
	return nil
}

type stubProviders struct {
	tokens []string
	err    error
}

func (p *stubProviders) ForToken(_ context.Context, token string) (core.MailProvider, error) {
	p.tokens = append(p.tokens, token)
	return nil, p.err
}

type countingRecorder struct {
	routes map[string]int
}

func (c *countingRecorder) HTTPRequest(route string, code int) {
	c.routes[fmt.Sprintf("%s:%d", route, code)]++
}

type fixture struct {
	service   *stubIngester
	providers *stubProviders
	recorder  *countingRecorder
	handler   http.Handler
}

func newFixture(t *testing.T, gate *ratelimit.Gate) *fixture {
	f := &fixture{
		service:   &stubIngester{},
		providers: &stubProviders{},
		recorder:  &countingRecorder{routes: map[string]int{}},
	}
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("triage_prefiltered_total 0\n"))
	})
	srv := NewServer(f.service, f.providers, gate, f.recorder,
		Options{MetricsHandler: metricsHandler}, zaptest.NewLogger(t))
	f.handler = srv.Handler()
	return f
}

func (f *fixture) do(method, target, token string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestEmailsEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/emails?pageSize=5&pageToken=abc&forceRefresh=true", "tok", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp core.IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.HasMore)
	assert.Equal(t, "next", resp.NextPageToken)
	require.Len(t, resp.Emails, 1)
	assert.Equal(t, "t1", resp.Emails[0].ThreadID)

	assert.Equal(t, core.IngestRequest{PageToken: "abc", PageSize: 5, ForceRefresh: true}, f.service.lastReq)
	assert.Equal(t, []string{"tok"}, f.providers.tokens)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, 1, f.recorder.routes["emails:200"])
}

func TestEmailsHeaderParameters(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/emails", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("X-Page-Token", "p2")
	req.Header.Set("X-Page-Size", "7")
	req.Header.Set("X-Force-Refresh", "1")
	req.Header.Set(requestIDHeader, "fixed-id")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.IngestRequest{PageToken: "p2", PageSize: 7, ForceRefresh: true}, f.service.lastReq)
	assert.Equal(t, "fixed-id", rec.Header().Get(requestIDHeader))
}

func TestEmailsErrors(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		target     string
		ingestErr  error
		wantStatus int
		wantRetry  string
	}{
		{name: "missing token", target: "/api/emails", wantStatus: http.StatusUnauthorized},
		{name: "bad page size", token: "tok", target: "/api/emails?pageSize=zero", wantStatus: http.StatusBadRequest},
		{name: "bad force flag", token: "tok", target: "/api/emails?forceRefresh=maybe", wantStatus: http.StatusBadRequest},
		{
			name:       "expired token",
			token:      "tok",
			target:     "/api/emails",
			ingestErr:  fmt.Errorf("failed to list threads: %w", core.ErrAuthentication),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "provider quota",
			token:      "tok",
			target:     "/api/emails",
			ingestErr:  &core.RateLimitError{RetryAfter: 1500 * time.Millisecond},
			wantStatus: http.StatusTooManyRequests,
			wantRetry:  "2",
		},
		{
			name:       "provider outage",
			token:      "tok",
			target:     "/api/emails",
			ingestErr:  &core.ProviderError{Provider: "gmail", StatusCode: 503, Err: errors.New("backend error")},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unexpected",
			token:      "tok",
			target:     "/api/emails",
			ingestErr:  errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.service.ingestErr = tt.ingestErr

			rec := f.do(http.MethodGet, tt.target, tt.token, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRetry, rec.Header().Get("Retry-After"))
			assert.NotEmpty(t, decodeError(t, rec).Error)
		})
	}
}

func TestEmailsSessionCooldown(t *testing.T) {
	now := time.Unix(1700000000, 0)
	gate := ratelimit.NewGate(5*time.Second, func() time.Time { return now })
	f := newFixture(t, gate)

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/emails", "alice", "").Code)

	rec := f.do(http.MethodGet, "/api/emails", "alice", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.Equal(t, 5, decodeError(t, rec).RetryAfter)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/emails", "bob", "").Code,
		"another session is not affected")

	now = now.Add(5 * time.Second)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/emails", "alice", "").Code)
}

func TestAnalyzeEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/analyze",
		"", `{"emails":[{"subject":"Refund","content":"I was charged twice"},{"subject":"Hi","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, "I was charged twice", f.service.analyzed[0].Content)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/analyze", "", `{"emails":[]}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/analyze", "", `not json`).Code)

	f.service.analyzeErr = core.ErrInvalidResponseFormat
	assert.Equal(t, http.StatusBadGateway,
		f.do(http.MethodPost, "/api/analyze", "", `{"emails":[{"subject":"a","content":"b"}]}`).Code)
}

func TestInvalidateEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodDelete, "/api/analysis/thread-9", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"thread-9"}, f.service.invalidated)
}

func TestOperationalEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = f.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "triage_prefiltered_total")

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPost, "/api/emails", "tok", "").Code)
}

func TestPanicRecovery(t *testing.T) {
	srv := NewServer(&panickyIngester{}, &stubProviders{}, nil, nil, Options{}, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/emails", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panickyIngester struct{ stubIngester }

func (panickyIngester) Ingest(context.Context, core.MailProvider, core.IngestRequest) (*core.IngestResponse, error) {
	panic("nil map")
}
