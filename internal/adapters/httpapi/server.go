// Package httpapi serves the ingestion service over HTTP
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ratelimit"
	"go.uber.org/zap"
)

// Ingester is the part of the ingestion service the HTTP layer calls
type Ingester interface {
	Ingest(ctx context.Context, provider core.MailProvider, req core.IngestRequest) (*core.IngestResponse, error)
	Analyze(ctx context.Context, emails []core.EmailInput) ([]*core.ClassificationResult, error)
	Invalidate(ctx context.Context, threadID string) error
}

// RequestRecorder counts served requests
type RequestRecorder interface {
	HTTPRequest(route string, code int)
}

// Options configures the HTTP server
type Options struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MetricsHandler is mounted on /metrics when set
	MetricsHandler http.Handler
}

// Server implements core.Frontend on net/http
type Server struct {
	service   Ingester
	providers core.MailProviderFactory
	gate      *ratelimit.Gate
	recorder  RequestRecorder
	opts      Options
	logger    *zap.Logger
	srv       *http.Server
}

// NewServer creates a new HTTP server. A nil gate admits every request.
func NewServer(
	service Ingester,
	providers core.MailProviderFactory,
	gate *ratelimit.Gate,
	recorder RequestRecorder,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 15 * time.Second
	}
	return &Server{
		service:   service,
		providers: providers,
		gate:      gate,
		recorder:  recorder,
		opts:      opts,
		logger:    logger,
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /api/emails", s.route("emails", s.handleEmails))
	mux.Handle("POST /api/analyze", s.route("analyze", s.handleAnalyze))
	mux.Handle("DELETE /api/analysis/{threadId}", s.route("invalidate", s.handleInvalidate))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.opts.MetricsHandler)
	}
	return s.requestID(s.recoverer(mux))
}

// Start begins serving in the background
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.opts.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	s.logger.Info("HTTP server starting", zap.String("address", s.opts.ListenAddress))

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests within the shutdown timeout
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
