package factory

import (
	"fmt"
	"net/http"

	"github.com/mikey/inbox-triage/internal/adapters/httpapi"
	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/metrics"
	"github.com/mikey/inbox-triage/internal/ratelimit"
	"go.uber.org/zap"
)

// ServerFactory creates the frontend serving the ingestion service
type ServerFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	service   *core.IngestionService
	providers core.MailProviderFactory
	gate      *ratelimit.Gate
	metrics   *metrics.Metrics
}

// NewServerFactory creates a new server factory
func NewServerFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.IngestionService,
	providers core.MailProviderFactory,
	gate *ratelimit.Gate,
	m *metrics.Metrics,
) *ServerFactory {
	return &ServerFactory{
		cfg:       cfg,
		logger:    logger,
		service:   service,
		providers: providers,
		gate:      gate,
		metrics:   m,
	}
}

// CreateFrontend creates the HTTP frontend
func (f *ServerFactory) CreateFrontend() (core.Frontend, error) {
	srv := f.cfg.GetServer()
	if srv.ListenAddress == "" {
		return nil, fmt.Errorf("server.listen_address is required")
	}

	var metricsHandler http.Handler
	if f.cfg.GetBool("metrics.enabled") {
		metricsHandler = f.metrics.Handler()
	}

	return httpapi.NewServer(
		f.service,
		f.providers,
		f.gate,
		f.metrics,
		httpapi.Options{
			ListenAddress:   srv.ListenAddress,
			ReadTimeout:     srv.ReadTimeout,
			WriteTimeout:    srv.WriteTimeout,
			ShutdownTimeout: srv.ShutdownTimeout,
			MetricsHandler:  metricsHandler,
		},
		f.logger.Named("http"),
	), nil
}
