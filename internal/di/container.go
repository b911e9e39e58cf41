package di

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/factory"
	"github.com/mikey/inbox-triage/internal/logging"
	"github.com/mikey/inbox-triage/internal/metrics"
	"github.com/mikey/inbox-triage/internal/ratelimit"
	"github.com/mikey/inbox-triage/internal/utils"
	"github.com/mikey/inbox-triage/internal/whitelist"
)

// BuildContainer creates and configures the dependency injection container
// of the HTTP service. An empty configPath searches the default locations.
func BuildContainer(configPath string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.New(configPath)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideMetrics(container); err != nil {
		return nil, err
	}
	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register cache
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory, repo core.CacheRepository) *core.AnalysisCache {
		return f.CreateAnalysisCache(repo)
	}); err != nil {
		return nil, err
	}

	// Register fetcher
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger, rec core.Recorder) *core.BatchFetcher {
		fc := cfg.GetFetcher()
		return core.NewBatchFetcher(core.FetcherConfig{
			BatchSize:  fc.BatchSize,
			Delay:      fc.BatchDelay,
			MaxRetries: fc.MaxRetries,
			BaseDelay:  fc.BaseDelay,
		}, logger.Named("fetcher"), rec)
	}); err != nil {
		return nil, err
	}

	// Register ingestion service
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		fetcher *core.BatchFetcher,
		prefilter *core.Prefilter,
		cache *core.AnalysisCache,
		classifier *core.Classifier,
		text *utils.TextProcessor,
		rec core.Recorder,
	) *core.IngestionService {
		srv := cfg.GetServer()
		cc := cfg.GetClassifier()
		return core.NewIngestionService(fetcher, prefilter, cache, classifier, text, core.IngestionConfig{
			Query:           cfg.GetGmail().Query,
			DefaultPageSize: srv.DefaultPageSize,
			MaxPageSize:     srv.MaxPageSize,
			Concurrency:     cc.Concurrency,
			FAQs:            cc.FAQs,
		}, logger.Named("ingest"), rec)
	}); err != nil {
		return nil, err
	}

	// Register session rate limit gate
	if err := container.Provide(func(cfg *config.Config) *ratelimit.Gate {
		return ratelimit.NewGate(cfg.GetRateLimitCooldown(), time.Now)
	}); err != nil {
		return nil, err
	}

	// Register mail provider
	if err := container.Provide(factory.NewMailFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.MailFactory) core.MailProviderFactory {
		return f.CreateProviderFactory()
	}); err != nil {
		return nil, err
	}

	// Register frontend
	if err := container.Provide(factory.NewServerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ServerFactory) (core.Frontend, error) {
		return f.CreateFrontend()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

func provideMetrics(container *dig.Container) error {
	if err := container.Provide(metrics.New); err != nil {
		return err
	}
	return container.Provide(func(m *metrics.Metrics) core.Recorder { return m })
}

// providePipeline registers the text processor, the LLM client, the
// prefilter and the classifier, which the CLI shares with the service
func providePipeline(container *dig.Container) error {
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return err
	}

	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.Prefilter {
		pc := cfg.GetPrefilter()
		if len(pc.WhitelistedDomains) > 0 {
			logger.Info("Loaded whitelisted domains", zap.Strings("domains", pc.WhitelistedDomains))
		}
		return core.NewPrefilter(pc.Keywords, whitelist.NewChecker(pc.WhitelistedDomains, logger))
	}); err != nil {
		return err
	}

	return container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		llm core.LLMClient,
		text *utils.TextProcessor,
	) *core.Classifier {
		cc := cfg.GetClassifier()
		return core.NewClassifier(llm, text, core.ClassifierConfig{
			MaxBodySize:       cc.MaxBodySize,
			Temperature:       cc.Temperature,
			FAQMatchThreshold: cc.FAQMatchThreshold,
		}, logger.Named("classifier"))
	})
}
