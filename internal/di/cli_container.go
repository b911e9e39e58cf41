package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/factory"
	"github.com/mikey/inbox-triage/internal/logging"
)

// CLIFlags contains the command line flags shared by all triage-cli commands
type CLIFlags struct {
	// LLM provider flags
	Provider  string
	ModelName string
	APIKey    string
	MaxTokens int

	// Classifier flags
	MaxBodySize int
	FAQs        []string

	// Prefilter flags
	Whitelist []string

	// Cache flags
	CacheType string

	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// BuildCLIContainer creates the dependency injection container of the CLI.
// Providers are constructed lazily so commands only build what they use.
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.New(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
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

	return container, nil
}

// applyFlags overrides configuration values with the flags that were given
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	if flags.Provider != "" {
		cfg.Set("llm.provider", flags.Provider)
	}
	provider := cfg.GetLLM().Provider

	modelKey := provider + ".model_name"
	if provider == "bedrock" {
		modelKey = "bedrock.model_id"
	}
	if flags.ModelName != "" {
		cfg.Set(modelKey, flags.ModelName)
	}
	if flags.APIKey != "" && provider != "bedrock" {
		cfg.Set(provider+".api_key", flags.APIKey)
	}
	if flags.MaxTokens > 0 {
		cfg.Set(provider+".max_tokens", flags.MaxTokens)
	}

	if flags.MaxBodySize > 0 {
		cfg.Set("classifier.max_body_size", flags.MaxBodySize)
	}
	if len(flags.FAQs) > 0 {
		cfg.Set("faq.questions", flags.FAQs)
	}
	if len(flags.Whitelist) > 0 {
		cfg.Set("prefilter.whitelisted_domains", flags.Whitelist)
	}
	if flags.CacheType != "" {
		cfg.Set("cache.type", flags.CacheType)
	}
}
