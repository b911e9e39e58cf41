package config

import (
	"time"
)

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	DefaultPageSize int64
	MaxPageSize     int64
}

// GmailConfig represents the configuration of the Gmail provider
type GmailConfig struct {
	Query          string
	Format         string
	QuotaPerSecond int
	Endpoint       string
}

// FetcherConfig represents the batch fetcher pacing
type FetcherConfig struct {
	BatchSize  int
	BatchDelay time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region    string
	ModelID   string
	MaxTokens int
	TopP      float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey    string
	ModelName string
	MaxTokens int
	TopP      float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey    string
	ModelName string
	MaxTokens int
	TopP      float32
	BaseURL   string
}

// ClassifierConfig represents the classifier tuning
type ClassifierConfig struct {
	MaxBodySize       int
	Temperature       float32
	Concurrency       int
	FAQMatchThreshold float64
	FAQs              []string
}

// PrefilterConfig represents the prefilter keyword and sender lists
type PrefilterConfig struct {
	Keywords           []string
	WhitelistedDomains []string
}

// CacheConfig represents the cache backend configuration
type CacheConfig struct {
	Enabled             bool
	Type                string
	TTL                 time.Duration
	SQLitePath          string
	MySQLDSN            string
	ValkeyAddress       string
	FirestoreProject    string
	FirestoreCollection string
}

// GetServer returns the server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:   c.GetString("server.listen_address"),
		ReadTimeout:     c.v.GetDuration("server.read_timeout"),
		WriteTimeout:    c.v.GetDuration("server.write_timeout"),
		ShutdownTimeout: c.v.GetDuration("server.shutdown_timeout"),
		DefaultPageSize: c.v.GetInt64("server.default_page_size"),
		MaxPageSize:     c.v.GetInt64("server.max_page_size"),
	}
}

// GetGmail returns the Gmail configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		Query:          c.GetString("gmail.query"),
		Format:         c.GetString("gmail.format"),
		QuotaPerSecond: c.GetInt("gmail.quota_per_second"),
		Endpoint:       c.GetString("gmail.endpoint"),
	}
}

// GetFetcher returns the batch fetcher configuration
func (c *Config) GetFetcher() FetcherConfig {
	return FetcherConfig{
		BatchSize:  c.GetInt("fetcher.batch_size"),
		BatchDelay: c.v.GetDuration("fetcher.batch_delay"),
		MaxRetries: c.GetInt("fetcher.max_retries"),
		BaseDelay:  c.v.GetDuration("fetcher.base_delay"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:    c.GetString("bedrock.region"),
		ModelID:   c.GetString("bedrock.model_id"),
		MaxTokens: c.GetInt("bedrock.max_tokens"),
		TopP:      float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:    c.GetString("gemini.api_key"),
		ModelName: c.GetString("gemini.model_name"),
		MaxTokens: c.GetInt("gemini.max_tokens"),
		TopP:      float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:    c.GetString("openai.api_key"),
		ModelName: c.GetString("openai.model_name"),
		MaxTokens: c.GetInt("openai.max_tokens"),
		TopP:      float32(c.GetFloat64("openai.top_p")),
		BaseURL:   c.GetString("openai.base_url"),
	}
}

// GetClassifier returns the classifier configuration including the FAQ list
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		MaxBodySize:       c.GetInt("classifier.max_body_size"),
		Temperature:       float32(c.GetFloat64("classifier.temperature")),
		Concurrency:       c.GetInt("classifier.concurrency"),
		FAQMatchThreshold: c.GetFloat64("classifier.faq_match_threshold"),
		FAQs:              c.GetStringSlice("faq.questions"),
	}
}

// GetPrefilter returns the prefilter configuration
func (c *Config) GetPrefilter() PrefilterConfig {
	return PrefilterConfig{
		Keywords:           c.GetStringSlice("prefilter.keywords"),
		WhitelistedDomains: c.GetStringSlice("prefilter.whitelisted_domains"),
	}
}

// GetCache returns the cache configuration. The TTL is configured in days.
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Enabled:             c.GetBool("cache.enabled"),
		Type:                c.GetString("cache.type"),
		TTL:                 time.Duration(c.GetInt("cache.ttl_days")) * 24 * time.Hour,
		SQLitePath:          c.GetString("cache.sqlite_path"),
		MySQLDSN:            c.GetString("cache.mysql_dsn"),
		ValkeyAddress:       c.GetString("cache.valkey_address"),
		FirestoreProject:    c.GetString("cache.firestore_project"),
		FirestoreCollection: c.GetString("cache.firestore_collection"),
	}
}

// GetRateLimitCooldown returns the per-session cooldown between ingest calls
func (c *Config) GetRateLimitCooldown() time.Duration {
	return c.v.GetDuration("ratelimit.cooldown")
}
