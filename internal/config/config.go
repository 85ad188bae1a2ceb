package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/catalog-updater/internal/cost"
)

// DefaultCategories are the disease categories searched when none are
// configured.
var DefaultCategories = []string{
	"Neurodegenerative",
	"Neoplasm",
	"Cerebrovascular",
	"Psychiatric",
	"Spinal",
	"Neurodevelopmental",
}

// Config holds the full application configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Pricing  cost.Rates     `yaml:"pricing" mapstructure:"pricing"`

	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// LLMConfig selects and configures the text-generation service.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExtractConfig configures chunking, extraction retries and merging.
type ExtractConfig struct {
	MaxAttempts      int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMs        int    `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	MaxWords         int    `yaml:"max_words" mapstructure:"max_words"`
	OverlapSentences int    `yaml:"overlap_sentences" mapstructure:"overlap_sentences"`
	MergePolicy      string `yaml:"merge_policy" mapstructure:"merge_policy"`
}

// SearchConfig holds search provider credentials.
type SearchConfig struct {
	SerperKey       string `yaml:"serper_key" mapstructure:"serper_key"`
	SerperBaseURL   string `yaml:"serper_base_url" mapstructure:"serper_base_url"`
	TavilyKey       string `yaml:"tavily_key" mapstructure:"tavily_key"`
	TavilyBaseURL   string `yaml:"tavily_base_url" mapstructure:"tavily_base_url"`
	JinaKey         string `yaml:"jina_key" mapstructure:"jina_key"`
	JinaBaseURL     string `yaml:"jina_base_url" mapstructure:"jina_base_url"`
	JinaSearchURL   string `yaml:"jina_search_url" mapstructure:"jina_search_url"`
	ResultsPerQuery int    `yaml:"results_per_query" mapstructure:"results_per_query"`
}

// FetchConfig configures page retrieval.
type FetchConfig struct {
	TimeoutSecs   int       `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBytes      int64     `yaml:"max_bytes" mapstructure:"max_bytes"`
	UserAgent     string    `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots bool      `yaml:"respect_robots" mapstructure:"respect_robots"`
	CacheTTLHours int       `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	JinaFallback  bool      `yaml:"jina_fallback" mapstructure:"jina_fallback"`
	OCR           OCRConfig `yaml:"ocr" mapstructure:"ocr"`
}

// OCRConfig configures text recovery for PDFs without a text layer.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_key" mapstructure:"mistral_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// PipelineConfig configures the update run.
type PipelineConfig struct {
	Categories         []string `yaml:"categories" mapstructure:"categories"`
	CategoriesFile     string   `yaml:"categories_file" mapstructure:"categories_file"`
	QueriesPerCategory int      `yaml:"queries_per_category" mapstructure:"queries_per_category"`
	URLConcurrency     int      `yaml:"url_concurrency" mapstructure:"url_concurrency"`
	SearchDelayMs      int      `yaml:"search_delay_ms" mapstructure:"search_delay_ms"`
	FetchDelayMs       int      `yaml:"fetch_delay_ms" mapstructure:"fetch_delay_ms"`
}

// CatalogConfig locates the catalog and its outputs.
type CatalogConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	Path           string `yaml:"path" mapstructure:"path"`
	OutputDir      string `yaml:"output_dir" mapstructure:"output_dir"`
	IncludeOutputs bool   `yaml:"include_outputs" mapstructure:"include_outputs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run health checks and alerting.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	SkipRateThreshold    float64 `yaml:"skip_rate_threshold" mapstructure:"skip_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.max_tokens", 5000)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout_secs", 120)
	v.SetDefault("extract.max_attempts", 3)
	v.SetDefault("extract.backoff_ms", 2000)
	v.SetDefault("extract.max_words", 3000)
	v.SetDefault("extract.overlap_sentences", 1)
	v.SetDefault("extract.merge_policy", "first_match")
	v.SetDefault("search.serper_base_url", "https://google.serper.dev")
	v.SetDefault("search.tavily_base_url", "https://api.tavily.com")
	v.SetDefault("search.jina_base_url", "https://r.jina.ai")
	v.SetDefault("search.jina_search_url", "https://s.jina.ai")
	v.SetDefault("search.results_per_query", 5)
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_bytes", 10<<20)
	v.SetDefault("fetch.user_agent", "catalog-updater/1.0 (+https://github.com/sells-group/catalog-updater)")
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.cache_ttl_hours", 24)
	v.SetDefault("fetch.jina_fallback", true)
	v.SetDefault("fetch.ocr.provider", "none")
	v.SetDefault("fetch.ocr.pdftotext_path", "pdftotext")
	v.SetDefault("pipeline.categories", DefaultCategories)
	v.SetDefault("pipeline.queries_per_category", 5)
	v.SetDefault("pipeline.url_concurrency", 1)
	v.SetDefault("pipeline.search_delay_ms", 2000)
	v.SetDefault("pipeline.fetch_delay_ms", 3000)
	v.SetDefault("catalog.driver", "xlsx")
	v.SetDefault("catalog.path", "catalog.xlsx")
	v.SetDefault("catalog.output_dir", ".")
	v.SetDefault("catalog.include_outputs", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "catalog-updater.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 168)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.skip_rate_threshold", 0.8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
