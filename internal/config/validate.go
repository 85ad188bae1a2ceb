package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-updater/internal/merge"
)

// Validate checks the settings a command mode depends on.
// Modes: "update", "serve", "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "update":
		if c.LLM.APIKey == "" {
			errs = append(errs, "llm.api_key is required")
		}
		switch c.LLM.Provider {
		case "anthropic", "openai":
		default:
			errs = append(errs, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
		}
		if c.Search.SerperKey == "" && c.Search.TavilyKey == "" && c.Search.JinaKey == "" {
			errs = append(errs, "at least one of search.serper_key, search.tavily_key, search.jina_key is required")
		}
		if c.Extract.MaxAttempts < 1 {
			errs = append(errs, "extract.max_attempts must be >= 1")
		}
		if c.Extract.MaxWords < 1 {
			errs = append(errs, "extract.max_words must be >= 1")
		}
		if c.Extract.OverlapSentences < 0 {
			errs = append(errs, "extract.overlap_sentences must be >= 0")
		}
		if _, err := merge.ByName(c.Extract.MergePolicy); err != nil {
			errs = append(errs, err.Error())
		}
		if c.Pipeline.URLConcurrency < 1 || c.Pipeline.URLConcurrency > 32 {
			errs = append(errs, "pipeline.url_concurrency must be between 1 and 32")
		}
		switch c.Catalog.Driver {
		case "xlsx":
			if c.Catalog.Path == "" {
				errs = append(errs, "catalog.path is required")
			}
		case "sql":
			if c.Store.Driver == "none" {
				errs = append(errs, "catalog.driver sql requires a store")
			}
		default:
			errs = append(errs, fmt.Sprintf("catalog.driver %q is not supported", c.Catalog.Driver))
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Store.Driver == "none" {
			errs = append(errs, "store.driver must not be none")
		}
		if c.Monitoring.Enabled {
			if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
				errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
			}
			if c.Monitoring.SkipRateThreshold < 0 || c.Monitoring.SkipRateThreshold > 1 {
				errs = append(errs, "monitoring.skip_rate_threshold must be between 0 and 1")
			}
			if c.Monitoring.LookbackWindowHours <= 0 {
				errs = append(errs, "monitoring.lookback_window_hours must be > 0")
			}
		}
	case "runs":
		if c.Store.Driver == "none" {
			errs = append(errs, "store.driver must not be none")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
