package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 5000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.0, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 120, cfg.LLM.TimeoutSecs)
	assert.Equal(t, 3, cfg.Extract.MaxAttempts)
	assert.Equal(t, 2000, cfg.Extract.BackoffMs)
	assert.Equal(t, 3000, cfg.Extract.MaxWords)
	assert.Equal(t, 1, cfg.Extract.OverlapSentences)
	assert.Equal(t, "first_match", cfg.Extract.MergePolicy)
	assert.Equal(t, 5, cfg.Search.ResultsPerQuery)
	assert.Equal(t, "https://r.jina.ai", cfg.Search.JinaBaseURL)
	assert.Equal(t, 15, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, int64(10<<20), cfg.Fetch.MaxBytes)
	assert.True(t, cfg.Fetch.RespectRobots)
	assert.True(t, cfg.Fetch.JinaFallback)
	assert.Equal(t, 24, cfg.Fetch.CacheTTLHours)
	assert.Equal(t, "none", cfg.Fetch.OCR.Provider)
	assert.Equal(t, "pdftotext", cfg.Fetch.OCR.PdfToTextPath)
	assert.Equal(t, DefaultCategories, cfg.Pipeline.Categories)
	assert.Equal(t, 5, cfg.Pipeline.QueriesPerCategory)
	assert.Equal(t, 1, cfg.Pipeline.URLConcurrency)
	assert.Equal(t, 2000, cfg.Pipeline.SearchDelayMs)
	assert.Equal(t, 3000, cfg.Pipeline.FetchDelayMs)
	assert.Equal(t, "xlsx", cfg.Catalog.Driver)
	assert.True(t, cfg.Catalog.IncludeOutputs)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 168, cfg.Monitoring.LookbackWindowHours)
	assert.InDelta(t, 0.5, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.InDelta(t, 0.8, cfg.Monitoring.SkipRateThreshold, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
llm:
  provider: openai
  model: gpt-4o-mini
pipeline:
  categories: [Spinal, Psychiatric]
  url_concurrency: 4
catalog:
  path: data/catalog.xlsx
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, []string{"Spinal", "Psychiatric"}, cfg.Pipeline.Categories)
	assert.Equal(t, 4, cfg.Pipeline.URLConcurrency)
	assert.Equal(t, "data/catalog.xlsx", cfg.Catalog.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Extract.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CATALOG_STORE_DRIVER", "postgres")
	t.Setenv("CATALOG_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CATALOG_SERVER_PORT", "3000")
	t.Setenv("CATALOG_LLM_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("llm: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestLoadPricingOverride(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
pricing:
  models:
    local-llama:
      input: 0.1
      output: 0.2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	require.Contains(t, cfg.Pricing.Models, "local-llama")
	assert.InDelta(t, 0.2, cfg.Pricing.Models["local-llama"].Output, 0.001)
}
