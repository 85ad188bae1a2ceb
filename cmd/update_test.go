package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-updater/internal/catalog"
	"github.com/sells-group/catalog-updater/internal/config"
	"github.com/sells-group/catalog-updater/internal/model"
)

func TestResolveCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  - name: Spinal
    seeds: [spinal cord MRI dataset]
  - name: Psychiatric
`), 0644))

	sel, err := resolveCategories(nil, "", []string{"Neoplasm"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Neoplasm"}, sel.Categories)

	sel, err = resolveCategories(nil, "", nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultCategories, sel.Categories)

	sel, err = resolveCategories(nil, path, []string{"Neoplasm"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Spinal", "Psychiatric"}, sel.Categories)
	assert.Equal(t, []string{"spinal cord MRI dataset"}, sel.Seeds["Spinal"])

	// Flags win over the file but keep its seeds.
	sel, err = resolveCategories([]string{"Spinal"}, path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Spinal"}, sel.Categories)
	assert.NotEmpty(t, sel.Seeds["Spinal"])

	_, err = resolveCategories(nil, filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, &model.RunSummary{RunID: "r1", Categories: 2, RecordsPersisted: 5}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "r1", got["run_id"])
	assert.EqualValues(t, 5, got["records_persisted"])
}

func TestInitCatalog(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	cfg.Catalog.Driver = "xlsx"
	cfg.Catalog.Path = "catalog.xlsx"
	c, err := initCatalog(nil)
	require.NoError(t, err)
	assert.IsType(t, &catalog.XLSXStore{}, c)

	cfg.Catalog.Driver = "sql"
	_, err = initCatalog(nil)
	assert.Error(t, err)

	cfg.Catalog.Driver = "parquet"
	_, err = initCatalog(nil)
	assert.Error(t, err)
}

func TestInitUpdate_ValidatesConfig(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	_, err := initUpdate(t.Context(), runSelection{Categories: []string{"Spinal"}}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.api_key is required")
}

func TestInitUpdate_Wires(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	dir := t.TempDir()
	cfg = &config.Config{}
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.TimeoutSecs = 5
	cfg.Search.SerperKey = "serper"
	cfg.Search.JinaKey = "jina"
	cfg.Search.ResultsPerQuery = 5
	cfg.Extract.MaxAttempts = 3
	cfg.Extract.BackoffMs = 10
	cfg.Extract.MaxWords = 3000
	cfg.Extract.MergePolicy = "longest"
	cfg.Fetch.JinaFallback = true
	cfg.Pipeline.URLConcurrency = 2
	cfg.Catalog.Driver = "sql"
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = filepath.Join(dir, "runs.db")

	env, err := initUpdate(t.Context(), runSelection{Categories: []string{"Spinal"}}, 0)
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Store)
	assert.IsType(t, &catalog.SQLStore{}, env.Catalog)
	assert.NotNil(t, env.Pipeline)
}
