package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-updater/internal/catalog"
	"github.com/sells-group/catalog-updater/internal/config"
	"github.com/sells-group/catalog-updater/internal/cost"
	"github.com/sells-group/catalog-updater/internal/extract"
	"github.com/sells-group/catalog-updater/internal/fetch"
	"github.com/sells-group/catalog-updater/internal/llm"
	"github.com/sells-group/catalog-updater/internal/merge"
	"github.com/sells-group/catalog-updater/internal/ocr"
	"github.com/sells-group/catalog-updater/internal/pipeline"
	"github.com/sells-group/catalog-updater/internal/query"
	"github.com/sells-group/catalog-updater/internal/resilience"
	"github.com/sells-group/catalog-updater/internal/search"
	"github.com/sells-group/catalog-updater/internal/store"
	"github.com/sells-group/catalog-updater/pkg/jina"
	"github.com/sells-group/catalog-updater/pkg/serper"
	"github.com/sells-group/catalog-updater/pkg/tavily"
)

// updateEnv holds everything an update run needs.
type updateEnv struct {
	Store    store.Store // may be nil
	Catalog  catalog.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *updateEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// runSelection is the category list and seed queries for a run.
type runSelection struct {
	Categories []string
	Seeds      map[string][]string
}

// resolveCategories picks the run's categories: explicit flags first, then
// a categories file, then the configured list.
func resolveCategories(flagCats []string, file string, configured []string) (runSelection, error) {
	var sel runSelection
	if file != "" {
		f, err := config.LoadCategories(file)
		if err != nil {
			return sel, err
		}
		sel.Categories = f.Names()
		sel.Seeds = f.Seeds()
	}
	if len(flagCats) > 0 {
		sel.Categories = flagCats
	}
	if len(sel.Categories) == 0 {
		sel.Categories = configured
	}
	if len(sel.Categories) == 0 {
		sel.Categories = config.DefaultCategories
	}
	return sel, nil
}

// initStore opens the configured run store. The "none" driver yields nil.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initCatalog builds the configured catalog store.
func initCatalog(st store.Store) (catalog.Store, error) {
	switch cfg.Catalog.Driver {
	case "xlsx", "":
		return catalog.NewXLSXStore(cfg.Catalog.Path, cfg.Catalog.OutputDir,
			catalog.WithOutputs(cfg.Catalog.IncludeOutputs)), nil
	case "sql":
		if st == nil {
			return nil, eris.New("catalog driver sql requires a store")
		}
		return catalog.NewSQLStore(st), nil
	default:
		return nil, eris.Errorf("unsupported catalog driver: %s", cfg.Catalog.Driver)
	}
}

// initSearch builds the combined search source from every configured
// provider.
func initSearch() *search.Combined {
	n := cfg.Search.ResultsPerQuery
	var providers []search.Provider
	if cfg.Search.SerperKey != "" {
		providers = append(providers, search.NewSerper(
			serper.NewClient(cfg.Search.SerperKey, serper.WithBaseURL(cfg.Search.SerperBaseURL)), n))
	}
	if cfg.Search.TavilyKey != "" {
		providers = append(providers, search.NewTavily(
			tavily.NewClient(cfg.Search.TavilyKey, tavily.WithBaseURL(cfg.Search.TavilyBaseURL)), n))
	}
	if cfg.Search.JinaKey != "" {
		providers = append(providers, search.NewJina(initJina(), n))
	}
	pacer := resilience.NewPacer(time.Duration(cfg.Pipeline.SearchDelayMs) * time.Millisecond)
	return search.NewCombined(providers, pacer, resilience.NewBreakers(resilience.DefaultCircuitBreakerConfig()))
}

func initJina() jina.Client {
	return jina.NewClient(cfg.Search.JinaKey,
		jina.WithBaseURL(cfg.Search.JinaBaseURL),
		jina.WithSearchBaseURL(cfg.Search.JinaSearchURL))
}

// initUpdate wires the pipeline for sel. Callers should defer env.Close().
func initUpdate(ctx context.Context, sel runSelection, concurrency int) (*updateEnv, error) {
	if err := cfg.Validate("update"); err != nil {
		return nil, err
	}

	policy, err := merge.ByName(cfg.Extract.MergePolicy)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.LLM.TimeoutSecs) * time.Second
	gen, err := llm.New(cfg.LLM.Provider, llm.Options{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &updateEnv{Store: st}

	env.Catalog, err = initCatalog(st)
	if err != nil {
		env.Close()
		return nil, err
	}

	fetchOpts := fetch.Options{
		UserAgent:     cfg.Fetch.UserAgent,
		Timeout:       time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxBytes:      cfg.Fetch.MaxBytes,
		RespectRobots: cfg.Fetch.RespectRobots,
		Delay:         time.Duration(cfg.Pipeline.FetchDelayMs) * time.Millisecond,
		CacheTTL:      time.Duration(cfg.Fetch.CacheTTLHours) * time.Hour,
	}
	if st != nil {
		fetchOpts.Store = st
	}
	if cfg.Fetch.JinaFallback && cfg.Search.JinaKey != "" {
		fetchOpts.Jina = initJina()
	}
	fetchOpts.OCR, err = ocr.NewExtractor(ocr.Config{
		Provider:      cfg.Fetch.OCR.Provider,
		PdfToTextPath: cfg.Fetch.OCR.PdfToTextPath,
		MistralKey:    cfg.Fetch.OCR.MistralKey,
		MistralModel:  cfg.Fetch.OCR.MistralModel,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	extractor := extract.New(gen,
		extract.WithRetry(resilience.LinearRetry(cfg.Extract.MaxAttempts, cfg.Extract.BackoffMs)),
		extract.WithMaxTokens(cfg.LLM.MaxTokens),
		extract.WithTemperature(cfg.LLM.Temperature),
		extract.WithTimeout(timeout),
	)

	if concurrency <= 0 {
		concurrency = cfg.Pipeline.URLConcurrency
	}

	deps := pipeline.Deps{
		Queries:   query.New(gen, cfg.Pipeline.QueriesPerCategory, query.WithSeeds(sel.Seeds), query.WithTimeout(timeout)),
		Search:    initSearch(),
		Fetcher:   fetch.New(fetchOpts),
		Extractor: extractor,
		Catalog:   env.Catalog,
	}
	if st != nil {
		deps.Runs = st
	}

	env.Pipeline = pipeline.New(pipeline.Config{
		Categories:       sel.Categories,
		MaxWords:         cfg.Extract.MaxWords,
		OverlapSentences: cfg.Extract.OverlapSentences,
		URLConcurrency:   concurrency,
		MergePolicy:      policy,
		Cost:             cost.NewCalculator(cfg.Pricing).Func(cfg.LLM.Model),
	}, deps)

	zap.L().Debug("update environment ready",
		zap.String("llm_provider", gen.Name()),
		zap.String("catalog_driver", cfg.Catalog.Driver),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Int("url_concurrency", concurrency),
	)
	return env, nil
}
