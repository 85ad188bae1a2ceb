// Package pipeline drives a catalog update run: categories to queries to
// URLs to chunks to records, then deduplication and persistence.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-updater/internal/catalog"
	"github.com/sells-group/catalog-updater/internal/chunk"
	"github.com/sells-group/catalog-updater/internal/dedup"
	"github.com/sells-group/catalog-updater/internal/extract"
	"github.com/sells-group/catalog-updater/internal/fetch"
	"github.com/sells-group/catalog-updater/internal/merge"
	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/internal/query"
	"github.com/sells-group/catalog-updater/internal/resilience"
	"github.com/sells-group/catalog-updater/internal/search"
	"github.com/sells-group/catalog-updater/internal/store"
)

// Extractor turns one chunk of text into a record.
type Extractor interface {
	Extract(ctx context.Context, text string) (extract.Result, error)
}

// Searcher returns URL-deduplicated results for a query.
type Searcher interface {
	Search(ctx context.Context, query string) []model.SearchResult
}

var (
	_ Extractor = (*extract.Extractor)(nil)
	_ Searcher  = (*search.Combined)(nil)
)

// Config holds the run parameters.
type Config struct {
	Categories       []string
	MaxWords         int
	OverlapSentences int
	// URLConcurrency bounds the URLs of one category processed at once.
	// 1 processes them strictly in order.
	URLConcurrency int
	MergePolicy    merge.Policy
	// Cost prices the run's token usage. Optional.
	Cost func(model.TokenUsage) float64
}

// Deps are the collaborators of a Pipeline. Runs may be nil.
type Deps struct {
	Queries   query.Source
	Search    Searcher
	Fetcher   fetch.Fetcher
	Extractor Extractor
	Catalog   catalog.Store
	Runs      store.RunStore
}

// Pipeline runs catalog updates.
type Pipeline struct {
	cfg      Config
	deps     Deps
	splitter chunk.Splitter
	policy   merge.Policy
}

// New creates a Pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.URLConcurrency <= 0 {
		cfg.URLConcurrency = 1
	}
	policy := cfg.MergePolicy
	if policy == nil {
		policy = merge.FirstMatch{}
	}
	return &Pipeline{
		cfg:      cfg,
		deps:     deps,
		splitter: chunk.NewSplitter(cfg.MaxWords, cfg.OverlapSentences),
		policy:   policy,
	}
}

// Run executes one update. Only a snapshot load failure or cancellation
// aborts it; every other failure is logged and skipped. The summary is
// returned even when persistence fails.
func (p *Pipeline) Run(ctx context.Context) (*model.RunSummary, error) {
	start := time.Now()
	runID := p.startRun(ctx)
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: starting run", zap.Strings("categories", p.cfg.Categories))

	sets, err := p.deps.Catalog.LoadIdentitySets(ctx)
	if err != nil {
		p.failRun(ctx, runID, err)
		return nil, eris.Wrap(err, "pipeline: load catalog snapshot")
	}

	summary := &model.RunSummary{RunID: runID}
	batch := &batch{}

	for _, category := range p.cfg.Categories {
		if ctx.Err() != nil {
			break
		}
		stats := p.runCategory(ctx, category, batch, summary)
		summary.PerCategory = append(summary.PerCategory, stats)
		summary.Categories++
	}
	if err := ctx.Err(); err != nil {
		p.failRun(ctx, runID, err)
		return nil, eris.Wrap(err, "pipeline: run cancelled")
	}

	summary.RecordsExtracted = len(batch.records)
	candidates := make([]model.Record, 0, len(batch.records))
	for _, r := range batch.records {
		if dedup.HasIdentity(r) {
			candidates = append(candidates, r)
			continue
		}
		summary.RecordsWithoutID++
	}
	if summary.RecordsWithoutID > 0 {
		log.Warn("pipeline: dropped records without name, doi or url",
			zap.Int("records", summary.RecordsWithoutID))
	}

	filtered := dedup.Filter(candidates, sets)
	summary.DuplicatesRemoved = filtered.Removed
	log.Info("pipeline: deduplicated against catalog",
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(filtered.Accepted)),
		zap.Int("by_name", filtered.ByKey[dedup.KeyName]),
		zap.Int("by_doi", filtered.ByKey[dedup.KeyDOI]),
		zap.Int("by_url", filtered.ByKey[dedup.KeyURL]),
	)

	p.setStatus(ctx, runID, model.RunStatusPersisting)
	res, err := p.deps.Catalog.Persist(ctx, runID, filtered.Accepted)
	summary.SelfDuplicatesRemoved = res.SelfDuplicates
	summary.RecordsPersisted = res.Written
	summary.Location = res.Location
	summary.DurationMs = time.Since(start).Milliseconds()
	if p.cfg.Cost != nil {
		summary.EstimatedCostUSD = p.cfg.Cost(summary.TokenUsage)
	}
	if err != nil {
		p.failRun(ctx, runID, err)
		return summary, eris.Wrap(err, "pipeline: persist")
	}

	if p.deps.Runs != nil {
		if err := p.deps.Runs.CompleteRun(ctx, runID, summary); err != nil {
			log.Warn("pipeline: failed to record run summary", zap.Error(err))
		}
	}
	log.Info("pipeline: run complete",
		zap.Int("urls_attempted", summary.URLsAttempted),
		zap.Int("records_extracted", summary.RecordsExtracted),
		zap.Int("duplicates_removed", summary.DuplicatesRemoved),
		zap.Int("records_persisted", summary.RecordsPersisted),
		zap.String("location", summary.Location),
		zap.Int64("duration_ms", summary.DurationMs),
		zap.Float64("estimated_cost_usd", summary.EstimatedCostUSD),
	)
	return summary, nil
}

// runCategory gathers the category's URLs and turns each into at most one
// record appended to b.
func (p *Pipeline) runCategory(ctx context.Context, category string, b *batch, summary *model.RunSummary) model.CategoryStats {
	log := zap.L().With(zap.String("category", category))
	stats := model.CategoryStats{Category: category}

	queries := p.deps.Queries.Queries(ctx, category)
	stats.Queries = len(queries)
	summary.Queries += len(queries)

	var results []model.SearchResult
	for _, q := range queries {
		if ctx.Err() != nil {
			return stats
		}
		results = append(results, p.deps.Search.Search(ctx, q)...)
	}
	results = search.DedupeByURL(results)
	stats.URLs = len(results)
	log.Info("pipeline: urls collected", zap.Int("queries", len(queries)), zap.Int("urls", len(results)))

	outcomes := make([]urlOutcome, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.URLConcurrency)
	for i, r := range results {
		g.Go(func() error {
			outcomes[i] = p.processURL(gctx, r.URL)
			return nil
		})
	}
	_ = g.Wait()

	// Outcomes are folded in URL order so the batch is deterministic
	// whatever the concurrency.
	for i, o := range outcomes {
		summary.URLsAttempted++
		summary.ChunksExtracted += o.chunks
		summary.ChunkFailures += o.failures
		summary.TokenUsage.Add(o.usage)
		summary.Failures = append(summary.Failures, o.failed...)
		if o.record == nil {
			stats.Skipped++
			summary.URLsSkipped++
			log.Warn("pipeline: url skipped", zap.String("url", results[i].URL), zap.String("reason", o.reason))
			continue
		}
		b.add(o.record.WithCategory(category))
		stats.Records++
	}
	return stats
}

// urlOutcome is the result of processing one URL. record is nil when the
// URL produced nothing.
type urlOutcome struct {
	record   *model.Record
	chunks   int
	failures int
	usage    model.TokenUsage
	failed   []model.Failure
	reason   string
}

// processURL fetches, chunks and extracts one URL. Chunks are extracted in
// order, one at a time.
func (p *Pipeline) processURL(ctx context.Context, url string) urlOutcome {
	text := p.deps.Fetcher.Fetch(ctx, url)
	if text == "" {
		return skipped(url, "empty or failed fetch")
	}

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return skipped(url, "no text after normalization")
	}

	var out urlOutcome
	records := make([]model.Record, 0, len(chunks))
	for i, c := range chunks {
		res, err := p.deps.Extractor.Extract(ctx, c)
		out.chunks++
		out.usage.Add(res.Usage)
		if err != nil {
			out.failures++
			out.failed = append(out.failed, resilience.NewFailure("extract", fmt.Sprintf("%s#%d", url, i), err))
			level := zap.WarnLevel
			if resilience.ClassifyError(err) == resilience.KindTransient {
				level = zap.ErrorLevel
			}
			zap.L().Check(level, "pipeline: chunk extraction failed").Write(
				zap.String("url", url),
				zap.Int("chunk", i),
				zap.Int("attempts", res.Attempts),
				zap.Error(err),
			)
		}
		records = append(records, res.Record)
	}

	// A single chunk's record is used as is.
	rec, ok := merge.Aggregate(records, p.policy)
	if !ok {
		out.reason = "no chunk records"
		return out
	}
	out.record = &rec
	return out
}

func skipped(url, reason string) urlOutcome {
	return urlOutcome{
		reason: reason,
		failed: []model.Failure{resilience.NewFailure("fetch", url, eris.New(reason))},
	}
}

// batch is the run's accumulator. Only the category loop appends to it.
type batch struct {
	records []model.Record
}

func (b *batch) add(r model.Record) {
	b.records = append(b.records, r)
}

func (p *Pipeline) startRun(ctx context.Context) string {
	if p.deps.Runs == nil {
		return uuid.New().String()
	}
	run, err := p.deps.Runs.CreateRun(ctx, p.cfg.Categories)
	if err != nil {
		zap.L().Warn("pipeline: failed to record run", zap.Error(err))
		return uuid.New().String()
	}
	return run.ID
}

func (p *Pipeline) setStatus(ctx context.Context, runID string, status model.RunStatus) {
	if p.deps.Runs == nil {
		return
	}
	if err := p.deps.Runs.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("pipeline: failed to update status", zap.String("run_id", runID), zap.Error(err))
	}
}

func (p *Pipeline) failRun(ctx context.Context, runID string, cause error) {
	zap.L().Error("pipeline: run failed", zap.String("run_id", runID), zap.Error(cause))
	if p.deps.Runs == nil {
		return
	}
	// The run context may already be done; record the failure regardless.
	if err := p.deps.Runs.FailRun(context.WithoutCancel(ctx), runID, cause.Error()); err != nil {
		zap.L().Warn("pipeline: failed to record run failure", zap.String("run_id", runID), zap.Error(err))
	}
}
