// Package search runs web searches across providers and merges their results.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/internal/resilience"
)

// Provider runs a query against one search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// Combined fans a query out to every provider and merges the results in
// provider order, dropping repeated URLs. A failing provider is logged and
// skipped.
type Combined struct {
	providers []Provider
	pacer     *resilience.Pacer
	breakers  *resilience.Breakers
}

// NewCombined creates a Combined searcher. pacer and breakers may be nil.
func NewCombined(providers []Provider, pacer *resilience.Pacer, breakers *resilience.Breakers) *Combined {
	return &Combined{providers: providers, pacer: pacer, breakers: breakers}
}

// Providers returns the provider names in order.
func (c *Combined) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Search returns the URL-deduplicated results of every provider.
func (c *Combined) Search(ctx context.Context, query string) []model.SearchResult {
	slots := make([][]model.SearchResult, len(c.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range c.providers {
		g.Go(func() error {
			res, err := c.run(gctx, p, query)
			if err != nil {
				zap.L().Warn("search: provider failed",
					zap.String("provider", p.Name()),
					zap.String("query", query),
					zap.Error(err),
				)
				return nil
			}
			slots[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var all []model.SearchResult
	for i, res := range slots {
		zap.L().Debug("search: provider results",
			zap.String("provider", c.providers[i].Name()),
			zap.Int("count", len(res)),
		)
		all = append(all, res...)
	}
	return DedupeByURL(all)
}

func (c *Combined) run(ctx context.Context, p Provider, query string) ([]model.SearchResult, error) {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx, p.Name()); err != nil {
			return nil, err
		}
	}
	if c.breakers == nil {
		return p.Search(ctx, query)
	}
	return resilience.ExecuteVal(ctx, c.breakers.Get(p.Name()), func(ctx context.Context) ([]model.SearchResult, error) {
		return p.Search(ctx, query)
	})
}

// DedupeByURL keeps the first result for each URL and drops results without
// one.
func DedupeByURL(results []model.SearchResult) []model.SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		u := strings.TrimSpace(r.URL)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		r.URL = u
		out = append(out, r)
	}
	return out
}
