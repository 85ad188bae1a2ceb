package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/pkg/jina"
	"github.com/sells-group/catalog-updater/pkg/serper"
	"github.com/sells-group/catalog-updater/pkg/tavily"
)

// Provider names.
const (
	ProviderSerper = "serper"
	ProviderTavily = "tavily"
	ProviderJina   = "jina"
)

// Serper adapts the Serper client.
type Serper struct {
	client serper.Client
	num    int
}

// NewSerper creates a Serper provider returning up to num results.
func NewSerper(client serper.Client, num int) *Serper {
	return &Serper{client: client, num: num}
}

// Name implements Provider.
func (s *Serper) Name() string { return ProviderSerper }

// Search implements Provider.
func (s *Serper) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	resp, err := s.client.Search(ctx, query, s.num)
	if err != nil {
		return nil, eris.Wrap(err, "search: serper")
	}
	out := make([]model.SearchResult, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		if r.Link == "" {
			continue
		}
		out = append(out, model.SearchResult{Title: r.Title, URL: r.Link, Source: ProviderSerper})
	}
	return out, nil
}

// Tavily adapts the Tavily client.
type Tavily struct {
	client tavily.Client
	num    int
}

// NewTavily creates a Tavily provider returning up to num results.
func NewTavily(client tavily.Client, num int) *Tavily {
	return &Tavily{client: client, num: num}
}

// Name implements Provider.
func (t *Tavily) Name() string { return ProviderTavily }

// Search implements Provider.
func (t *Tavily) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	resp, err := t.client.Search(ctx, query, t.num)
	if err != nil {
		return nil, eris.Wrap(err, "search: tavily")
	}
	out := make([]model.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, model.SearchResult{Title: r.Title, URL: r.URL, Source: ProviderTavily})
	}
	return out, nil
}

// Jina adapts Jina search.
type Jina struct {
	client jina.Client
	num    int
}

// NewJina creates a Jina provider returning up to num results.
func NewJina(client jina.Client, num int) *Jina {
	return &Jina{client: client, num: num}
}

// Name implements Provider.
func (j *Jina) Name() string { return ProviderJina }

// Search implements Provider.
func (j *Jina) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	resp, err := j.client.Search(ctx, query, jina.WithNum(j.num))
	if err != nil {
		return nil, eris.Wrap(err, "search: jina")
	}
	out := make([]model.SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		if r.URL == "" {
			continue
		}
		if j.num > 0 && len(out) == j.num {
			break
		}
		out = append(out, model.SearchResult{Title: r.Title, URL: r.URL, Source: ProviderJina})
	}
	return out, nil
}
