// Package query produces web search queries for a dataset category.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/catalog-updater/internal/llm"
)

// DefaultCount is the number of queries produced per category.
const DefaultCount = 5

var templates = []string{
	"%s neuroimaging dataset",
	"%s MRI dataset open access",
	"%s brain imaging public dataset download",
	"%s medical imaging dataset DOI",
	"%s radiology dataset segmentation masks",
	"%s CT dataset research",
}

// listMarker strips bullets, numbering and quotes from a generated line.
var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])?\s*["'“]?|["'”]?\s*$`)

// Source generates queries for categories.
type Source interface {
	Queries(ctx context.Context, category string) []string
}

// Generator asks a language model for queries and falls back to templates
// when it fails. Seed queries for a category always come first.
type Generator struct {
	gen     llm.Generator
	count   int
	seeds   map[string][]string
	timeout time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeeds sets per-category seed queries.
func WithSeeds(seeds map[string][]string) Option {
	return func(g *Generator) { g.seeds = seeds }
}

// WithTimeout bounds the generation call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// New creates a Generator. gen may be nil, in which case only seeds and
// templates are used.
func New(gen llm.Generator, count int, opts ...Option) *Generator {
	if count <= 0 {
		count = DefaultCount
	}
	g := &Generator{gen: gen, count: count, timeout: 60 * time.Second}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Queries returns up to count distinct queries plus any seeds. It never
// fails; problems are logged and templates fill the gap.
func (g *Generator) Queries(ctx context.Context, category string) []string {
	out := newQueryList()
	for _, s := range g.seeds[category] {
		out.add(s)
	}

	limit := max(g.count, out.len())
	if g.gen != nil {
		for _, q := range g.generate(ctx, category) {
			if out.len() >= limit {
				break
			}
			out.add(q)
		}
	}
	for _, q := range Templates(category) {
		if out.len() >= limit {
			break
		}
		out.add(q)
	}
	return out.items
}

func (g *Generator) generate(ctx context.Context, category string) []string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.gen.Generate(ctx, llm.Request{
		System:    "You write concise web search queries. Reply with one query per line and nothing else.",
		Prompt:    Prompt(category, g.count),
		MaxTokens: 500,
	})
	if err != nil {
		zap.L().Warn("query: generation failed, using templates",
			zap.String("category", category),
			zap.Error(err),
		)
		return nil
	}
	qs := ParseList(resp.Text)
	if len(qs) == 0 {
		zap.L().Warn("query: empty generation, using templates", zap.String("category", category))
	}
	return qs
}

// Prompt returns the instruction used to generate queries.
func Prompt(category string, n int) string {
	return fmt.Sprintf(
		"Generate %d diverse web search queries that would find publicly available "+
			"neuroradiology imaging datasets (MRI, CT, PET) for %s disorders. "+
			"Prefer queries likely to surface dataset landing pages, data papers and DOIs.",
		n, category,
	)
}

// Templates returns the deterministic fallback queries for category.
func Templates(category string) []string {
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = fmt.Sprintf(t, category)
	}
	return out
}

// ParseList reads queries from model output: a JSON array of strings, or one
// query per line with list markers removed.
func ParseList(text string) []string {
	text = strings.TrimSpace(strings.NewReplacer("```json", "", "```", "").Replace(text))

	var arr []string
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return clean(arr)
	}
	return clean(strings.Split(text, "\n"))
}

func clean(lines []string) []string {
	var out []string
	for _, l := range lines {
		l = strings.Join(strings.Fields(listMarker.ReplaceAllString(l, "")), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

type queryList struct {
	items []string
	seen  map[string]struct{}
}

func newQueryList() *queryList {
	return &queryList{seen: make(map[string]struct{})}
}

func (l *queryList) add(q string) {
	q = strings.Join(strings.Fields(q), " ")
	key := strings.ToLower(q)
	if q == "" {
		return
	}
	if _, ok := l.seen[key]; ok {
		return
	}
	l.seen[key] = struct{}{}
	l.items = append(l.items, q)
}

func (l *queryList) len() int { return len(l.items) }
