// Package catalog loads the identity snapshot of the existing dataset catalog
// and persists newly accepted records.
package catalog

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-updater/internal/dedup"
	"github.com/sells-group/catalog-updater/internal/model"
)

// ErrSnapshotUnavailable means the catalog exists but could not be read. It
// is the only error that aborts a run.
var ErrSnapshotUnavailable = eris.New("catalog: snapshot unavailable")

// Store is the catalog contract the pipeline consumes.
type Store interface {
	// LoadIdentitySets returns the name, DOI and URL sets of every
	// catalog row.
	LoadIdentitySets(ctx context.Context) (dedup.IdentitySets, error)
	// Persist self-dedupes records on their identity triple and stores
	// them. An empty batch stores nothing and returns an empty location.
	Persist(ctx context.Context, runID string, records []model.Record) (PersistResult, error)
	// Records returns every catalog row.
	Records(ctx context.Context) ([]model.Record, error)
}

// PersistResult describes what Persist wrote.
type PersistResult struct {
	Location       string `json:"location"`
	Written        int    `json:"written"`
	SelfDuplicates int    `json:"self_duplicates"`
}

// Stats summarizes catalog contents.
type Stats struct {
	Total      int            `json:"total"`
	WithDOI    int            `json:"with_doi"`
	WithURL    int            `json:"with_url"`
	ByCategory map[string]int `json:"by_category"`
	// Coverage counts the records holding a value, per field key.
	Coverage map[string]int `json:"coverage"`
}

// ComputeStats tallies records.
func ComputeStats(records []model.Record) Stats {
	s := Stats{
		Total:      len(records),
		ByCategory: make(map[string]int),
		Coverage:   make(map[string]int),
	}
	for _, r := range records {
		if r.Specified(model.FieldDOI) {
			s.WithDOI++
		}
		if r.Specified(model.FieldURL) {
			s.WithURL++
		}
		cat := r.Category
		if cat == "" {
			cat = "(none)"
		}
		s.ByCategory[cat]++
		for _, f := range model.Fields() {
			if r.Specified(f) {
				s.Coverage[f.Key()]++
			}
		}
	}
	return s
}

// Categories returns the category names of s in sorted order.
func (s Stats) Categories() []string {
	out := make([]string, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
