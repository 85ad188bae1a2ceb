// Package merge combines the per-chunk records of one document into a single
// record.
package merge

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-updater/internal/model"
)

// Policy names.
const (
	PolicyFirstMatch = "first_match"
	PolicyLongest    = "longest"
	PolicyMajority   = "majority"
)

// Policy resolves each field across the chunk records of a document.
type Policy interface {
	Name() string
	Resolve(values []string) string
}

// ByName returns the policy registered under name. An empty name selects
// first-match.
func ByName(name string) (Policy, error) {
	switch name {
	case PolicyFirstMatch, "":
		return FirstMatch{}, nil
	case PolicyLongest:
		return Longest{}, nil
	case PolicyMajority:
		return Majority{}, nil
	default:
		return nil, eris.Errorf("merge: unknown policy %q", name)
	}
}

// Aggregate merges records field by field using p. ok is false when records
// is empty. A single record is returned unchanged.
func Aggregate(records []model.Record, p Policy) (model.Record, bool) {
	switch len(records) {
	case 0:
		return model.Record{}, false
	case 1:
		return records[0], true
	}
	if p == nil {
		p = FirstMatch{}
	}

	out := model.NewRecord()
	values := make([]string, len(records))
	for _, f := range model.Fields() {
		for i, r := range records {
			values[i] = r.Get(f)
		}
		out = out.With(f, p.Resolve(values))
	}
	return out, true
}

// FirstMatch keeps the first specified value in chunk order.
type FirstMatch struct{}

// Name implements Policy.
func (FirstMatch) Name() string { return PolicyFirstMatch }

// Resolve implements Policy.
func (FirstMatch) Resolve(values []string) string {
	for _, v := range values {
		if model.IsSpecified(v) {
			return v
		}
	}
	return model.NotSpecified
}

// Longest keeps the longest specified value; ties go to the earliest chunk.
type Longest struct{}

// Name implements Policy.
func (Longest) Name() string { return PolicyLongest }

// Resolve implements Policy.
func (Longest) Resolve(values []string) string {
	best := model.NotSpecified
	for _, v := range values {
		if model.IsSpecified(v) && (best == model.NotSpecified || len(v) > len(best)) {
			best = v
		}
	}
	return best
}

// Majority keeps the most frequent specified value; ties go to the value
// seen first.
type Majority struct{}

// Name implements Policy.
func (Majority) Name() string { return PolicyMajority }

// Resolve implements Policy.
func (Majority) Resolve(values []string) string {
	counts := make(map[string]int, len(values))
	var order []string
	for _, v := range values {
		if !model.IsSpecified(v) {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	best := model.NotSpecified
	bestN := 0
	for _, v := range order {
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}
