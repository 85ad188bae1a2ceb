// Package dedup decides which candidate records are new relative to the
// catalog and collapses repeats within a batch.
package dedup

import (
	"strings"
	"sync"

	"github.com/sells-group/catalog-updater/internal/model"
)

// Key names one identity key space.
type Key string

// Identity keys.
const (
	KeyName Key = "dataset_name"
	KeyDOI  Key = "doi"
	KeyURL  Key = "url"
)

// IdentitySets holds the existing identity values of a catalog. After
// loading it is only read, so it can be shared across goroutines.
type IdentitySets struct {
	Names map[string]struct{}
	DOIs  map[string]struct{}
	URLs  map[string]struct{}
}

// NewIdentitySets returns empty sets.
func NewIdentitySets() IdentitySets {
	return IdentitySets{
		Names: make(map[string]struct{}),
		DOIs:  make(map[string]struct{}),
		URLs:  make(map[string]struct{}),
	}
}

// Add records one catalog row. Blank and sentinel values are skipped.
func (s IdentitySets) Add(name, doi, url string) {
	add(s.Names, name)
	add(s.DOIs, doi)
	add(s.URLs, url)
}

// AddRecord records the identity values of r.
func (s IdentitySets) AddRecord(r model.Record) {
	s.Add(r.Name(), r.DOI(), r.URL())
}

// Size returns the total number of identity values held.
func (s IdentitySets) Size() int {
	return len(s.Names) + len(s.DOIs) + len(s.URLs)
}

// Match reports the first identity key of r found in the sets, checking
// name, then DOI, then URL.
func (s IdentitySets) Match(r model.Record) (Key, bool) {
	switch {
	case has(s.Names, r.Name()):
		return KeyName, true
	case has(s.DOIs, r.DOI()):
		return KeyDOI, true
	case has(s.URLs, r.URL()):
		return KeyURL, true
	}
	return "", false
}

func add(set map[string]struct{}, v string) {
	if v = identity(v); v != "" {
		set[v] = struct{}{}
	}
}

func has(set map[string]struct{}, v string) bool {
	if v = identity(v); v == "" {
		return false
	}
	_, ok := set[v]
	return ok
}

// identity trims v and maps the sentinel to "" so it never matches.
func identity(v string) string {
	v = strings.TrimSpace(v)
	if !model.IsSpecified(v) {
		return ""
	}
	return v
}

// Result is the outcome of Filter.
type Result struct {
	Accepted []model.Record
	Removed  int
	ByKey    map[Key]int
}

// Filter returns the records whose name, DOI and URL all miss the catalog
// sets. Matching is exact after trimming.
func Filter(records []model.Record, sets IdentitySets) Result {
	res := Result{ByKey: make(map[Key]int)}
	for _, r := range records {
		if k, ok := sets.Match(r); ok {
			res.Removed++
			res.ByKey[k]++
			continue
		}
		res.Accepted = append(res.Accepted, r)
	}
	return res
}

// Triple is the (name, DOI, URL) identity of a record.
type Triple struct {
	Name string
	DOI  string
	URL  string
}

// TripleOf returns the trimmed identity triple of r.
func TripleOf(r model.Record) Triple {
	return Triple{
		Name: strings.TrimSpace(r.Name()),
		DOI:  strings.TrimSpace(r.DOI()),
		URL:  strings.TrimSpace(r.URL()),
	}
}

// Accepted tracks the identity triples accepted so far in a run. It is safe
// for concurrent use.
type Accepted struct {
	mu   sync.Mutex
	seen map[Triple]struct{}
}

// NewAccepted returns an empty set.
func NewAccepted() *Accepted {
	return &Accepted{seen: make(map[Triple]struct{})}
}

// Add reports whether r's triple is new, recording it if so.
func (a *Accepted) Add(r model.Record) bool {
	t := TripleOf(r)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.seen[t]; ok {
		return false
	}
	a.seen[t] = struct{}{}
	return true
}

// Len returns the number of accepted triples.
func (a *Accepted) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

// HasIdentity reports whether r carries a name, DOI or URL. A record without
// any of them can never match the catalog.
func HasIdentity(r model.Record) bool {
	return identity(r.Name()) != "" || identity(r.DOI()) != "" || identity(r.URL()) != ""
}

// SelfDedupe drops records whose (name, DOI, URL) triple repeats an earlier
// record in the batch, keeping the first occurrence.
func SelfDedupe(records []model.Record) ([]model.Record, int) {
	acc := NewAccepted()
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if acc.Add(r) {
			out = append(out, r)
		}
	}
	return out, len(records) - len(out)
}
