// Package store persists run history, the fetched-page cache and, for the SQL
// catalog, accepted dataset records.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-updater/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Identity is the identity triple of a stored dataset row.
type Identity struct {
	Name string
	DOI  string
	URL  string
}

// RunStore records pipeline runs.
type RunStore interface {
	CreateRun(ctx context.Context, categories []string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
}

// PageCache stores fetched page text keyed by URL.
type PageCache interface {
	GetPage(ctx context.Context, url string, maxAge time.Duration) (*model.FetchedPage, error)
	PutPage(ctx context.Context, page *model.FetchedPage) error
	DeleteExpiredPages(ctx context.Context, maxAge time.Duration) (int, error)
}

// DatasetStore holds catalog rows for the SQL-backed catalog.
type DatasetStore interface {
	DatasetIdentities(ctx context.Context) ([]Identity, error)
	InsertDatasets(ctx context.Context, runID string, records []model.Record) (int, error)
	ListDatasets(ctx context.Context) ([]model.Record, error)
}

// Store is the full persistence interface.
type Store interface {
	RunStore
	PageCache
	DatasetStore

	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// datasetColumns are the datasets table columns written per record.
var datasetColumns = []string{"id", "run_id", "category", "dataset_name", "doi", "url", "record", "created_at"}

// Open connects to the configured store and applies migrations. The "none"
// driver returns a nil Store.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
