package catalog

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-updater/internal/dedup"
	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/internal/store"
)

// SQLStore keeps the catalog in the datasets table of the run store.
type SQLStore struct {
	datasets store.DatasetStore
}

// NewSQLStore creates a SQLStore.
func NewSQLStore(datasets store.DatasetStore) *SQLStore {
	return &SQLStore{datasets: datasets}
}

// LoadIdentitySets implements Store.
func (s *SQLStore) LoadIdentitySets(ctx context.Context) (dedup.IdentitySets, error) {
	sets := dedup.NewIdentitySets()
	ids, err := s.datasets.DatasetIdentities(ctx)
	if err != nil {
		return sets, eris.Wrapf(ErrSnapshotUnavailable, "datasets table: %v", err)
	}
	for _, id := range ids {
		sets.Add(id.Name, id.DOI, id.URL)
	}
	zap.L().Info("catalog: snapshot loaded from datasets table", zap.Int("rows", len(ids)))
	return sets, nil
}

// Persist implements Store. The location is the run ID the rows are
// recorded under.
func (s *SQLStore) Persist(ctx context.Context, runID string, records []model.Record) (PersistResult, error) {
	unique, dropped := dedup.SelfDedupe(records)
	res := PersistResult{SelfDuplicates: dropped}
	if len(unique) == 0 {
		return res, nil
	}

	n, err := s.datasets.InsertDatasets(ctx, runID, unique)
	if err != nil {
		return res, eris.Wrap(err, "catalog: insert datasets")
	}
	res.Written = n
	res.Location = "datasets:" + runID
	return res, nil
}

// Records implements Store.
func (s *SQLStore) Records(ctx context.Context) ([]model.Record, error) {
	recs, err := s.datasets.ListDatasets(ctx)
	return recs, eris.Wrap(err, "catalog: list datasets")
}
