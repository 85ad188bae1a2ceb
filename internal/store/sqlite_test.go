package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-updater/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Runs ---

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"Neoplasm", "Spinal"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusPersisting))

	summary := &model.RunSummary{RunID: run.ID, Categories: 2, RecordsPersisted: 3, Location: "out.xlsx"}
	require.NoError(t, st.CompleteRun(ctx, run.ID, summary))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, []string{"Neoplasm", "Spinal"}, got.Categories)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 3, got.Summary.RecordsPersisted)
	assert.Equal(t, "out.xlsx", got.Summary.Location)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"Psychiatric"})
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "snapshot unavailable"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "snapshot unavailable", got.Error)
	assert.Nil(t, got.Summary)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.UpdateRunStatus(context.Background(), "missing", model.RunStatusComplete)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, []string{"A"})
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, []string{"B"})
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, a.ID, &model.RunSummary{RunID: a.ID}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	offset, err := st.ListRuns(ctx, RunFilter{Limit: 10, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, offset, 1)

	recent, err := st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	future, err := st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)
}

// --- Page cache ---

func TestSQLite_PageCache(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	page := &model.FetchedPage{
		URL:         "https://example.org/a",
		Title:       "A",
		Text:        "dataset text",
		ContentType: "text/html",
		Source:      "local_http",
		FetchedAt:   time.Now(),
	}
	require.NoError(t, st.PutPage(ctx, page))

	got, err := st.GetPage(ctx, page.URL, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "dataset text", got.Text)
	assert.Equal(t, "local_http", got.Source)

	page.Text = "updated"
	require.NoError(t, st.PutPage(ctx, page))
	got, err = st.GetPage(ctx, page.URL, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Text)

	missing, err := st.GetPage(ctx, "https://example.org/none", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_PageCache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutPage(ctx, &model.FetchedPage{
		URL:       "https://example.org/old",
		Text:      "old",
		FetchedAt: time.Now().Add(-2 * time.Hour),
	}))

	got, err := st.GetPage(ctx, "https://example.org/old", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := st.DeleteExpiredPages(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// --- Datasets ---

func TestSQLite_Datasets(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	records := []model.Record{
		model.NewRecord().
			With(model.FieldDatasetName, "OASIS-3").
			With(model.FieldDOI, "10.1/oasis").
			WithCategory("Neurodegenerative"),
		model.NewRecord().With(model.FieldDatasetName, "BraTS").WithCategory("Neoplasm"),
	}

	n, err := st.InsertDatasets(ctx, "run-1", records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := st.DatasetIdentities(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Identity{
		{Name: "OASIS-3", DOI: "10.1/oasis", URL: model.NotSpecified},
		{Name: "BraTS", DOI: model.NotSpecified, URL: model.NotSpecified},
	}, ids)

	list, err := st.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, records, list)

	n, err = st.InsertDatasets(ctx, "run-2", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "none", "")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, "sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close() //nolint:errcheck

	_, err = s.CreateRun(ctx, []string{"X"})
	assert.NoError(t, err)

	_, err = Open(ctx, "mongo", "")
	assert.Error(t, err)
}
