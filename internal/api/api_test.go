package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-updater/internal/catalog"
	"github.com/sells-group/catalog-updater/internal/dedup"
	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/internal/monitoring"
	"github.com/sells-group/catalog-updater/internal/store"
)

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) CreateRun(ctx context.Context, categories []string) (*model.Run, error) {
	args := m.Called(ctx, categories)
	r, _ := args.Get(0).(*model.Run)
	return r, args.Error(1)
}

func (m *mockRuns) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return m.Called(ctx, runID, status).Error(0)
}

func (m *mockRuns) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	return m.Called(ctx, runID, summary).Error(0)
}

func (m *mockRuns) FailRun(ctx context.Context, runID string, reason string) error {
	return m.Called(ctx, runID, reason).Error(0)
}

func (m *mockRuns) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	r, _ := args.Get(0).(*model.Run)
	return r, args.Error(1)
}

func (m *mockRuns) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	r, _ := args.Get(0).([]model.Run)
	return r, args.Error(1)
}

type staticCatalog struct {
	records []model.Record
	err     error
}

func (c staticCatalog) LoadIdentitySets(context.Context) (dedup.IdentitySets, error) {
	return dedup.NewIdentitySets(), nil
}

func (c staticCatalog) Persist(context.Context, string, []model.Record) (catalog.PersistResult, error) {
	return catalog.PersistResult{}, nil
}

func (c staticCatalog) Records(context.Context) ([]model.Record, error) { return c.records, c.err }

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, (&Server{}).Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListRuns(t *testing.T) {
	runs := &mockRuns{}
	runs.On("ListRuns", mock.Anything, store.RunFilter{Status: model.RunStatusComplete, Limit: 5, Offset: 2}).
		Return([]model.Run{{ID: "r1", Status: model.RunStatusComplete}}, nil)

	rec := do(t, (&Server{Runs: runs}).Handler(), "/runs/?status=complete&limit=5&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
	runs.AssertExpectations(t)
}

func TestListRuns_EmptyIsArray(t *testing.T) {
	runs := &mockRuns{}
	runs.On("ListRuns", mock.Anything, store.RunFilter{Limit: 20}).Return(nil, nil)

	rec := do(t, (&Server{Runs: runs}).Handler(), "/runs/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListRuns_BadLimit(t *testing.T) {
	rec := do(t, (&Server{Runs: &mockRuns{}}).Handler(), "/runs/?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRuns_StoreError(t *testing.T) {
	runs := &mockRuns{}
	runs.On("ListRuns", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	rec := do(t, (&Server{Runs: runs}).Handler(), "/runs/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetRun(t *testing.T) {
	runs := &mockRuns{}
	runs.On("GetRun", mock.Anything, "r1").Return(&model.Run{
		ID:      "r1",
		Status:  model.RunStatusComplete,
		Summary: &model.RunSummary{RunID: "r1", RecordsPersisted: 7},
	}, nil)
	runs.On("GetRun", mock.Anything, "missing").Return(nil, eris.Wrap(store.ErrNotFound, "run missing"))

	h := (&Server{Runs: runs}).Handler()

	rec := do(t, h, "/runs/r1")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 7, got.Summary.RecordsPersisted)

	rec = do(t, h, "/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuns_NotConfigured(t *testing.T) {
	h := (&Server{}).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "/runs/").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "/runs/x").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "/catalog/stats").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "/metrics").Code)
}

type stubMetrics struct {
	hours int
	err   error
}

func (m *stubMetrics) Collect(_ context.Context, hours int) (*monitoring.MetricsSnapshot, error) {
	m.hours = hours
	if m.err != nil {
		return nil, m.err
	}
	return &monitoring.MetricsSnapshot{RunsTotal: 3, LookbackHours: hours}, nil
}

func TestMetrics(t *testing.T) {
	m := &stubMetrics{}
	h := (&Server{Metrics: m, LookbackHours: 168}).Handler()

	rec := do(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 168, m.hours)

	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 3, snap.RunsTotal)

	rec = do(t, h, "/metrics?hours=6")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, m.hours)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "/metrics?hours=0").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/metrics?hours=x").Code)

	h = (&Server{Metrics: &stubMetrics{err: errors.New("db")}}).Handler()
	assert.Equal(t, http.StatusInternalServerError, do(t, h, "/metrics").Code)
}

func TestCatalogStats(t *testing.T) {
	cat := staticCatalog{records: []model.Record{
		model.NewRecord().With(model.FieldDatasetName, "A").With(model.FieldDOI, "10.1/a").WithCategory("X"),
		model.NewRecord().With(model.FieldDatasetName, "B").WithCategory("Y"),
	}}

	rec := do(t, (&Server{Catalog: cat}).Handler(), "/catalog/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var got catalog.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.WithDOI)
	assert.Equal(t, map[string]int{"X": 1, "Y": 1}, got.ByCategory)

	rec = do(t, (&Server{Catalog: staticCatalog{err: errors.New("bad")}}).Handler(), "/catalog/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	h := (&Server{AllowedOrigins: []string{"https://ui.example.org"}}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://ui.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://ui.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}
