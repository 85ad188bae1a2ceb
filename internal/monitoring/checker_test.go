package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/catalog-updater/internal/config"
	"github.com/sells-group/catalog-updater/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    1,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.10,
	}
	checker := NewChecker(NewCollector(&mockRuns{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	now := time.Now()
	runs := &mockRuns{runs: []model.Run{
		{Status: model.RunStatusFailed, CreatedAt: now},
		{Status: model.RunStatusFailed, CreatedAt: now},
		{Status: model.RunStatusFailed, CreatedAt: now},
	}}
	cfg := config.MonitoringConfig{
		WebhookURL:           srv.URL,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.5,
	}

	n := NewChecker(NewCollector(runs), NewAlerter(cfg), cfg).Check(context.Background())
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), hits.Load())
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(&mockRuns{listErr: errors.New("boom")}), NewAlerter(cfg), cfg)
	assert.Equal(t, 0, checker.Check(context.Background()))
}
