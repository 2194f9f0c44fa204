package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satyamrathirar/popularity-vision/internal/config"
	"github.com/satyamrathirar/popularity-vision/internal/model"
	"github.com/satyamrathirar/popularity-vision/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// stubStore serves canned data to the collector.
type stubStore struct {
	pingErr  error
	runs     []model.RunReport
	total    int
	recent   int
	listsErr error
}

func (s *stubStore) UpsertWorkflow(ctx context.Context, rec model.WorkflowRecord) (*model.WorkflowRecord, error) {
	return nil, nil
}
func (s *stubStore) GetWorkflow(ctx context.Context, name string, platform model.Platform, country string) (*model.WorkflowRecord, error) {
	return nil, nil
}
func (s *stubStore) ListWorkflows(ctx context.Context, filter store.WorkflowFilter) ([]model.WorkflowRecord, error) {
	return nil, nil
}
func (s *stubStore) CountWorkflows(ctx context.Context) (int, error) { return s.total, nil }
func (s *stubStore) CountWorkflowsUpdatedSince(ctx context.Context, cutoff time.Time) (int, error) {
	return s.recent, nil
}
func (s *stubStore) StartRun(ctx context.Context, report *model.RunReport) error  { return nil }
func (s *stubStore) FinishRun(ctx context.Context, report *model.RunReport) error { return nil }
func (s *stubStore) LastRun(ctx context.Context) (*model.RunReport, error) {
	if len(s.runs) == 0 {
		return nil, nil
	}
	return &s.runs[0], nil
}
func (s *stubStore) ListRuns(ctx context.Context, limit int) ([]model.RunReport, error) {
	return s.runs, s.listsErr
}
func (s *stubStore) Migrate(ctx context.Context) error { return nil }
func (s *stubStore) Ping(ctx context.Context) error    { return s.pingErr }
func (s *stubStore) Close() error                      { return nil }

func TestCollectorHealthySystem(t *testing.T) {
	now := time.Now().UTC()
	st := &stubStore{
		runs: []model.RunReport{
			{RunID: "r2", Status: model.RunStatusSuccess, StartedAt: now.Add(-2 * time.Hour), RecordsUpserted: 40},
			{RunID: "r1", Status: model.RunStatusSuccess, StartedAt: now.Add(-26 * time.Hour)},
		},
		total:  120,
		recent: 40,
	}

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.True(t, snap.StoreReachable)
	assert.Equal(t, "r2", snap.LastRunID)
	assert.InDelta(t, 2.0, snap.HoursSinceRun, 0.1)
	assert.Equal(t, 1, snap.RunsTotal, "run outside the window excluded")
	assert.Equal(t, 1, snap.RunsSuccess)
	assert.Zero(t, snap.FailureRate)
	assert.Equal(t, 120, snap.TotalWorkflows)
	assert.Equal(t, 40, snap.RecentWorkflows)
}

func TestCollectorUnreachableStore(t *testing.T) {
	st := &stubStore{pingErr: errors.New("refused")}

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.False(t, snap.StoreReachable)
}

func TestCollectorFailureRate(t *testing.T) {
	now := time.Now().UTC()
	st := &stubStore{
		runs: []model.RunReport{
			{Status: model.RunStatusFailure, StartedAt: now.Add(-1 * time.Hour)},
			{Status: model.RunStatusFailure, StartedAt: now.Add(-2 * time.Hour)},
			{Status: model.RunStatusSuccess, StartedAt: now.Add(-3 * time.Hour)},
			{Status: model.RunStatusPartialFailure, StartedAt: now.Add(-4 * time.Hour)},
		},
	}

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, snap.FailureRate, 0.001)
}

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		StaleRunHours:        25,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.5,
	}
}

func TestAlerterStoreUnreachable(t *testing.T) {
	alerts := NewAlerter(testMonitoringConfig()).Evaluate(&MetricsSnapshot{StoreReachable: false})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStoreUnreachable, alerts[0].Type)
}

func TestAlerterStaleRun(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		StoreReachable: true,
		LastRunID:      "r1",
		HoursSinceRun:  30,
		RunsTotal:      0,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleRun, alerts[0].Type)

	// Fresh run: no alert.
	alerts = a.Evaluate(&MetricsSnapshot{
		StoreReachable: true,
		LastRunID:      "r1",
		HoursSinceRun:  2,
	})
	assert.Empty(t, alerts)
}

func TestAlerterNeverRan(t *testing.T) {
	alerts := NewAlerter(testMonitoringConfig()).Evaluate(&MetricsSnapshot{StoreReachable: true})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleRun, alerts[0].Type)
}

func TestAlerterFailureRate(t *testing.T) {
	snap := &MetricsSnapshot{
		StoreReachable: true,
		LastRunID:      "r1",
		HoursSinceRun:  1,
		RunsTotal:      4,
		RunsFailed:     3,
		RunsSuccess:    1,
		FailureRate:    0.75,
		LookbackHours:  24,
		RecentWorkflows: 10,
	}
	alerts := NewAlerter(testMonitoringConfig()).Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFailureRate, alerts[0].Type)
}

func TestAlerterNoRecentData(t *testing.T) {
	snap := &MetricsSnapshot{
		StoreReachable:  true,
		LastRunID:       "r1",
		HoursSinceRun:   1,
		RunsTotal:       2,
		RunsSuccess:     2,
		RecentWorkflows: 0,
		TotalWorkflows:  50,
		LookbackHours:   24,
	}
	alerts := NewAlerter(testMonitoringConfig()).Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertNoRecentData, alerts[0].Type)
}

func TestSendAlertsWebhook(t *testing.T) {
	var received []Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		received = append(received, a)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertStaleRun, Severity: "high", Message: "stale"},
		{Type: AlertFailureRate, Severity: "high", Message: "failures"},
	})
	assert.Equal(t, 2, sent)
	require.Len(t, received, 2)
	assert.Equal(t, AlertStaleRun, received[0].Type)
}

func TestSendAlertsNoWebhookConfigured(t *testing.T) {
	sent := NewAlerter(testMonitoringConfig()).SendAlerts(context.Background(), []Alert{{Type: AlertStaleRun}})
	assert.Zero(t, sent)
}

func newTestChecker(st store.Store) *Checker {
	cfg := testMonitoringConfig()
	cfg.CheckIntervalSecs = 1
	return NewChecker(NewCollector(st), NewAlerter(cfg), cfg)
}

func TestCheckerCheckHealthy(t *testing.T) {
	now := time.Now().UTC()
	st := &stubStore{
		runs: []model.RunReport{
			{RunID: "r1", Status: model.RunStatusSuccess, StartedAt: now.Add(-time.Hour)},
		},
		total:  50,
		recent: 10,
	}

	snap, alerts, err := newTestChecker(st).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.StoreReachable)
	assert.Empty(t, alerts)
}

func TestCheckerCheckUnreachableStore(t *testing.T) {
	st := &stubStore{pingErr: errors.New("refused")}

	snap, alerts, err := newTestChecker(st).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.StoreReachable)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStoreUnreachable, alerts[0].Type)
}

func TestCheckerMutesRepeatAlerts(t *testing.T) {
	c := newTestChecker(&stubStore{})
	now := time.Now().UTC()
	stale := []Alert{{Type: AlertStaleRun, Severity: "high"}}

	fresh := c.unmuted(stale, now)
	require.Len(t, fresh, 1, "first occurrence delivers")

	fresh = c.unmuted(stale, now.Add(time.Minute))
	assert.Empty(t, fresh, "repeat within the mute window stays muted")

	fresh = c.unmuted(stale, now.Add(alertMuteWindow+time.Minute))
	assert.Len(t, fresh, 1, "persistent condition re-alerts after the window")
}

func TestCheckerClearedAlertResetsMute(t *testing.T) {
	c := newTestChecker(&stubStore{})
	now := time.Now().UTC()
	stale := []Alert{{Type: AlertStaleRun, Severity: "high"}}

	require.Len(t, c.unmuted(stale, now), 1)
	assert.Empty(t, c.unmuted(nil, now.Add(time.Minute)), "condition cleared")

	fresh := c.unmuted(stale, now.Add(2*time.Minute))
	assert.Len(t, fresh, 1, "condition coming back alerts immediately")
}

func TestCheckerRunStopsOnCancel(t *testing.T) {
	checker := newTestChecker(&stubStore{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}
