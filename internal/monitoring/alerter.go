package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/satyamrathirar/popularity-vision/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStoreUnreachable AlertType = "store_unreachable"
	AlertStaleRun         AlertType = "stale_run"
	AlertFailureRate      AlertType = "failure_rate"
	AlertNoRecentData     AlertType = "no_recent_data"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if !snap.StoreReachable {
		alerts = append(alerts, Alert{
			Type:      AlertStoreUnreachable,
			Severity:  "critical",
			Message:   "Workflow store is unreachable",
			Timestamp: now,
		})
		// Nothing else is trustworthy without the store.
		return alerts
	}

	staleAfter := float64(a.cfg.StaleRunHours)
	if staleAfter <= 0 {
		staleAfter = 25
	}
	if snap.LastRunID == "" || snap.HoursSinceRun > staleAfter {
		msg := "No ingestion run has ever completed"
		if snap.LastRunID != "" {
			msg = fmt.Sprintf("Last ingestion run was %.1fh ago (threshold %.0fh)",
				snap.HoursSinceRun, staleAfter)
		}
		alerts = append(alerts, Alert{
			Type:     AlertStaleRun,
			Severity: "high",
			Message:  msg,
			Details: map[string]any{
				"last_run_id":     snap.LastRunID,
				"hours_since_run": snap.HoursSinceRun,
				"threshold_hours": staleAfter,
			},
			Timestamp: now,
		})
	}

	finished := snap.RunsSuccess + snap.RunsPartial + snap.RunsFailed
	if finished >= 3 && snap.FailureRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Ingestion failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailureRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailureRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RunsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.RunsTotal > 0 && snap.RecentWorkflows == 0 {
		alerts = append(alerts, Alert{
			Type:     AlertNoRecentData,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d run(s) in last %dh but no workflow records were updated",
				snap.RunsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"runs_total":      snap.RunsTotal,
				"total_workflows": snap.TotalWorkflows,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
