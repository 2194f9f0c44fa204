package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satyamrathirar/popularity-vision/internal/config"
)

// alertMuteWindow is how long an already-delivered alert type stays muted
// while its condition persists. A condition that clears and then comes
// back alerts again immediately.
const alertMuteWindow = 6 * time.Hour

// Checker ties the collector and alerter together: a one-shot Check for
// the status command and a periodic loop for serve mode. The loop mutes
// repeat deliveries so a stale run does not page on every tick.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	mu       sync.Mutex
	lastSent map[AlertType]time.Time
}

// NewChecker creates an ingestion health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		lastSent:  make(map[AlertType]time.Time),
	}
}

// Check collects one snapshot and evaluates it against the alert
// thresholds. It never sends anything; delivery is the caller's call.
func (c *Checker) Check(ctx context.Context) (*MetricsSnapshot, []Alert, error) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		return nil, nil, err
	}
	return snap, c.alerter.Evaluate(snap), nil
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting ingestion health checks",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("ingestion health checks stopped")
			return
		case <-ticker.C:
			c.tick(ctx, log)
		}
	}
}

func (c *Checker) tick(ctx context.Context, log *zap.Logger) {
	snap, alerts, err := c.Check(ctx)
	if err != nil {
		log.Error("monitoring: health check failed", zap.Error(err))
		return
	}

	if len(alerts) == 0 {
		log.Debug("monitoring: ingestion healthy",
			zap.String("last_run_id", snap.LastRunID),
			zap.Float64("failure_rate", snap.FailureRate),
		)
		return
	}

	fresh := c.unmuted(alerts, time.Now().UTC())
	if len(fresh) == 0 {
		log.Debug("monitoring: active alerts still muted", zap.Int("active", len(alerts)))
		return
	}

	sent := c.alerter.SendAlerts(ctx, fresh)
	log.Warn("monitoring: ingestion health check raised alerts",
		zap.Int("active", len(alerts)),
		zap.Int("sent", sent),
		zap.String("last_run_status", string(snap.LastRunStatus)),
		zap.Float64("failure_rate", snap.FailureRate),
	)
}

// unmuted filters out alerts delivered within alertMuteWindow and clears
// the mute for alert types that are no longer active.
func (c *Checker) unmuted(alerts []Alert, now time.Time) []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := make(map[AlertType]bool, len(alerts))
	var fresh []Alert
	for _, a := range alerts {
		active[a.Type] = true
		if sent, ok := c.lastSent[a.Type]; ok && now.Sub(sent) < alertMuteWindow {
			continue
		}
		c.lastSent[a.Type] = now
		fresh = append(fresh, a)
	}
	for typ := range c.lastSent {
		if !active[typ] {
			delete(c.lastSent, typ)
		}
	}
	return fresh
}
