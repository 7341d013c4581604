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

	"github.com/sells-group/family-events/internal/config"
	"github.com/sells-group/family-events/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSourceFailure   AlertType = "source_failure"
	AlertExtractionDrift AlertType = "extraction_drift"
	AlertSourceStale     AlertType = "source_stale"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Source    string         `json:"source"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	if cfg.DriftRuns <= 0 {
		cfg.DriftRuns = 3
	}
	if cfg.StaleAfterHours <= 0 {
		cfg.StaleAfterHours = 48
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks every source in the snapshot and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt
	staleAfter := time.Duration(a.cfg.StaleAfterHours) * time.Hour

	for _, h := range snap.Sources {
		src := string(h.Source)

		if h.LastRun != nil && h.LastRun.Status == model.RunStatusFailed {
			alerts = append(alerts, Alert{
				Type:     AlertSourceFailure,
				Source:   src,
				Severity: "high",
				Message:  fmt.Sprintf("%s refresh failed (%d in a row): %s", src, h.ConsecutiveFailures, h.LastRun.Error),
				Details: map[string]any{
					"run_id":               h.LastRun.ID,
					"consecutive_failures": h.ConsecutiveFailures,
				},
				Timestamp: now,
			})
		}

		if h.ZeroStreak >= a.cfg.DriftRuns {
			alerts = append(alerts, Alert{
				Type:     AlertExtractionDrift,
				Source:   src,
				Severity: "medium",
				Message:  fmt.Sprintf("%s produced no records in its last %d successful runs; the page layout may have changed", src, h.ZeroStreak),
				Details: map[string]any{
					"zero_streak": h.ZeroStreak,
					"threshold":   a.cfg.DriftRuns,
				},
				Timestamp: now,
			})
		}

		switch {
		case h.LastSuccess == nil:
			alerts = append(alerts, Alert{
				Type:      AlertSourceStale,
				Source:    src,
				Severity:  "medium",
				Message:   fmt.Sprintf("%s has never refreshed successfully", src),
				Details:   map[string]any{"runs": h.Runs},
				Timestamp: now,
			})
		case now.Sub(*h.LastSuccess) > staleAfter:
			age := now.Sub(*h.LastSuccess)
			alerts = append(alerts, Alert{
				Type:     AlertSourceStale,
				Source:   src,
				Severity: "medium",
				Message:  fmt.Sprintf("%s last refreshed %.0fh ago (limit %dh)", src, age.Hours(), a.cfg.StaleAfterHours),
				Details: map[string]any{
					"last_success": h.LastSuccess.Format(time.RFC3339),
					"age_hours":    age.Hours(),
				},
				Timestamp: now,
			})
		}
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
				zap.String("source", alert.Source),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("source", alert.Source),
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
