package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/family-events/internal/config"
	"github.com/sells-group/family-events/internal/model"
)

func healthy(src model.Source) SourceHealth {
	last := run(model.RunStatusComplete, 10, 2)
	success := *last.CompletedAt
	return SourceHealth{
		Source:       src,
		LastRun:      &last,
		LastSuccess:  &success,
		LastProduced: 10,
		Runs:         5,
	}
}

func snapshot(sources ...SourceHealth) *Snapshot {
	return &Snapshot{Sources: sources, CollectedAt: checkTime}
}

func monitoringCfg() config.MonitoringConfig {
	return config.MonitoringConfig{StaleAfterHours: 48, DriftRuns: 3}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(monitoringCfg())
	alerts := a.Evaluate(snapshot(healthy(model.SourceParks), healthy(model.SourceLibrary)))
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_SourceFailure(t *testing.T) {
	h := healthy(model.SourceParks)
	failed := run(model.RunStatusFailed, 0, 1)
	failed.Error = "source: fetch https://example.org: status 503"
	h.LastRun = &failed
	h.ConsecutiveFailures = 1

	alerts := NewAlerter(monitoringCfg()).Evaluate(snapshot(h))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSourceFailure, alerts[0].Type)
	assert.Equal(t, "fairfax-parks", alerts[0].Source)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "status 503")
	assert.Equal(t, checkTime, alerts[0].Timestamp)
}

func TestAlerter_Evaluate_ExtractionDrift(t *testing.T) {
	h := healthy(model.SourceMuseum)
	h.ZeroStreak = 2
	assert.Empty(t, NewAlerter(monitoringCfg()).Evaluate(snapshot(h)))

	h.ZeroStreak = 3
	alerts := NewAlerter(monitoringCfg()).Evaluate(snapshot(h))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertExtractionDrift, alerts[0].Type)
	assert.Equal(t, 3, alerts[0].Details["zero_streak"])
}

func TestAlerter_Evaluate_Stale(t *testing.T) {
	old := healthy(model.SourceFarm)
	at := checkTime.Add(-72 * time.Hour)
	old.LastSuccess = &at

	never := SourceHealth{Source: model.SourceLibrary}

	alerts := NewAlerter(monitoringCfg()).Evaluate(snapshot(old, never))
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertSourceStale, alerts[0].Type)
	assert.Equal(t, "great-country-farms", alerts[0].Source)
	assert.Contains(t, alerts[0].Message, "72h")
	assert.Equal(t, AlertSourceStale, alerts[1].Type)
	assert.Contains(t, alerts[1].Message, "never refreshed")
}

func TestAlerter_Defaults(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.Equal(t, 3, a.cfg.DriftRuns)
	assert.Equal(t, 48, a.cfg.StaleAfterHours)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := monitoringCfg()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{
		Type:      AlertSourceStale,
		Source:    "library",
		Severity:  "medium",
		Message:   "library has never refreshed successfully",
		Timestamp: checkTime,
	}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
	assert.Equal(t, AlertSourceStale, got.Type)
	assert.Equal(t, "library", got.Source)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := monitoringCfg()
	cfg.WebhookURL = srv.URL
	sent := NewAlerter(cfg).SendAlerts(context.Background(), []Alert{{Type: AlertSourceFailure}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	sent := NewAlerter(monitoringCfg()).SendAlerts(context.Background(), []Alert{{Type: AlertSourceFailure}})
	assert.Equal(t, 0, sent)
}
