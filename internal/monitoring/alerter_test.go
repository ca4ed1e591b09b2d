package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sports-intake/internal/config"
)

func thresholds() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		MinFinished:          5,
		DLQDepthThreshold:    10,
	}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(thresholds())

	alerts := a.Evaluate(&Snapshot{
		Total:         100,
		Completed:     95,
		Failed:        5,
		FailRate:      0.05,
		DLQDepth:      2,
		LookbackHours: 24,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(thresholds())

	alerts := a.Evaluate(&Snapshot{
		Total:         20,
		Completed:     12,
		Failed:        8,
		FailRate:      0.4,
		LookbackHours: 24,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertExtractionFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Contains(t, alerts[0].Message, "8 failed / 20 finished")
}

func TestAlerter_Evaluate_MinimumFinishedRequired(t *testing.T) {
	a := NewAlerter(thresholds())

	// Three finished extractions is below the five needed to judge a rate.
	alerts := a.Evaluate(&Snapshot{
		Total:     3,
		Completed: 1,
		Failed:    2,
		FailRate:  0.666,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_DLQBacklog(t *testing.T) {
	a := NewAlerter(thresholds())

	alerts := a.Evaluate(&Snapshot{DLQDepth: 12, LookbackHours: 24})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDLQBacklog, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "12 extraction task(s)")
}

func TestAlerter_Evaluate_DLQThresholdDisabled(t *testing.T) {
	cfg := thresholds()
	cfg.DLQDepthThreshold = 0
	a := NewAlerter(cfg)

	assert.Empty(t, a.Evaluate(&Snapshot{DLQDepth: 999}))
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(thresholds())

	alerts := a.Evaluate(&Snapshot{
		Completed: 10,
		Failed:    10,
		FailRate:  0.5,
		DLQDepth:  10,
	})
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertExtractionFailureRate, alerts[0].Type)
	assert.Equal(t, AlertDLQBacklog, alerts[1].Type)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert)) {
			assert.NotEmpty(t, alert.Type)
		}
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertExtractionFailureRate, Severity: "high", Message: "rate"},
		{Type: AlertDLQBacklog, Severity: "medium", Message: "backlog"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertDLQBacklog, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})

	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertDLQBacklog, Message: "test"}})
	assert.Equal(t, 0, sent)
}
