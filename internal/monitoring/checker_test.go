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
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sports-intake/internal/config"
	"github.com/sells-group/sports-intake/internal/model"
)

type recordingGauges struct {
	calls    atomic.Int32
	ratio    float64
	dlqDepth int
}

func (g *recordingGauges) Health(ratio float64, depth int) {
	g.ratio, g.dlqDepth = ratio, depth
	g.calls.Add(1)
}

func TestChecker_Check_SendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := thresholds()
	cfg.WebhookURL = ts.URL

	src := &fakeSource{dlqCount: 15}
	for range 5 {
		src.subs = append(src.subs, sub(model.StatusFailed, time.Hour))
	}
	gauges := &recordingGauges{}

	alerts := NewChecker(newTestCollector(src), NewAlerter(cfg), gauges, cfg).Check(context.Background())
	require.Len(t, alerts, 2)
	assert.Equal(t, int32(2), received.Load())
	assert.InDelta(t, 1.0, gauges.ratio, 0.001)
	assert.Equal(t, 15, gauges.dlqDepth)
}

func TestChecker_Check_Healthy(t *testing.T) {
	cfg := thresholds()
	src := &fakeSource{subs: []model.Submission{sub(model.StatusCompleted, time.Hour)}}
	gauges := &recordingGauges{}

	alerts := NewChecker(newTestCollector(src), NewAlerter(cfg), gauges, cfg).Check(context.Background())
	assert.Empty(t, alerts)
	assert.Equal(t, int32(1), gauges.calls.Load())
	assert.Zero(t, gauges.ratio)
}

func TestChecker_Check_CollectError(t *testing.T) {
	cfg := thresholds()
	src := &fakeSource{listErr: errors.New("db down")}
	gauges := &recordingGauges{}

	alerts := NewChecker(newTestCollector(src), NewAlerter(cfg), gauges, cfg).Check(context.Background())
	assert.Empty(t, alerts)
	assert.Equal(t, int32(0), gauges.calls.Load())
}

func TestChecker_Defaults(t *testing.T) {
	c := NewChecker(newTestCollector(&fakeSource{}), NewAlerter(config.MonitoringConfig{}), nil, config.MonitoringConfig{})
	assert.Equal(t, 5*time.Minute, c.interval)
	assert.Equal(t, 24, c.lookback)

	// Nil gauges are skipped.
	assert.Empty(t, c.Check(context.Background()))
}

func TestChecker_RunChecksImmediatelyAndStops(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 3600, LookbackWindowHours: 24}
	gauges := &recordingGauges{}
	checker := NewChecker(newTestCollector(&fakeSource{}), NewAlerter(cfg), gauges, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return gauges.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_RunCancelledBeforeStart(t *testing.T) {
	gauges := &recordingGauges{}
	checker := NewChecker(newTestCollector(&fakeSource{}), NewAlerter(config.MonitoringConfig{}), gauges, config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
	assert.Equal(t, int32(0), gauges.calls.Load())
}
