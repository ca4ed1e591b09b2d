package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/config"
)

// Gauges receives the latest health figures after each check.
type Gauges interface {
	Health(failureRatio float64, dlqDepth int)
}

// Checker periodically collects a Snapshot, publishes it to Gauges and
// sends the alerts it triggers.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	gauges    Gauges
	interval  time.Duration
	lookback  int
}

// NewChecker creates a background alert checker. gauges may be nil.
func NewChecker(collector *Collector, alerter *Alerter, gauges Gauges, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	lookback := cfg.LookbackWindowHours
	if lookback <= 0 {
		lookback = 24
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		gauges:    gauges,
		interval:  interval,
		lookback:  lookback,
	}
}

// Run checks once immediately, then on every interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			c.Check(ctx)
		}
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check runs one collection and returns the alerts that fired. A failed
// collection logs and returns nil.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		zap.L().Error("monitoring: collect failed", zap.Error(err))
		return nil
	}
	if c.gauges != nil {
		c.gauges.Health(snap.FailRate, snap.DLQDepth)
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	for _, a := range alerts {
		zap.L().Warn("monitoring: threshold breached",
			zap.String("type", string(a.Type)),
			zap.String("message", a.Message),
		)
	}
	zap.L().Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
