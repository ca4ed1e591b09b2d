package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ScheduleReplay runs r.Replay on spec (standard cron syntax or @every).
// Overlapping runs are skipped. Stop the returned cron to end replays.
func ScheduleReplay(spec string, r *Replayer, timeout time.Duration) (*cron.Cron, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	var running atomic.Bool
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if !running.CompareAndSwap(false, true) {
			return
		}
		defer running.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		stats, err := r.Replay(ctx)
		if err != nil {
			zap.L().Error("queue: dead-letter replay failed", zap.Error(err))
			return
		}
		if stats != (ReplayStats{}) {
			zap.L().Info("queue: dead-letter replay",
				zap.Int("dispatched", stats.Dispatched),
				zap.Int("failed", stats.Failed),
				zap.Int("dropped", stats.Dropped),
				zap.Int("exhausted", stats.Exhausted),
				zap.Int("swept", stats.Swept),
			)
		}
	})
	if err != nil {
		return nil, eris.Wrapf(err, "queue: invalid replay schedule %q", spec)
	}
	c.Start()
	return c, nil
}
