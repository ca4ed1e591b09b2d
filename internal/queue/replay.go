package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/resilience"
)

// DLQStore is the dead-letter storage the replayer drains.
type DLQStore interface {
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
}

// SubmissionStore is what the replayer needs to check and fail submissions.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error)
	FinishExtraction(ctx context.Context, id string, out model.ExtractionOutcome) (bool, error)
}

// ReplayStats summarizes one replay pass.
type ReplayStats struct {
	Dispatched int `json:"dispatched" yaml:"dispatched"`
	Failed     int `json:"failed" yaml:"failed"`
	Dropped    int `json:"dropped" yaml:"dropped"`
	Exhausted  int `json:"exhausted" yaml:"exhausted"`
	Swept      int `json:"swept" yaml:"swept"`
}

// msgStale is stored on submissions whose extraction never reported back.
const msgStale = "extraction did not finish; request it again"

// Replayer redelivers extraction tasks parked in the dead-letter queue.
type Replayer struct {
	dlq        DLQStore
	subs       SubmissionStore
	dispatcher Dispatcher
	batchSize  int
	staleAfter time.Duration
	now        func() time.Time
}

// ReplayOption configures a Replayer.
type ReplayOption func(*Replayer)

// WithStaleAfter makes each pass fail submissions that have been processing
// without an update for longer than d. Zero disables the sweep.
func WithStaleAfter(d time.Duration) ReplayOption {
	return func(r *Replayer) { r.staleAfter = d }
}

// NewReplayer creates a replayer that drains up to batchSize entries a pass.
func NewReplayer(dlq DLQStore, subs SubmissionStore, d Dispatcher, batchSize int, opts ...ReplayOption) *Replayer {
	if batchSize <= 0 {
		batchSize = 20
	}
	r := &Replayer{dlq: dlq, subs: subs, dispatcher: d, batchSize: batchSize, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Replay first fails stale processing submissions, then dispatches every
// due entry once. Entries whose submission is gone or no longer processing
// are dropped. An entry that runs out of attempts fails its submission so
// the owner can retry by hand.
func (r *Replayer) Replay(ctx context.Context) (ReplayStats, error) {
	var stats ReplayStats
	if r.staleAfter > 0 {
		n, err := r.sweep(ctx)
		stats.Swept = n
		if err != nil {
			return stats, err
		}
	}

	entries, err := r.dlq.ListDLQ(ctx, resilience.DLQFilter{DueOnly: true, Limit: r.batchSize})
	if err != nil {
		return stats, eris.Wrap(err, "queue: list dead letters")
	}

	for i := range entries {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		entry := &entries[i]
		log := zap.L().With(zap.String("dlq_id", entry.ID), zap.String("submission_id", entry.SubmissionID))

		sub, err := r.subs.GetSubmission(ctx, entry.SubmissionID)
		if errors.Is(err, model.ErrNotFound) || (err == nil && sub.Status != model.StatusProcessing) {
			if err := r.dlq.RemoveDLQ(ctx, entry.ID); err != nil {
				log.Warn("queue: drop stale dead letter failed", zap.Error(err))
			}
			stats.Dropped++
			continue
		}
		if err != nil {
			return stats, eris.Wrapf(err, "queue: load submission %s", entry.SubmissionID)
		}

		derr := r.dispatcher.Dispatch(ctx, Task{SubmissionID: entry.SubmissionID})
		if derr == nil {
			if err := r.dlq.RemoveDLQ(ctx, entry.ID); err != nil {
				log.Warn("queue: remove replayed dead letter failed", zap.Error(err))
			}
			stats.Dispatched++
			continue
		}

		now := r.now().UTC()
		entry.RetryCount++
		if err := r.dlq.IncrementDLQRetry(ctx, entry.ID, entry.NextAttempt(now), derr.Error()); err != nil {
			log.Warn("queue: record replay failure failed", zap.Error(err))
		}
		stats.Failed++
		log.Warn("queue: replay dispatch failed", zap.Int("retry_count", entry.RetryCount), zap.Error(derr))

		if !entry.CanRetry() {
			stats.Exhausted++
			r.exhaust(ctx, entry, derr)
		}
	}
	return stats, nil
}

// sweep fails processing submissions that no runner has finished within
// staleAfter. Tasks lost from a local buffer on restart end up here.
func (r *Replayer) sweep(ctx context.Context) (int, error) {
	cutoff := r.now().UTC().Add(-r.staleAfter)
	subs, err := r.subs.ListSubmissions(ctx, model.SubmissionFilter{
		Status:        model.StatusProcessing,
		UpdatedBefore: cutoff,
		Limit:         r.batchSize,
	})
	if err != nil {
		return 0, eris.Wrap(err, "queue: list stale submissions")
	}

	swept := 0
	for _, sub := range subs {
		applied, err := r.subs.FinishExtraction(ctx, sub.ID, model.ExtractionOutcome{
			Status: model.StatusFailed,
			Error:  msgStale,
		})
		if err != nil {
			return swept, eris.Wrapf(err, "queue: fail stale submission %s", sub.ID)
		}
		if !applied {
			continue
		}
		swept++
		zap.L().Warn("queue: stale processing submission failed",
			zap.String("submission_id", sub.ID),
			zap.String("artifact", sub.ArtifactRef),
			zap.Time("updated_at", sub.UpdatedAt),
		)
	}
	return swept, nil
}

func (r *Replayer) exhaust(ctx context.Context, entry *resilience.DLQEntry, cause error) {
	msg := fmt.Sprintf("extraction could not be dispatched after %d attempts: %v", entry.RetryCount, cause)
	if _, err := r.subs.FinishExtraction(ctx, entry.SubmissionID, model.ExtractionOutcome{
		Status: model.StatusFailed,
		Error:  msg,
	}); err != nil {
		zap.L().Error("queue: fail exhausted submission",
			zap.String("submission_id", entry.SubmissionID),
			zap.Error(err),
		)
		return
	}
	if err := r.dlq.RemoveDLQ(ctx, entry.ID); err != nil {
		zap.L().Warn("queue: remove exhausted dead letter failed", zap.String("dlq_id", entry.ID), zap.Error(err))
	}
}

// Park records a task that could not be dispatched.
func Park(ctx context.Context, dlq DLQStore, submissionID string, cause error, maxRetries int) error {
	entry := resilience.NewDLQEntry(submissionID, cause, maxRetries, time.Now().UTC())
	if err := dlq.EnqueueDLQ(ctx, entry); err != nil {
		return eris.Wrapf(err, "queue: park %s", submissionID)
	}
	zap.L().Warn("queue: task parked in dead-letter queue",
		zap.String("submission_id", submissionID),
		zap.String("error_type", entry.ErrorType),
		zap.Error(cause),
	)
	return nil
}

// ParkFailures wraps h so a task whose handler errors or panics is parked
// in the dead-letter queue for replay. Parked tasks count as handled.
func ParkFailures(h Handler, dlq DLQStore, maxRetries int) Handler {
	return HandlerFunc(func(ctx context.Context, t Task) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = eris.Errorf("queue: task %s panicked: %v", t.SubmissionID, rec)
			}
			if err == nil {
				return
			}
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if perr := Park(pctx, dlq, t.SubmissionID, err, maxRetries); perr != nil {
				err = errors.Join(err, perr)
				return
			}
			err = nil
		}()
		return h.Run(ctx, t)
	})
}
