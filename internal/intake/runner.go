package intake

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/audit"
	"github.com/sells-group/sports-intake/internal/blob"
	"github.com/sells-group/sports-intake/internal/extract"
	"github.com/sells-group/sports-intake/internal/metrics"
	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/queue"
	"github.com/sells-group/sports-intake/internal/validate"
)

// RunnerStore is what the extraction runner reads and writes.
type RunnerStore interface {
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	FinishExtraction(ctx context.Context, id string, out model.ExtractionOutcome) (bool, error)
}

// Runner performs one extraction attempt per task and is the only writer
// of the completed and failed statuses.
type Runner struct {
	store     RunnerStore
	blobs     blob.Store
	adapter   extract.Adapter
	validator *validate.Engine
	audit     *audit.Recorder
	metrics   *metrics.Metrics
}

// NewRunner creates a runner.
func NewRunner(st RunnerStore, blobs blob.Store, adapter extract.Adapter, validator *validate.Engine, rec *audit.Recorder, m *metrics.Metrics) *Runner {
	return &Runner{store: st, blobs: blobs, adapter: adapter, validator: validator, audit: rec, metrics: m}
}

var _ queue.Handler = (*Runner)(nil)

// Failure messages stored on the submission. Details go to the log.
const (
	msgArtifactUnavailable = "artifact could not be read"
	msgUnsupported         = "artifact type is not supported"
	msgTimeout             = "extraction timed out"
	msgUnavailable         = "extraction service unavailable"
	msgNothingUsable       = "extraction returned nothing usable"
)

// Run extracts the submission named by t. Submissions that were deleted or
// are no longer processing are skipped.
func (r *Runner) Run(ctx context.Context, t queue.Task) error {
	sub, err := r.store.GetSubmission(ctx, t.SubmissionID)
	if errors.Is(err, model.ErrNotFound) {
		zap.L().Info("runner: submission gone, skipping", zap.String("submission_id", t.SubmissionID))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "runner: load submission %s", t.SubmissionID)
	}
	if sub.Status != model.StatusProcessing {
		zap.L().Info("runner: submission not processing, skipping",
			zap.String("submission_id", sub.ID),
			zap.String("status", string(sub.Status)),
		)
		return nil
	}

	log := zap.L().With(
		zap.String("submission_id", sub.ID),
		zap.String("kind", string(sub.Kind)),
		zap.String("artifact", sub.ArtifactRef),
	)
	start := time.Now()

	data, err := r.blobs.Get(ctx, sub.ArtifactRef)
	if err != nil {
		log.Error("runner: read artifact failed", zap.Error(err))
		return r.fail(ctx, sub, msgArtifactUnavailable, start)
	}

	res, err := r.adapter.Extract(ctx, extract.Request{
		Kind:      sub.Kind,
		Artifact:  data,
		MediaType: sub.MediaType,
		Filename:  sub.Filename,
		Hints:     sub.Hints,
	})
	if err != nil {
		log.Error("runner: extraction failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return r.fail(ctx, sub, failureMessage(err), start)
	}
	if res == nil || !res.Success || len(res.Draft) == 0 {
		log.Warn("runner: extraction returned nothing usable")
		return r.fail(ctx, sub, msgNothingUsable, start)
	}

	checked := r.validator.Validate(sub.Kind, res.Draft)
	findings := make([]model.Finding, 0, len(res.Findings)+len(checked))
	findings = append(findings, res.Findings...)
	findings = append(findings, checked...)
	out := model.ExtractionOutcome{
		Status:     model.StatusCompleted,
		Payload:    res.Draft,
		Findings:   findings,
		DurationMS: time.Since(start).Milliseconds(),
	}
	applied, err := r.finish(ctx, sub.ID, out)
	if err != nil {
		log.Error("runner: record result failed", zap.Error(err))
		return err
	}
	if !applied {
		log.Info("runner: submission changed during extraction, result dropped")
		return nil
	}

	r.metrics.Extraction(string(sub.Kind), string(model.StatusCompleted), time.Since(start))
	for _, f := range findings {
		r.metrics.Finding(string(sub.Kind), string(f.Code))
	}
	r.audit.Record(ctx, model.SystemActor, model.AuditExtracted, model.TargetSubmission, sub.ID, map[string]any{
		"status":      string(model.StatusCompleted),
		"findings":    len(findings),
		"model":       res.Model,
		"duration_ms": out.DurationMS,
	})
	log.Info("runner: extraction completed",
		zap.Int("findings", len(findings)),
		zap.Int64("duration_ms", out.DurationMS),
	)
	return nil
}

func (r *Runner) fail(ctx context.Context, sub *model.Submission, msg string, start time.Time) error {
	applied, err := r.finish(ctx, sub.ID, model.ExtractionOutcome{
		Status:     model.StatusFailed,
		Error:      msg,
		DurationMS: time.Since(start).Milliseconds(),
	})
	if err != nil {
		zap.L().Error("runner: record failure failed",
			zap.String("submission_id", sub.ID),
			zap.String("artifact", sub.ArtifactRef),
			zap.Error(err),
		)
		return err
	}
	if !applied {
		return nil
	}
	r.metrics.Extraction(string(sub.Kind), string(model.StatusFailed), time.Since(start))
	r.audit.Record(ctx, model.SystemActor, model.AuditExtracted, model.TargetSubmission, sub.ID, map[string]any{
		"status": string(model.StatusFailed),
		"error":  msg,
	})
	return nil
}

// finish writes the outcome even when the task context has expired.
func (r *Runner) finish(ctx context.Context, id string, out model.ExtractionOutcome) (bool, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	return r.store.FinishExtraction(ctx, id, out)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return msgUnsupported
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	default:
		return msgUnavailable
	}
}
