// Package intake runs the submission workflow: upload, asynchronous
// extraction, human correction and confirmation into canonical rows.
// Every operation takes the acting user explicitly.
package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/audit"
	"github.com/sells-group/sports-intake/internal/blob"
	"github.com/sells-group/sports-intake/internal/commit"
	"github.com/sells-group/sports-intake/internal/metrics"
	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/queue"
	"github.com/sells-group/sports-intake/internal/store"
)

// Store is the persistence the service needs.
type Store interface {
	store.SubmissionStore
	queue.DLQStore
	GetGame(ctx context.Context, id string) (*model.Game, error)
}

// Service orchestrates submissions.
type Service struct {
	store      Store
	blobs      blob.Store
	dispatcher queue.Dispatcher
	engine     *commit.Engine
	audit      *audit.Recorder
	metrics    *metrics.Metrics

	blobPrefix    string
	maxBytes      int
	dlqMaxRetries int
	now           func() time.Time
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store      Store
	Blobs      blob.Store
	Dispatcher queue.Dispatcher
	Engine     *commit.Engine
	Audit      *audit.Recorder
	Metrics    *metrics.Metrics

	BlobPrefix    string
	MaxArtifactMB int
	DLQMaxRetries int
}

// NewService wires a service.
func NewService(d Deps) *Service {
	retries := d.DLQMaxRetries
	if retries <= 0 {
		retries = 5
	}
	return &Service{
		store:         d.Store,
		blobs:         d.Blobs,
		dispatcher:    d.Dispatcher,
		engine:        d.Engine,
		audit:         d.Audit,
		metrics:       d.Metrics,
		blobPrefix:    d.BlobPrefix,
		maxBytes:      d.MaxArtifactMB << 20,
		dlqMaxRetries: retries,
		now:           time.Now,
	}
}

// CreateRequest is an upload.
type CreateRequest struct {
	Kind      model.Kind
	Filename  string
	MediaType string
	Artifact  []byte
	Hints     model.Hints
	// Extract dispatches extraction immediately. Without it the submission
	// waits in draft.
	Extract bool
}

// Create stores the artifact and the submission, then hands extraction to
// the queue. It returns without waiting for extraction.
func (s *Service) Create(ctx context.Context, actor model.Actor, req CreateRequest) (*model.Submission, error) {
	if actor.ID == "" {
		return nil, eris.Wrap(model.ErrForbidden, "intake: anonymous upload")
	}
	kind, err := model.ParseKind(string(req.Kind))
	if err != nil {
		return nil, err
	}
	if len(req.Artifact) == 0 {
		return nil, eris.Wrap(model.ErrInvalidInput, "intake: artifact is empty")
	}
	if s.maxBytes > 0 && len(req.Artifact) > s.maxBytes {
		return nil, eris.Wrapf(model.ErrInvalidInput, "intake: artifact is %d bytes, limit %d", len(req.Artifact), s.maxBytes)
	}
	mediaType := strings.TrimSpace(req.MediaType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = sniff(req.Artifact, req.Filename)
	}

	sub := &model.Submission{
		ID:        uuid.New().String(),
		OwnerID:   actor.ID,
		Kind:      kind,
		Status:    model.StatusDraft,
		MediaType: mediaType,
		Filename:  req.Filename,
		Hints:     req.Hints,
	}
	if req.Extract {
		sub.Status = model.StatusProcessing
	}

	ref, err := s.blobs.Put(ctx, blob.Key(s.blobPrefix, sub.ID, req.Filename), mediaType, req.Artifact)
	if err != nil {
		return nil, eris.Wrap(err, "intake: store artifact")
	}
	sub.ArtifactRef = ref

	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), ref); derr != nil {
			zap.L().Warn("intake: orphaned artifact", zap.String("artifact", ref), zap.Error(derr))
		}
		return nil, eris.Wrap(err, "intake: create submission")
	}

	s.metrics.SubmissionCreated(string(kind))
	s.audit.Record(ctx, actor, model.AuditCreate, model.TargetSubmission, sub.ID, map[string]any{
		"kind":     string(kind),
		"status":   string(sub.Status),
		"artifact": ref,
	})
	zap.L().Info("intake: submission created",
		zap.String("submission_id", sub.ID),
		zap.String("kind", string(kind)),
		zap.String("actor", actor.ID),
		zap.String("status", string(sub.Status)),
	)

	if req.Extract {
		s.dispatch(ctx, sub)
	}
	return sub, nil
}

// dispatch hands the submission to the queue. An undeliverable task is
// parked in the dead-letter queue; if even that fails the submission is
// failed so its owner can retry.
func (s *Service) dispatch(ctx context.Context, sub *model.Submission) {
	err := s.dispatcher.Dispatch(ctx, queue.Task{SubmissionID: sub.ID})
	if err == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := zap.L().With(zap.String("submission_id", sub.ID), zap.String("artifact", sub.ArtifactRef))
	log.Warn("intake: dispatch failed", zap.Error(err))

	perr := queue.Park(ctx, s.store, sub.ID, err, s.dlqMaxRetries)
	if perr == nil {
		s.metrics.DeadLetter()
		return
	}
	log.Error("intake: park failed", zap.Error(perr))
	if _, ferr := s.store.FinishExtraction(ctx, sub.ID, model.ExtractionOutcome{
		Status: model.StatusFailed,
		Error:  "extraction could not be scheduled",
	}); ferr != nil {
		log.Error("intake: fail undispatched submission", zap.Error(ferr))
	}
}

// load fetches a submission the actor may act on.
func (s *Service) load(ctx context.Context, actor model.Actor, id string) (*model.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.OwnedBy(actor) {
		return nil, eris.Wrapf(model.ErrForbidden, "intake: %s may not access submission %s", actor.ID, id)
	}
	return sub, nil
}

// Get returns a submission with its payload and findings.
func (s *Service) Get(ctx context.Context, actor model.Actor, id string) (*model.Submission, error) {
	return s.load(ctx, actor, id)
}

// List returns submissions. Members only see their own.
func (s *Service) List(ctx context.Context, actor model.Actor, filter model.SubmissionFilter) ([]model.Submission, error) {
	if !actor.IsAdmin() {
		if actor.ID == "" {
			return nil, eris.Wrap(model.ErrForbidden, "intake: anonymous list")
		}
		filter.OwnerID = actor.ID
	}
	return s.store.ListSubmissions(ctx, filter)
}

// Patch corrects the draft of a completed submission. The body is merged
// into the stored draft as a JSON merge patch, or replaces it when replace
// is set. Validation is not re-run.
func (s *Service) Patch(ctx context.Context, actor model.Actor, id string, body json.RawMessage, replace bool) (*model.Submission, error) {
	sub, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.StatusCompleted {
		return nil, eris.Wrapf(model.ErrInvalidState, "intake: submission %s is %s; only completed drafts can be edited", id, sub.Status)
	}
	if !hasBody(body) {
		return nil, eris.Wrap(model.ErrInvalidInput, "intake: patch body is empty")
	}

	var payload json.RawMessage
	if replace {
		if _, err := model.DecodeDraft(sub.Kind, body); err != nil {
			return nil, err
		}
		payload = body
	} else if payload, err = mergePatch(sub.Payload, body); err != nil {
		return nil, err
	}

	if err := s.store.UpdatePayload(ctx, id, payload); err != nil {
		return nil, err
	}
	sub.Payload = payload
	s.audit.Record(ctx, actor, model.AuditPatch, model.TargetSubmission, id, map[string]any{
		"replace": replace,
		"bytes":   len(body),
	})
	return sub, nil
}

// RequestExtraction moves a draft or failed submission to processing and
// dispatches extraction.
func (s *Service) RequestExtraction(ctx context.Context, actor model.Actor, id string) (*model.Submission, error) {
	sub, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.TransitionSubmission(ctx, id, sourcesOf(model.StatusProcessing), model.StatusProcessing); err != nil {
		return nil, err
	}
	prev := sub.Status
	sub.Status = model.StatusProcessing
	sub.Error = ""

	s.audit.Record(ctx, actor, model.AuditRequestExtraction, model.TargetSubmission, id, map[string]any{
		"from": string(prev),
	})
	s.dispatch(ctx, sub)
	return sub, nil
}

// OverrideFinding records that a reviewer accepts a flagged issue.
func (s *Service) OverrideFinding(ctx context.Context, actor model.Actor, id, findingID, reason string) (*model.Finding, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, eris.Wrap(model.ErrInvalidInput, "intake: override reason is required")
	}
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	f, err := s.store.OverrideFinding(ctx, id, findingID, reason, actor.ID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, model.AuditOverride, model.TargetFinding, findingID, map[string]any{
		"submission_id": id,
		"code":          string(f.Code),
		"reason":        reason,
	})
	return f, nil
}

// draftFor picks the draft to commit: the request body when present,
// otherwise the stored payload.
func draftFor(sub *model.Submission, body json.RawMessage) (any, error) {
	if sub.Status == model.StatusProcessing {
		return nil, eris.Wrapf(model.ErrInvalidState, "intake: submission %s is still processing", sub.ID)
	}
	raw := body
	if !hasBody(raw) {
		if !sub.HasPayload() {
			return nil, eris.Wrapf(model.ErrInvalidInput, "intake: submission %s has no draft to commit", sub.ID)
		}
		raw = sub.Payload
	}
	return model.DecodeDraft(sub.Kind, raw)
}

// Confirm commits a schedule or roster draft.
func (s *Service) Confirm(ctx context.Context, actor model.Actor, id string, body json.RawMessage) (*model.CommitSummary, error) {
	sub, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sub.Kind == model.KindScoreSheet {
		return nil, eris.Wrap(model.ErrInvalidInput, "intake: score sheets are approved, not confirmed")
	}
	draft, err := draftFor(sub, body)
	if err != nil {
		return nil, err
	}

	var sum *model.CommitSummary
	switch d := draft.(type) {
	case *model.ScheduleDraft:
		sum, err = s.engine.CommitSchedule(ctx, sub, d)
	case *model.RosterDraft:
		sum, err = s.engine.CommitRoster(ctx, sub, d)
	default:
		return nil, eris.Wrapf(model.ErrInvalidInput, "intake: cannot confirm %s", sub.Kind)
	}
	if err != nil {
		zap.L().Warn("intake: confirm failed",
			zap.String("submission_id", sub.ID),
			zap.String("artifact", sub.ArtifactRef),
			zap.Error(err),
		)
		return nil, err
	}

	s.markConfirmed(ctx, sub)
	s.recordCommit(sum)
	s.audit.Record(ctx, actor, model.AuditConfirm, model.TargetSubmission, id, summaryChanges(sum))
	return sum, nil
}

// Approve commits a score sheet as a final game.
func (s *Service) Approve(ctx context.Context, actor model.Actor, id string, body json.RawMessage) (*model.ApproveResult, error) {
	sub, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sub.Kind != model.KindScoreSheet {
		return nil, eris.Wrapf(model.ErrInvalidInput, "intake: %s submissions are confirmed, not approved", sub.Kind)
	}
	draft, err := draftFor(sub, body)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.ApproveScoreSheet(ctx, sub, draft.(*model.ScoreSheetDraft), s.now())
	if err != nil {
		zap.L().Warn("intake: approve failed",
			zap.String("submission_id", sub.ID),
			zap.String("artifact", sub.ArtifactRef),
			zap.Error(err),
		)
		return nil, err
	}

	s.markConfirmed(ctx, sub)
	outcome := string(model.OutcomeUpdated)
	if res.Created {
		outcome = string(model.OutcomeCreated)
	}
	s.metrics.CommitRows(string(sub.Kind), outcome, 1)
	s.audit.Record(ctx, actor, model.AuditApprove, model.TargetSubmission, id, map[string]any{
		"game_id":         res.Game.ID,
		"created":         res.Created,
		"home_score":      derefInt(res.Game.HomeScore),
		"away_score":      derefInt(res.Game.AwayScore),
		"schools_created": res.SchoolsCreated,
	})
	return res, nil
}

func (s *Service) markConfirmed(ctx context.Context, sub *model.Submission) {
	at := s.now().UTC()
	if err := s.store.MarkConfirmed(ctx, sub.ID, at); err != nil {
		zap.L().Warn("intake: stamp confirmed_at failed", zap.String("submission_id", sub.ID), zap.Error(err))
		return
	}
	sub.ConfirmedAt = &at
}

func (s *Service) recordCommit(sum *model.CommitSummary) {
	kind := string(sum.Kind)
	s.metrics.CommitRows(kind, string(model.OutcomeCreated), sum.GamesCreated+sum.RosterCreated)
	s.metrics.CommitRows(kind, string(model.OutcomeUpdated), sum.GamesUpdated+sum.RosterUpdated)
	s.metrics.CommitRows(kind, string(model.OutcomeSkipped), sum.GamesSkipped)
	s.metrics.CommitRows(kind, string(model.OutcomeFailed), sum.Failed)
}

func summaryChanges(sum *model.CommitSummary) map[string]any {
	return map[string]any{
		"games_created":   sum.GamesCreated,
		"games_skipped":   sum.GamesSkipped,
		"players_created": sum.PlayersCreated,
		"players_updated": sum.PlayersUpdated,
		"roster_created":  sum.RosterCreated,
		"roster_updated":  sum.RosterUpdated,
		"schools_created": sum.SchoolsCreated,
		"failed":          sum.Failed,
	}
}

// Reject discards a submission the reviewer will not commit.
func (s *Service) Reject(ctx context.Context, actor model.Actor, id string) error {
	return s.remove(ctx, actor, id, model.AuditReject)
}

// Delete removes a submission in any state. Canonical rows already
// committed from it are kept.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id string) error {
	return s.remove(ctx, actor, id, model.AuditDelete)
}

func (s *Service) remove(ctx context.Context, actor model.Actor, id string, action model.AuditAction) error {
	sub, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSubmission(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), sub.ArtifactRef); err != nil {
		zap.L().Warn("intake: delete artifact failed",
			zap.String("submission_id", id),
			zap.String("artifact", sub.ArtifactRef),
			zap.Error(err),
		)
	}
	s.audit.Record(ctx, actor, action, model.TargetSubmission, id, map[string]any{
		"kind":   string(sub.Kind),
		"status": string(sub.Status),
	})
	return nil
}

// CorrectGame changes a final game's score. Members may correct games
// from their own submissions inside the edit window; admins may always
// correct and are recorded as overriding once the window has closed.
func (s *Service) CorrectGame(ctx context.Context, actor model.Actor, gameID string, home, away int, reason string) (*commit.Correction, error) {
	if !actor.IsAdmin() {
		g, err := s.store.GetGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if !s.ownsSource(ctx, actor, g) {
			return nil, eris.Wrapf(model.ErrForbidden, "intake: %s may not correct game %s", actor.ID, gameID)
		}
	}

	c, err := s.engine.CorrectGameScore(ctx, actor, gameID, home, away, reason, s.now())
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, model.AuditCorrectScore, model.TargetGame, gameID, map[string]any{
		"prev_home_score": derefInt(c.PrevHomeScore),
		"prev_away_score": derefInt(c.PrevAwayScore),
		"home_score":      home,
		"away_score":      away,
		"override":        c.Override,
		"reason":          strings.TrimSpace(reason),
	})
	return c, nil
}

func (s *Service) ownsSource(ctx context.Context, actor model.Actor, g *model.Game) bool {
	if g.SourceSubmissionID == "" || actor.ID == "" {
		return false
	}
	sub, err := s.store.GetSubmission(ctx, g.SourceSubmissionID)
	if err != nil {
		return false
	}
	return sub.OwnerID == actor.ID
}

// VerifyGame marks a game as checked. Admin only.
func (s *Service) VerifyGame(ctx context.Context, actor model.Actor, gameID string) (*model.Game, error) {
	g, err := s.engine.VerifyGame(ctx, actor, gameID, s.now())
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, model.AuditVerify, model.TargetGame, gameID, nil)
	return g, nil
}

func derefInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// sniff guesses a media type from the file name, then the content.
func sniff(data []byte, filename string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".xlsx"):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case strings.HasSuffix(strings.ToLower(filename), ".csv"):
		return "text/csv"
	}
	mt := http.DetectContentType(data)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}
