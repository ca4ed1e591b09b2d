package intake

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/queue"
)

const (
	scorePayload    = `{"home_team":"Central","away_team":"East","home_score":52,"away_score":48,"game_date":"2026-03-01"}`
	schedulePayload = `{"school":"Central","games":[
		{"date":"2026-01-03","opponent":"East","location":"home"},
		{"date":"2026-01-05","opponent":"West","location":"away"}]}`
)

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func TestCreate_DispatchesExtraction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var dispatched queue.Task
	f.disp.On("Dispatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { dispatched = args.Get(1).(queue.Task) }).
		Return(nil).Once()

	sub, err := f.svc.Create(ctx, owner, CreateRequest{
		Kind: model.KindScoreSheet, Filename: "board.jpg", Artifact: jpeg, Extract: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, sub.Status)
	assert.Equal(t, "image/jpeg", sub.MediaType)
	assert.Equal(t, owner.ID, sub.OwnerID)
	assert.Equal(t, sub.ID, dispatched.SubmissionID)

	data, err := f.blobs.Get(ctx, sub.ArtifactRef)
	require.NoError(t, err)
	assert.Equal(t, jpeg, data)

	stored, err := f.st.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, stored.Status)
	assert.Equal(t, []model.AuditAction{model.AuditCreate}, auditActions(t, f.st, model.TargetSubmission, sub.ID))
	f.disp.AssertExpectations(t)
}

func TestCreate_WithoutExtractStaysDraft(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Create(context.Background(), owner, CreateRequest{
		Kind: model.KindRoster, Filename: "roster.csv", Artifact: []byte("first,last\nJane,Doe\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, sub.Status)
	assert.Equal(t, "text/csv", sub.MediaType)
	f.disp.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestCreate_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, model.Actor{}, CreateRequest{Kind: model.KindRoster, Artifact: jpeg})
	assert.True(t, errors.Is(err, model.ErrForbidden))

	_, err = f.svc.Create(ctx, owner, CreateRequest{Kind: "invoice", Artifact: jpeg})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	_, err = f.svc.Create(ctx, owner, CreateRequest{Kind: model.KindRoster})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	_, err = f.svc.Create(ctx, owner, CreateRequest{Kind: model.KindRoster, Artifact: make([]byte, 2<<20)})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	subs, err := f.st.ListSubmissions(ctx, model.SubmissionFilter{})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestCreate_DispatchFailureParksTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.disp.On("Dispatch", mock.Anything, mock.Anything).Return(queue.ErrQueueFull).Once()

	sub, err := f.svc.Create(ctx, owner, CreateRequest{
		Kind: model.KindScoreSheet, Filename: "board.jpg", Artifact: jpeg, Extract: true,
	})
	require.NoError(t, err)

	n, err := f.st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.st.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, stored.Status)
}

func TestGetAndList_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.completed(t, owner, model.KindScoreSheet, scorePayload)
	theirs := f.completed(t, other, model.KindScoreSheet, scorePayload)

	got, err := f.svc.Get(ctx, owner, mine.ID)
	require.NoError(t, err)
	assert.JSONEq(t, scorePayload, string(got.Payload))

	_, err = f.svc.Get(ctx, owner, theirs.ID)
	assert.True(t, errors.Is(err, model.ErrForbidden))

	_, err = f.svc.Get(ctx, admin, theirs.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, owner, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	list, err := f.svc.List(ctx, owner, model.SubmissionFilter{OwnerID: other.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	list, err = f.svc.List(ctx, admin, model.SubmissionFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.svc.List(ctx, model.Actor{}, model.SubmissionFilter{})
	assert.True(t, errors.Is(err, model.ErrForbidden))
}

func TestPatch_MergesIntoDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.completed(t, owner, model.KindScoreSheet, `{"home_team":"Central","away_team":"East","home_score":50,"away_score":48,"venue":"Gym"}`)

	got, err := f.svc.Patch(ctx, owner, sub.ID, json.RawMessage(`{"home_score":52,"venue":null}`), false)
	require.NoError(t, err)
	want := `{"home_team":"Central","away_team":"East","home_score":52,"away_score":48}`
	assert.JSONEq(t, want, string(got.Payload))

	stored, err := f.st.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.JSONEq(t, want, string(stored.Payload))
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Contains(t, auditActions(t, f.st, model.TargetSubmission, sub.ID), model.AuditPatch)
}

func TestPatch_Replace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.completed(t, owner, model.KindScoreSheet, scorePayload)

	got, err := f.svc.Patch(ctx, owner, sub.ID, json.RawMessage(`{"home_team":"North"}`), true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"home_team":"North"}`, string(got.Payload))

	_, err = f.svc.Patch(ctx, owner, sub.ID, json.RawMessage(`["not","a","draft"]`), true)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestPatch_RequiresCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Create(ctx, owner, CreateRequest{Kind: model.KindScoreSheet, Filename: "a.jpg", Artifact: jpeg})
	require.NoError(t, err)

	_, err = f.svc.Patch(ctx, owner, sub.ID, json.RawMessage(`{"home_score":1}`), false)
	assert.True(t, errors.Is(err, model.ErrInvalidState))

	done := f.completed(t, owner, model.KindScoreSheet, scorePayload)
	_, err = f.svc.Patch(ctx, other, done.ID, json.RawMessage(`{"home_score":1}`), false)
	assert.True(t, errors.Is(err, model.ErrForbidden))

	_, err = f.svc.Patch(ctx, owner, done.ID, nil, false)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestRequestExtraction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Create(ctx, owner, CreateRequest{Kind: model.KindScoreSheet, Filename: "a.jpg", Artifact: jpeg})
	require.NoError(t, err)

	f.disp.On("Dispatch", mock.Anything, queue.Task{SubmissionID: sub.ID}).Return(nil).Once()
	got, err := f.svc.RequestExtraction(ctx, owner, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)

	// already processing
	_, err = f.svc.RequestExtraction(ctx, owner, sub.ID)
	assert.True(t, errors.Is(err, model.ErrInvalidState))

	// completed submissions cannot be re-extracted
	done := f.completed(t, owner, model.KindScoreSheet, scorePayload)
	_, err = f.svc.RequestExtraction(ctx, owner, done.ID)
	assert.True(t, errors.Is(err, model.ErrInvalidState))
	f.disp.AssertExpectations(t)
}

func TestRequestExtraction_RetriesFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.disp.On("Dispatch", mock.Anything, mock.Anything).Return(nil).Twice()
	sub, err := f.svc.Create(ctx, owner, CreateRequest{Kind: model.KindScoreSheet, Filename: "a.jpg", Artifact: jpeg, Extract: true})
	require.NoError(t, err)
	_, err = f.st.FinishExtraction(ctx, sub.ID, model.ExtractionOutcome{Status: model.StatusFailed, Error: msgTimeout})
	require.NoError(t, err)

	got, err := f.svc.RequestExtraction(ctx, owner, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Empty(t, got.Error)
	f.disp.AssertExpectations(t)
}

func TestOverrideFinding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.completed(t, owner, model.KindScoreSheet, `{"home_team":"Central"}`,
		model.NewFinding(model.FindingMissingField, "away_team", "away_team is required"))
	require.Len(t, sub.Findings, 1)
	findingID := sub.Findings[0].ID

	_, err := f.svc.OverrideFinding(ctx, owner, sub.ID, findingID, "  ")
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	_, err = f.svc.OverrideFinding(ctx, other, sub.ID, findingID, "fine")
	assert.True(t, errors.Is(err, model.ErrForbidden))

	got, err := f.svc.OverrideFinding(ctx, owner, sub.ID, findingID, "forfeit, no opponent")
	require.NoError(t, err)
	assert.True(t, got.Overridden)
	assert.Equal(t, "forfeit, no opponent", got.OverrideReason)
	assert.Equal(t, owner.ID, got.OverriddenBy)

	_, err = f.svc.OverrideFinding(ctx, owner, sub.ID, "nope", "reason")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Contains(t, auditActions(t, f.st, model.TargetFinding, findingID), model.AuditOverride)
}

func TestConfirm_Schedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.completed(t, owner, model.KindSchedule, schedulePayload)

	sum, err := f.svc.Confirm(ctx, owner, sub.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.GamesCreated)
	assert.Equal(t, 3, sum.SchoolsCreated)

	stored, err := f.st.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ConfirmedAt)
	assert.True(t, stored.ConfirmedAt.Equal(fixedT))

	// confirming again creates nothing
	sum, err = f.svc.Confirm(ctx, owner, sub.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.GamesCreated)
	assert.Equal(t, 2, sum.GamesSkipped)
	assert.Contains(t, auditActions(t, f.st, model.TargetSubmission, sub.ID), model.AuditConfirm)
}

func TestConfirm_BodyOverridesStoredDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.completed(t, owner, model.KindSchedule, schedulePayload)

	body := json.RawMessage(`{"school":"Central","games":[{"date":"2026-02-01","opponent":"Lake"}]}`)
	sum, err := f.svc.Confirm(ctx, owner, sub.ID, body)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.GamesCreated)
}

func TestConfirm_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	score := f.completed(t, owner, model.KindScoreSheet, scorePayload)
	_, err := f.svc.Confirm(ctx, owner, score.ID, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	f.disp.On("Dispatch", mock.Anything, mock.Anything).Return(nil).Once()
	processing, err := f.svc.Create(ctx, owner, CreateRequest{Kind: model.KindSchedule, Filename: "s.jpg", Artifact: jpeg, Extract: true})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, owner, processing.ID, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidState))

	draft, err := f.svc.Create(ctx, owner, CreateRequest{
		Kind: model.KindSchedule, Filename: "s.jpg", Artifact: jpeg, Hints: model.Hints{Sport: "soccer"},
	})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, owner, draft.ID, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	// a draft submission can still be confirmed from a hand-entered body
	sum, err := f.svc.Confirm(ctx, owner, draft.ID, json.RawMessage(`{"school":"Central","games":[{"date":"2026-02-01","opponent":"Lake"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.GamesCreated)
}

func TestApprove_CreatesFinalGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.completed(t, owner, model.KindScoreSheet, scorePayload)

	res, err := f.svc.Approve(ctx, owner, sub.ID, nil)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, model.GameFinal, res.Game.Status)
	require.NotNil(t, res.Game.HomeScore)
	assert.Equal(t, 52, *res.Game.HomeScore)
	assert.Equal(t, 48, *res.Game.AwayScore)
	require.NotNil(t, res.Game.EditableUntil)
	assert.True(t, res.Game.EditableUntil.Equal(fixedT.Add(48*time.Hour)))
	assert.Equal(t, sub.ID, res.Game.SourceSubmissionID)

	// approving again returns the same game
	again, err := f.svc.Approve(ctx, owner, sub.ID, nil)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.Game.ID, again.Game.ID)

	sched := f.completed(t, owner, model.KindSchedule, schedulePayload)
	_, err = f.svc.Approve(ctx, owner, sched.ID, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestDelete_KeepsCanonicalRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.completed(t, owner, model.KindScoreSheet, scorePayload,
		model.NewFinding(model.FindingLowConfidence, "confidence", "low"))

	res, err := f.svc.Approve(ctx, owner, sub.ID, nil)
	require.NoError(t, err)

	assert.True(t, errors.Is(f.svc.Delete(ctx, other, sub.ID), model.ErrForbidden))
	require.NoError(t, f.svc.Delete(ctx, owner, sub.ID))

	_, err = f.st.GetSubmission(ctx, sub.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	findings, err := f.st.ListFindings(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, findings)
	_, err = f.blobs.Get(ctx, sub.ArtifactRef)
	assert.Error(t, err)

	g, err := f.st.GetGame(ctx, res.Game.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GameFinal, g.Status)
	assert.Contains(t, auditActions(t, f.st, model.TargetSubmission, sub.ID), model.AuditDelete)

	assert.True(t, errors.Is(f.svc.Delete(ctx, owner, sub.ID), model.ErrNotFound))
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.completed(t, owner, model.KindRoster, `{"school":"Central","players":[]}`)

	require.NoError(t, f.svc.Reject(ctx, owner, sub.ID))
	_, err := f.st.GetSubmission(ctx, sub.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Contains(t, auditActions(t, f.st, model.TargetSubmission, sub.ID), model.AuditReject)
}

func TestCorrectGame_EditWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.completed(t, owner, model.KindScoreSheet, scorePayload)
	res, err := f.svc.Approve(ctx, owner, sub.ID, nil)
	require.NoError(t, err)
	gameID := res.Game.ID

	_, err = f.svc.CorrectGame(ctx, other, gameID, 50, 48, "")
	assert.True(t, errors.Is(err, model.ErrForbidden))

	c, err := f.svc.CorrectGame(ctx, owner, gameID, 54, 48, "")
	require.NoError(t, err)
	assert.False(t, c.Override)
	assert.Equal(t, 52, *c.PrevHomeScore)
	assert.Equal(t, 54, *c.Game.HomeScore)

	f.svc.now = func() time.Time { return fixedT.Add(49 * time.Hour) }

	_, err = f.svc.CorrectGame(ctx, owner, gameID, 55, 48, "typo")
	assert.True(t, errors.Is(err, model.ErrEditWindowClosed))

	_, err = f.svc.CorrectGame(ctx, admin, gameID, 55, 48, "")
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	c, err = f.svc.CorrectGame(ctx, admin, gameID, 55, 48, "league office correction")
	require.NoError(t, err)
	assert.True(t, c.Override)
	assert.Equal(t, 55, *c.Game.HomeScore)

	actions := auditActions(t, f.st, model.TargetGame, gameID)
	assert.Equal(t, []model.AuditAction{model.AuditCorrectScore, model.AuditCorrectScore}, actions)
}

func TestVerifyGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.completed(t, owner, model.KindScoreSheet, scorePayload)
	res, err := f.svc.Approve(ctx, owner, sub.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.VerifyGame(ctx, owner, res.Game.ID)
	assert.True(t, errors.Is(err, model.ErrForbidden))

	g, err := f.svc.VerifyGame(ctx, admin, res.Game.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, g.VerifiedBy)
	require.NotNil(t, g.VerifiedAt)
	assert.Contains(t, auditActions(t, f.st, model.TargetGame, res.Game.ID), model.AuditVerify)
}

func TestSniff(t *testing.T) {
	assert.Equal(t, "image/jpeg", sniff(jpeg, "photo"))
	assert.Equal(t, "image/png", sniff([]byte("\x89PNG\r\n\x1a\n0000"), ""))
	assert.Equal(t, "application/pdf", sniff([]byte("%PDF-1.7\n"), "x.bin"))
	assert.Equal(t, "text/csv", sniff([]byte("a,b"), "ROSTER.CSV"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", sniff([]byte("PK"), "r.xlsx"))
}
