package intake

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sports-intake/internal/audit"
	"github.com/sells-group/sports-intake/internal/blob"
	"github.com/sells-group/sports-intake/internal/commit"
	"github.com/sells-group/sports-intake/internal/config"
	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/store"
)

var (
	owner  = model.Actor{ID: "u1", Role: model.RoleMember}
	other  = model.Actor{ID: "u2", Role: model.RoleMember}
	admin  = model.Actor{ID: "a1", Role: model.RoleAdmin}
	fixedT = time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc   *Service
	st    *store.SQLiteStore
	blobs *blob.Local
	disp  *mockDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewSQLite(filepath.Join(dir, "intake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	blobs, err := blob.NewLocal(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)

	disp := &mockDispatcher{}
	svc := NewService(Deps{
		Store:         st,
		Blobs:         blobs,
		Dispatcher:    disp,
		Engine:        commit.New(st, config.CommitConfig{EditWindowHours: 48}),
		Audit:         audit.NewRecorder(st),
		BlobPrefix:    "submissions/",
		MaxArtifactMB: 1,
		DLQMaxRetries: 3,
	})
	svc.now = func() time.Time { return fixedT }
	return &fixture{svc: svc, st: st, blobs: blobs, disp: disp}
}

// completed creates a submission owned by actor and drives it to completed
// with payload and findings, the way the runner would.
func (f *fixture) completed(t *testing.T, actor model.Actor, kind model.Kind, payload string, findings ...model.Finding) *model.Submission {
	t.Helper()
	ctx := context.Background()
	f.disp.On("Dispatch", mock.Anything, mock.Anything).Return(nil).Once()
	sub, err := f.svc.Create(ctx, actor, CreateRequest{
		Kind: kind, Filename: "upload.jpg", MediaType: "image/jpeg",
		Artifact: []byte{0xff, 0xd8, 0xff, 0xe0}, Hints: model.Hints{Sport: "basketball"}, Extract: true,
	})
	require.NoError(t, err)
	applied, err := f.st.FinishExtraction(ctx, sub.ID, model.ExtractionOutcome{
		Status:   model.StatusCompleted,
		Payload:  json.RawMessage(payload),
		Findings: findings,
	})
	require.NoError(t, err)
	require.True(t, applied)

	got, err := f.st.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	return got
}

func auditActions(t *testing.T, st *store.SQLiteStore, targetType, id string) []model.AuditAction {
	t.Helper()
	entries, err := st.ListAudit(context.Background(), targetType, id)
	require.NoError(t, err)
	out := make([]model.AuditAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}
