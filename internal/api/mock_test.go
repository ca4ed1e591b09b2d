package api

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/sports-intake/internal/commit"
	"github.com/sells-group/sports-intake/internal/intake"
	"github.com/sells-group/sports-intake/internal/model"
)

// mockService implements Service for testing.
type mockService struct {
	mock.Mock
}

func (m *mockService) Create(ctx context.Context, actor model.Actor, req intake.CreateRequest) (*model.Submission, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *mockService) Get(ctx context.Context, actor model.Actor, id string) (*model.Submission, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *mockService) List(ctx context.Context, actor model.Actor, filter model.SubmissionFilter) ([]model.Submission, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Submission), args.Error(1)
}

func (m *mockService) Patch(ctx context.Context, actor model.Actor, id string, body json.RawMessage, replace bool) (*model.Submission, error) {
	args := m.Called(ctx, actor, id, body, replace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *mockService) RequestExtraction(ctx context.Context, actor model.Actor, id string) (*model.Submission, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *mockService) OverrideFinding(ctx context.Context, actor model.Actor, id, findingID, reason string) (*model.Finding, error) {
	args := m.Called(ctx, actor, id, findingID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Finding), args.Error(1)
}

func (m *mockService) Confirm(ctx context.Context, actor model.Actor, id string, body json.RawMessage) (*model.CommitSummary, error) {
	args := m.Called(ctx, actor, id, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommitSummary), args.Error(1)
}

func (m *mockService) Approve(ctx context.Context, actor model.Actor, id string, body json.RawMessage) (*model.ApproveResult, error) {
	args := m.Called(ctx, actor, id, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ApproveResult), args.Error(1)
}

func (m *mockService) Reject(ctx context.Context, actor model.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockService) Delete(ctx context.Context, actor model.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockService) CorrectGame(ctx context.Context, actor model.Actor, gameID string, home, away int, reason string) (*commit.Correction, error) {
	args := m.Called(ctx, actor, gameID, home, away, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commit.Correction), args.Error(1)
}

func (m *mockService) VerifyGame(ctx context.Context, actor model.Actor, gameID string) (*model.Game, error) {
	args := m.Called(ctx, actor, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Game), args.Error(1)
}

// mockPinger implements Pinger for testing.
type mockPinger struct {
	mock.Mock
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
