package queue

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/resilience"
)

type mockDLQ struct {
	mock.Mock
}

func (m *mockDLQ) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockDLQ) ListDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]resilience.DLQEntry), args.Error(1)
}

func (m *mockDLQ) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	args := m.Called(ctx, id, nextRetryAt, lastErr)
	return args.Error(0)
}

func (m *mockDLQ) RemoveDLQ(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockSubmissions struct {
	mock.Mock
}

func (m *mockSubmissions) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *mockSubmissions) ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Submission), args.Error(1)
}

func (m *mockSubmissions) FinishExtraction(ctx context.Context, id string, out model.ExtractionOutcome) (bool, error) {
	args := m.Called(ctx, id, out)
	return args.Bool(0), args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, t Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}
