package intake

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/sports-intake/internal/extract"
	"github.com/sells-group/sports-intake/internal/queue"
)

// mockAdapter implements extract.Adapter for testing.
type mockAdapter struct {
	mock.Mock
}

func (m *mockAdapter) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extract.Result), args.Error(1)
}

// mockDispatcher implements queue.Dispatcher for testing.
type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, t queue.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}
