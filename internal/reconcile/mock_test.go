package reconcile

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/sports-intake/internal/model"
)

// mockStore implements Store for testing.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindSchools(ctx context.Context, normalizedName string) ([]model.School, error) {
	args := m.Called(ctx, normalizedName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.School), args.Error(1)
}

func (m *mockStore) CreateSchool(ctx context.Context, s *model.School) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockStore) FindPlayer(ctx context.Context, schoolID, normalizedName string) (*model.Player, error) {
	args := m.Called(ctx, schoolID, normalizedName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Player), args.Error(1)
}

func (m *mockStore) CreatePlayer(ctx context.Context, p *model.Player) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockStore) UpdatePlayer(ctx context.Context, p *model.Player) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
