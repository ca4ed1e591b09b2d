package commit

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

func (m *mockStore) GetRosterEntry(ctx context.Context, playerID, schoolID, season, sport string) (*model.RosterEntry, error) {
	args := m.Called(ctx, playerID, schoolID, season, sport)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RosterEntry), args.Error(1)
}

func (m *mockStore) CreateRosterEntry(ctx context.Context, e *model.RosterEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockStore) UpdateRosterEntry(ctx context.Context, e *model.RosterEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockStore) FindGame(ctx context.Context, key model.GameKey) (*model.Game, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Game), args.Error(1)
}

func (m *mockStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Game), args.Error(1)
}

func (m *mockStore) CreateGame(ctx context.Context, g *model.Game) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *mockStore) UpdateGame(ctx context.Context, g *model.Game) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}
