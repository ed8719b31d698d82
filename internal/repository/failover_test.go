package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"cottage/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockStore) DeleteSession(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverSessionStore(t *testing.T) {
	primary := new(mockStore)
	fallback := NewMemorySessionStore()
	logger := zerolog.New(io.Discard)
	repo := NewFailoverSessionStore(primary, fallback, &logger)
	now := time.Now()
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		session := &models.Session{ID: "p", UserID: 1}
		primary.On("GetSession", ctx, "p").Return(session, nil).Once()

		got, err := repo.GetSession(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, session, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailureFallsBack", func(t *testing.T) {
		session := &models.Session{ID: "f", UserID: 2, ExpiresAt: now.Add(time.Hour)}
		primary.On("SaveSession", ctx, session).Return(errors.New("connection refused")).Once()

		require.NoError(t, repo.SaveSession(ctx, session))

		// primary is not consulted while down
		got, err := repo.GetSession(ctx, "f")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(2), got.UserID)

		allowed, err := repo.CheckRateLimit(ctx, "k", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
	})

	t.Run("Recovery", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("GetSession", ctx, "f").Return(nil, nil).Once()

		got, err := repo.GetSession(ctx, "f")
		require.NoError(t, err)
		require.NotNil(t, got, "falls through to the fallback copy")

		primary.On("DeleteSession", ctx, "f").Return(nil).Once()
		require.NoError(t, repo.DeleteSession(ctx, "f"))

		got, err = fallback.GetSession(ctx, "f")
		require.NoError(t, err)
		assert.Nil(t, got)
		primary.AssertExpectations(t)
	})
}
