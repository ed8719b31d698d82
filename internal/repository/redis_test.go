package repository

import (
	"context"
	"testing"
	"time"

	"cottage/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	repo := NewRedisSessionStore(client)
	ctx := context.Background()

	t.Run("SaveAndGetSession", func(t *testing.T) {
		session := &models.Session{
			ID:        "abc",
			UserID:    7,
			Role:      models.RoleAdmin,
			CreatedAt: time.Now().UTC(),
			ExpiresAt: time.Now().Add(time.Hour).UTC(),
		}
		require.NoError(t, repo.SaveSession(ctx, session))

		got, err := repo.GetSession(ctx, "abc")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(7), got.UserID)
		assert.Equal(t, models.RoleAdmin, got.Role)

		ttl := s.TTL(sessionKeyPrefix + "abc")
		assert.Greater(t, ttl, 59*time.Minute)
	})

	t.Run("ExpiredSessionRejected", func(t *testing.T) {
		err := repo.SaveSession(ctx, &models.Session{ID: "old", ExpiresAt: time.Now().Add(-time.Second)})
		assert.Error(t, err)
	})

	t.Run("GetUnknownSession", func(t *testing.T) {
		got, err := repo.GetSession(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SessionExpiresWithTTL", func(t *testing.T) {
		require.NoError(t, repo.SaveSession(ctx, &models.Session{ID: "short", UserID: 1, ExpiresAt: time.Now().Add(time.Minute)}))
		s.FastForward(2 * time.Minute)

		got, err := repo.GetSession(ctx, "short")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeleteSession", func(t *testing.T) {
		require.NoError(t, repo.SaveSession(ctx, &models.Session{ID: "bye", UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}))
		require.NoError(t, repo.DeleteSession(ctx, "bye"))

		got, err := repo.GetSession(ctx, "bye")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CheckRateLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := repo.CheckRateLimit(ctx, "submit:10.0.0.1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := repo.CheckRateLimit(ctx, "submit:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, "submit:10.0.0.2", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "other keys have their own window")

		s.FastForward(61 * time.Second)
		allowed, err = repo.CheckRateLimit(ctx, "submit:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("PingAndClose", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestRedisSessionStore_NilClient(t *testing.T) {
	repo := NewRedisSessionStore(nil)
	ctx := context.Background()

	_, err := repo.GetSession(ctx, "x")
	assert.Error(t, err)
	assert.Error(t, repo.SaveSession(ctx, &models.Session{ID: "x"}))
	assert.Error(t, repo.DeleteSession(ctx, "x"))
	_, err = repo.CheckRateLimit(ctx, "x", 1, time.Second)
	assert.Error(t, err)
	assert.NoError(t, Close(nil))
}

func TestNewRedisClient(t *testing.T) {
	s := miniredis.RunT(t)
	client := NewRedisClient(configFor(s.Addr()))
	defer client.Close()
	assert.NoError(t, Ping(context.Background(), client))
}
