package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"quizforge/internal/cache"
	"quizforge/internal/domain"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T) *domain.SessionSnapshot {
	t.Helper()
	q, err := domain.NewQuestion("Which attack uses SMS?", []string{"Smishing", "Vishing"}, []int{0})
	require.NoError(t, err)
	return &domain.SessionSnapshot{
		ID:        "01HZY3N6D2V2Q0E8Y5M4W1T7KX",
		Quiz:      domain.Quiz{ID: "quiz-1", Questions: []domain.Question{q}, RequestedCount: 1},
		State:     domain.SessionInProgress,
		UpdatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRedisSessionStore_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisSessionStore(db, time.Hour)
	ctx := context.Background()
	snap := testSnapshot(t)
	key := cache.SessionKey(snap.ID)

	t.Run("Success", func(t *testing.T) {
		data, err := json.Marshal(snap)
		require.NoError(t, err)
		mock.ExpectGet(key).SetVal(string(data))

		got, err := store.Get(ctx, snap.ID)
		require.NoError(t, err)
		assert.Equal(t, snap, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectGet(key).SetErr(redis.Nil)
		_, err := store.Get(ctx, snap.ID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Corrupt", func(t *testing.T) {
		mock.ExpectGet(key).SetVal("{not json")
		_, err := store.Get(ctx, snap.ID)
		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.CodeInternal, domainErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RedisError", func(t *testing.T) {
		redisErr := errors.New("some redis error")
		mock.ExpectGet(key).SetErr(redisErr)
		_, err := store.Get(ctx, snap.ID)
		assert.ErrorIs(t, err, redisErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisSessionStore_Save(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ttl := 30 * time.Minute
	store := NewRedisSessionStore(db, ttl)
	ctx := context.Background()
	snap := testSnapshot(t)
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectSet(cache.SessionKey(snap.ID), data, ttl).SetVal("OK")
		assert.NoError(t, store.Save(ctx, snap))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RedisError", func(t *testing.T) {
		redisErr := errors.New("some redis error")
		mock.ExpectSet(cache.SessionKey(snap.ID), data, ttl).SetErr(redisErr)
		assert.ErrorIs(t, store.Save(ctx, snap), redisErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisSessionStore_DeleteAndPing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisSessionStore(db, time.Hour)
	ctx := context.Background()

	mock.ExpectDel(cache.SessionKey("gone")).SetVal(0)
	assert.NoError(t, store.Delete(ctx, "gone"))

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, store.Ping(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
