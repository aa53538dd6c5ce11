package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizforge/internal/cache"
	"quizforge/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps session snapshots in Redis as JSON. Every save
// refreshes the TTL, so idle sessions expire.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// Get translates redis.Nil to domain.ErrSessionNotFound.
func (r *RedisSessionStore) Get(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	val, err := r.client.Get(ctx, cache.SessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NewSessionNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	var snapshot domain.SessionSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, domain.NewInternalError("corrupt session snapshot", err)
	}
	return &snapshot, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, snapshot *domain.SessionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", snapshot.ID, err)
	}
	if err := r.client.Set(ctx, cache.SessionKey(snapshot.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", snapshot.ID, err)
	}
	return nil
}

// Delete does not fail for unknown ids.
func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, cache.SessionKey(id)).Err()
}

// Ping checks the health of the Redis server.
func (r *RedisSessionStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ domain.SessionStore = (*RedisSessionStore)(nil)
