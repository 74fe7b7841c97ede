package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// VersionKey tracks the global leaderboard version for efficient change
// detection. The websocket hub polls it as a backstop for missed pushes.
const VersionKey = "leaderboard:version"

// RedisRepository handles all Redis operations
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
	}
}

// BumpVersion increments the leaderboard version. Called whenever the
// leaderboard changes (submit upsert, administrative reset).
func (r *RedisRepository) BumpVersion(ctx context.Context) error {
	return r.client.Incr(ctx, VersionKey).Err()
}

// GetVersion returns the current global version number, 0 if never bumped.
func (r *RedisRepository) GetVersion(ctx context.Context) (int64, error) {
	version, err := r.client.Get(ctx, VersionKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// Ping checks if Redis is reachable
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
