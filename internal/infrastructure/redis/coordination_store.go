package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCoordinationStore backs the per-auction lock protocol. The two
// operations map onto SETNX-with-expiry and an atomic compare-and-delete.
type RedisCoordinationStore struct {
	client *redis.Client
}

func NewRedisCoordinationStore(client *redis.Client) *RedisCoordinationStore {
	return &RedisCoordinationStore{client: client}
}

func (r *RedisCoordinationStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *RedisCoordinationStore) DeleteIfMatches(ctx context.Context, key, value string) (bool, error) {
	// Single Lua script so the read and delete cannot interleave with
	// another caller acquiring the same key.
	luaScript := `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `

	result, err := r.client.Eval(ctx, luaScript, []string{key}, value).Result()
	if err != nil {
		return false, err
	}

	return result.(int64) == 1, nil
}
