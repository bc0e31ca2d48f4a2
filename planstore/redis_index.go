package planstore

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// RedisIndex implements StorageProvider against a Redis instance: plan
// summaries live as plain string keys, and the "plans" index is a sorted
// set scored by creation time, exactly the DB0/ZADD/ZREVRANGEBYSCORE shape
// core/redis_client.go documents for its own discovery index — here
// repurposed from service discovery to plan listing.
type RedisIndex struct {
	client *redis.Client
	prefix string
}

// NewRedisIndex wraps an existing *redis.Client. prefix namespaces keys,
// e.g. "orchestrator:plans:".
func NewRedisIndex(client *redis.Client, prefix string) *RedisIndex {
	return &RedisIndex{client: client, prefix: prefix}
}

func (r *RedisIndex) key(k string) string { return r.prefix + k }

func (r *RedisIndex) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisIndex) Get(ctx context.Context, key string) ([]byte, error) {
	return r.client.Get(ctx, r.key(key)).Bytes()
}

func (r *RedisIndex) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisIndex) AddToIndex(ctx context.Context, index, key string, score float64) error {
	return r.client.ZAdd(ctx, r.key(index), &redis.Z{Score: score, Member: key}).Err()
}

func (r *RedisIndex) ListByScoreDesc(ctx context.Context, index string, limit int) ([]string, error) {
	return r.client.ZRevRange(ctx, r.key(index), 0, int64(limit)-1).Result()
}

func (r *RedisIndex) RemoveFromIndex(ctx context.Context, index, key string) error {
	return r.client.ZRem(ctx, r.key(index), key).Err()
}
