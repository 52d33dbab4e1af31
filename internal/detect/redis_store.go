package detect

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failurePrefix = "secmon:failures:"
	requestPrefix = "secmon:requests:"
)

// RedisStore keeps the detection windows in Redis so horizontally scaled
// instances see the same counters. Failure counters use INCR with an
// expiry pinned to the window's first entry; request windows use a sorted
// set pruned by score.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) IncrFailures(ctx context.Context, key string, window time.Duration) (int, error) {
	redisKey := failurePrefix + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// NX keeps the TTL anchored to the first failure, not refreshed per hit.
	pipe.ExpireNX(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment failure counter: %w", err)
	}

	return int(incr.Val()), nil
}

func (r *RedisStore) RecordRequest(ctx context.Context, ip string, window time.Duration) (int, error) {
	redisKey := requestPrefix + ip
	now := time.Now()
	cutoff := now.Add(-window).UnixNano()

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record request: %w", err)
	}

	return int(card.Val()), nil
}

var _ CounterStore = (*RedisStore)(nil)
