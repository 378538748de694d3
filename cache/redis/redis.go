package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisSequenceCache struct {
	client redis.UniversalClient
}

func NewRedisSequenceCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisSequenceCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisSequenceCache{client: client}, nil
}

// Key uses a hash tag so all keys of one session land on the same cluster slot
func buildSessionSeqKey(sessionID string) string {
	return "session:{" + sessionID + "}:last_seq"
}

const cacheTTL = 10 * time.Minute

func (seqCache *RedisSequenceCache) LastCompleted(ctx context.Context, sessionID string) (int64, bool, error) {
	val, err := seqCache.client.Get(ctx, buildSessionSeqKey(sessionID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil // Not found
		}
		return 0, false, err
	}
	return val, true, nil
}

func (seqCache *RedisSequenceCache) SetLastCompleted(ctx context.Context, sessionID string, seq int64) error {
	return seqCache.client.Set(ctx, buildSessionSeqKey(sessionID), seq, cacheTTL).Err()
}

func (seqCache *RedisSequenceCache) Close() error {
	return seqCache.client.Close()
}
