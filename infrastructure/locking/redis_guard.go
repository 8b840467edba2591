package locking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lease only when this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a save guard shared by every instance using the same Redis.
// Leases expire after ttl so a crashed holder cannot block saves forever.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisGuard creates a Redis-backed save guard
func NewRedisGuard(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl, logger: logger}
}

func (g *RedisGuard) makeKey(key string) string {
	return fmt.Sprintf("sitemap:save-lease:%s", key)
}

// TryAcquire takes the lease with SET NX
func (g *RedisGuard) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	holder := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.makeKey(key), holder, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire save lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// release even when the request context is gone
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, g.client, []string{g.makeKey(key)}, holder).Err(); err != nil {
			g.logger.Warn("Failed to release save lease", zap.String("key", key), zap.Error(err))
		}
	}
	return sync.OnceFunc(release), true, nil
}
