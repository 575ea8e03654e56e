package httpapi

import (
	"context"
	"time"

	"cms-api/internal/users"
	"cms-api/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter throttles login attempts per key.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// RedisLoginLimiter is a fixed-window LoginLimiter shared across API replicas.
type RedisLoginLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLoginLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLoginLimiter {
	return &RedisLoginLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *RedisLoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return utils.AllowFixedWindow(ctx, l.rdb, key, l.limit, l.window)
}

func (l *RedisLoginLimiter) Reset(ctx context.Context, key string) error {
	return utils.ResetWindow(ctx, l.rdb, key)
}

func loginThrottleKey(email, ip string) string {
	return "login_attempts:" + users.NormalizeEmail(email) + ":" + ip
}
