package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLockerConfig holds configuration for RedisLocker
type RedisLockerConfig struct {
	// KeyPrefix is prepended to every lock key. Default: "lock:"
	KeyPrefix string
	// TTL bounds how long a crashed holder can keep a key. Default: 30s
	TTL time.Duration
	// RetryInterval is the wait between acquisition attempts. Default: 50ms
	RetryInterval time.Duration
}

// DefaultRedisLockerConfig returns the default Redis locker configuration
func DefaultRedisLockerConfig() RedisLockerConfig {
	return RedisLockerConfig{
		KeyPrefix:     "lock:",
		TTL:           30 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}
}

// RedisLocker is a distributed lock using SET NX PX with a per-holder token
type RedisLocker struct {
	client *redis.Client
	config RedisLockerConfig
	logger *zap.Logger
}

// NewRedisLocker creates a Redis-backed locker on an existing client
func NewRedisLocker(client *redis.Client, config RedisLockerConfig, logger *zap.Logger) *RedisLocker {
	defaults := DefaultRedisLockerConfig()
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaults.RetryInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, config: config, logger: logger}
}

// Acquire polls until key is held or ctx is done
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.config.KeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.config.TTL).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// Release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Int()
		if err != nil {
			l.logger.Warn("Failed to release lock", zap.String("key", redisKey), zap.Error(err))
			return
		}
		if n == 0 {
			l.logger.Warn("Lock expired before release", zap.String("key", redisKey))
		}
	}, nil
}

// Ensure RedisLocker implements shared.Locker
var _ shared.Locker = (*RedisLocker)(nil)
