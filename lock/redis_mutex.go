// Package lock provides the distributed "listening mutex" used to
// serialize a push or merge against other application transactions
// touching the same tracked tables, per spec.md §5's suspension-point
// model.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Config configures a RedisMutex.
type Config struct {
	RedisURL  string        // defaults to redis://localhost:6379/0; no environment variable is read
	KeyPrefix string        // defaults to "synclock:"
	TTL       time.Duration // lock lease duration, defaults to 30s
}

// RedisMutex implements the engine.Mutex hook using SETNX/PEXPIRE against
// Redis (or a Redis-protocol-compatible store such as DragonflyDB).
type RedisMutex struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisMutex dials Redis and returns a ready-to-use RedisMutex.
func NewRedisMutex(ctx context.Context, cfg Config) (*RedisMutex, error) {
	redisURL := cfg.RedisURL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("lock: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("lock: connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "synclock:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &RedisMutex{client: client, prefix: prefix, ttl: ttl}, nil
}

// Close releases the underlying Redis connection.
func (m *RedisMutex) Close() error {
	return m.client.Close()
}

// Lock acquires the named lock, blocking (with short backoff) until it is
// available or ctx is cancelled. The returned unlock func releases the
// lock only if it is still held by this acquisition's token, so a lock
// that outlived its TTL and was taken by someone else is left alone.
func (m *RedisMutex) Lock(ctx context.Context) (func(), error) {
	key := m.prefix + "global"
	token := uuid.NewString()

	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire: %w", err)
		}
		if ok {
			unlock := func() {
				m.releaseIfOwner(context.Background(), key, token)
			}
			return unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// releaseUnlockScript only deletes the key if it still holds our token,
// preventing one holder from releasing a lock already re-acquired by
// another after its TTL expired.
const releaseUnlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

func (m *RedisMutex) releaseIfOwner(ctx context.Context, key, token string) {
	m.client.Eval(ctx, releaseUnlockScript, []string{key}, token)
}
