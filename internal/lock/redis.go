package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smartbuy-api/internal/model"
)

// DefaultRedisPrefix namespaces lock keys.
const DefaultRedisPrefix = "smartbuy:lock:"

// releaseIfOwnerScript deletes the lock key only while it still holds the caller's token.
var releaseIfOwnerScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates and verifies a Redis client.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisManager stores each lock as a key with a PX expiry. Redis drops expired
// keys itself, so takeover after a crash is a plain SET NX.
type RedisManager struct {
	client *redis.Client
	prefix string
}

var (
	_ Manager = (*RedisManager)(nil)
	_ Lister  = (*RedisManager)(nil)
)

// NewRedisManager creates a Redis lock manager. An empty prefix uses DefaultRedisPrefix.
func NewRedisManager(client *redis.Client, prefix string) *RedisManager {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisManager{client: client, prefix: prefix}
}

func (m *RedisManager) key(job string) string {
	return m.prefix + job
}

// Acquire sets the key only if absent.
func (m *RedisManager) Acquire(ctx context.Context, job, owner string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.key(job), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", job, err)
	}
	return ok, nil
}

// Release deletes the key when owner still holds it.
func (m *RedisManager) Release(ctx context.Context, job, owner string) error {
	if err := releaseIfOwnerScript.Run(ctx, m.client, []string{m.key(job)}, owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", job, err)
	}
	return nil
}

// ListLocks scans the lock keys and reports their remaining TTL as expiry.
func (m *RedisManager) ListLocks(ctx context.Context) ([]model.JobLock, error) {
	var locks []model.JobLock
	iter := m.client.Scan(ctx, 0, m.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		owner, err := m.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read lock %s: %w", key, err)
		}
		ttl, err := m.client.PTTL(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read lock ttl %s: %w", key, err)
		}
		locks = append(locks, model.JobLock{
			JobName:    key[len(m.prefix):],
			OwnerToken: owner,
			ExpiresAt:  time.Now().Add(ttl).UTC(),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan locks: %w", err)
	}
	return locks, nil
}
