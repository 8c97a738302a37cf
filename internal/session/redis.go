package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	URL       string        // redis://host:port/db or host:port
	Namespace string        // key prefix, one per user agent / device
	TTL       time.Duration // 0 keeps slots forever
	Timeout   time.Duration // per operation, default 3s
}

// RedisStore keeps slots in Redis under "<namespace>:<key>".
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	timeout   time.Duration
}

// NewRedisStore connects to Redis. A URL without a scheme is taken as a bare
// host:port address.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		if strings.Contains(cfg.URL, "://") {
			return nil, fmt.Errorf("session: parse redis url: %w", err)
		}
		opts = &redis.Options{
			Addr:         cfg.URL,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		}
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), cfg), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "menu"
	}
	return &RedisStore{client: client, namespace: ns, ttl: cfg.TTL, timeout: timeout}
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(k string) string {
	return r.namespace + ":" + k
}

func (r *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *RedisStore) Get(key string) (string, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session: redis get %q: %w", key, err)
	}
	return v, nil
}

func (r *RedisStore) Set(key, value string) error {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set %q: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Remove(key string) error {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("session: redis del %q: %w", key, err)
	}
	return nil
}
