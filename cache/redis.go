package cache

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces translation keys in a shared Redis database.
const DefaultKeyPrefix = "translation:"

// RedisCache is a Redis-backed translation store.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Host        string
	Port        int
	DB          int
	Password    string
	KeyPrefix   string        // Prefix for all keys (default: "translation:")
	DialTimeout time.Duration // 0 uses the client default
}

// Addr returns the host:port address of the server.
func (c RedisConfig) Addr() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 6379
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// NewRedisCache creates a Redis store. The connection is established lazily;
// call Ping to check reachability.
func NewRedisCache(cfg RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		DB:          cfg.DB,
		Password:    cfg.Password,
		DialTimeout: cfg.DialTimeout,
	})
	return NewRedisCacheFromClient(client, cfg.KeyPrefix)
}

// NewRedisCacheFromClient creates a RedisCache from an existing Redis client.
func NewRedisCacheFromClient(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// GetMany fetches all keys in a single MGET round trip.
func (c *RedisCache) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	found := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.keyPrefix + k
	}

	vals, err := c.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, v := range vals {
		if s, ok := v.(string); ok {
			found[keys[i]] = s
		}
	}
	return found, nil
}

// SetMany writes all entries with SET EX in one pipeline. Keys whose SET
// failed are reported in a *WriteError; the others are written.
func (c *RedisCache) SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cmds, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Set(ctx, c.keyPrefix+k, entries[k], ttl)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	failed := make(map[string]error)
	for i, cmd := range cmds {
		if i < len(keys) && cmd.Err() != nil {
			failed[keys[i]] = cmd.Err()
		}
	}
	if len(failed) == 0 {
		// The pipeline itself failed before any reply was read.
		for _, k := range keys {
			failed[k] = err
		}
	}
	return &WriteError{Failed: failed}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping tests the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Verify RedisCache implements Store
var _ Store = (*RedisCache)(nil)
