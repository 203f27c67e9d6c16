package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fraudechat/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key this service writes.
const KeyPrefix = "fraudechat:"

// Client holds short-lived markers (revoked token ids) that expire on their own.
type Client struct {
	inner  *redis.Client
	prefix string
}

var errNotInitialized = errors.New("redis client not initialized")

// NewRedisClient connects with the redis section of the config and verifies it answers.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", client.Options().Addr, err)
	}
	return &Client{inner: client, prefix: KeyPrefix}, nil
}

func (c *Client) key(name string) string { return c.prefix + name }

// Mark stores a marker that disappears after ttl.
func (c *Client) Mark(ctx context.Context, name string, value any, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	if ttl <= 0 {
		return fmt.Errorf("mark %s: ttl must be positive", name)
	}
	return c.inner.Set(ctx, c.key(name), value, ttl).Err()
}

// Marked reports whether the marker is still present.
func (c *Client) Marked(ctx context.Context, name string) (bool, error) {
	if c == nil || c.inner == nil {
		return false, errNotInitialized
	}
	n, err := c.inner.Exists(ctx, c.key(name)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Remaining returns how long the marker lives on, or 0 when it is absent.
func (c *Client) Remaining(ctx context.Context, name string) (time.Duration, error) {
	if c == nil || c.inner == nil {
		return 0, errNotInitialized
	}
	ttl, err := c.inner.TTL(ctx, c.key(name)).Result()
	if err != nil {
		return 0, err
	}
	// -2 missing, -1 no expiry
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
