package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Client stores live match snapshots and agent storage in Redis. Every key
// it touches is namespaced under its prefix.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// Option configures a Client.
type Option func(*Client)

// WithKeyPrefix namespaces every key, so several deployments or test runs
// can share one Redis database. The default prefix is "dicewars".
func WithKeyPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = prefix }
}

// NewClient connects to the Redis instance named by redisURL.
func NewClient(ctx context.Context, redisURL string, opts ...Option) (*Client, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewClientFromPool(rdb, opts...), nil
}

// NewClientFromPool wraps an existing connection pool.
func NewClientFromPool(rdb *redis.Client, opts ...Option) *Client {
	c := &Client{rdb: rdb, prefix: "dicewars"}
	for _, o := range opts {
		o(c)
	}
	return c
}

// key joins parts under the client's prefix, e.g. dicewars:match:<id>:state.
func (c *Client) key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
