// Package store adapts a Redis-compatible in-memory key-value server into
// the engine's durable coordination plane. Values are opaque JSON strings;
// callers own serialization.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sniper-core/internal/models"
)

// Store is the keyed state surface shared across the engine.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)

	ListPushFront(ctx context.Context, key, value string) error
	ListPopBack(ctx context.Context, key string) (string, bool, error)
	ListRange(ctx context.Context, key string, lo, hi int64) ([]string, error)
	ListTrim(ctx context.Context, key string, lo, hi int64) error
	ListRemove(ctx context.Context, key, value string) (int64, error)

	SetAdd(ctx context.Context, key, value string) (bool, error)
	SetContains(ctx context.Context, key, value string) (bool, error)
	SetMembers(ctx context.Context, key string) ([]string, error)

	HealthCheck(ctx context.Context) bool
	Close() error
}

// Options tunes the client connection pool.
type Options struct {
	URL              string
	PoolSize         int
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// Client implements Store over go-redis.
type Client struct {
	rdb    *redis.Client
	opTime time.Duration
}

// New dials the store and verifies the connection with a ping.
func New(ctx context.Context, opts Options) (*Client, error) {
	ropts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if opts.PoolSize > 0 {
		ropts.PoolSize = opts.PoolSize
	}
	if opts.ConnectTimeout > 0 {
		ropts.DialTimeout = opts.ConnectTimeout
		ropts.PoolTimeout = opts.ConnectTimeout
	}

	opTime := opts.OperationTimeout
	if opTime <= 0 {
		opTime = 2 * time.Second
	}

	rdb := redis.NewClient(ropts)
	pingCtx, cancel := context.WithTimeout(ctx, ropts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return &Client{rdb: rdb, opTime: opTime}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTime)
}

// wrap maps driver errors onto the engine taxonomy.
func wrap(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return wrap(c.rdb.Set(ctx, key, value, ttl).Err())
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap(err)
	}
	return v, true, nil
}

func (c *Client) Del(ctx context.Context, key string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	n, err := c.rdb.Del(ctx, key).Result()
	return n > 0, wrap(err)
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, wrap(err)
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	ok, err := c.rdb.Expire(ctx, key, ttl).Result()
	return ok, wrap(err)
}

func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	keys, err := c.rdb.Keys(ctx, pattern).Result()
	return keys, wrap(err)
}

func (c *Client) ListPushFront(ctx context.Context, key, value string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return wrap(c.rdb.LPush(ctx, key, value).Err())
}

func (c *Client) ListPopBack(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	v, err := c.rdb.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap(err)
	}
	return v, true, nil
}

func (c *Client) ListRange(ctx context.Context, key string, lo, hi int64) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	vs, err := c.rdb.LRange(ctx, key, lo, hi).Result()
	return vs, wrap(err)
}

func (c *Client) ListTrim(ctx context.Context, key string, lo, hi int64) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return wrap(c.rdb.LTrim(ctx, key, lo, hi).Err())
}

func (c *Client) ListRemove(ctx context.Context, key, value string) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	n, err := c.rdb.LRem(ctx, key, 0, value).Result()
	return n, wrap(err)
}

func (c *Client) SetAdd(ctx context.Context, key, value string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	n, err := c.rdb.SAdd(ctx, key, value).Result()
	return n > 0, wrap(err)
}

func (c *Client) SetContains(ctx context.Context, key, value string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	ok, err := c.rdb.SIsMember(ctx, key, value).Result()
	return ok, wrap(err)
}

func (c *Client) SetMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	vs, err := c.rdb.SMembers(ctx, key).Result()
	return vs, wrap(err)
}

// HealthCheck writes a sentinel key, reads it back and deletes it. Any
// failure maps to false.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	const sentinel = "__health_check__"
	if err := c.rdb.Set(ctx, sentinel, "ok", 10*time.Second).Err(); err != nil {
		return false
	}
	v, err := c.rdb.Get(ctx, sentinel).Result()
	if err != nil || v != "ok" {
		return false
	}
	return c.rdb.Del(ctx, sentinel).Err() == nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
