package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Nil is returned by Get when the key does not exist
var Nil = redis.Nil

// IsNil reports whether err means "key not found"
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

type Client struct {
	rdb        *redis.Client
	KeyBuilder *KeyBuilder
	log        *zap.Logger
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(redisURL string, environment string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 20
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{rdb: rdb, KeyBuilder: NewKeyBuilder(environment), log: log}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Get retrieves a value from Redis. A missing key returns Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := c.rdb.Get(ctx, key).Result()
	dur := time.Since(start)
	if err != nil && !IsNil(err) {
		c.log.Info("redis_get",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_get",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Bool("hit", err == nil),
			zap.Duration("duration", dur))
	}
	return val, err
}

// Set stores a value in Redis with TTL (0 keeps it forever)
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, value, ttl).Err()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_set",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_set",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur))
	}
	return err
}

// HSetNX sets field in the hash at key only if the field is absent. It
// reports whether the field was set.
func (c *Client) HSetNX(ctx context.Context, key, field string, value interface{}) (bool, error) {
	start := time.Now()
	ok, err := c.rdb.HSetNX(ctx, key, field, value).Result()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_hsetnx",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_hsetnx",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Bool("result", ok),
			zap.Duration("duration", dur))
	}
	return ok, err
}

// HDel removes fields from the hash at key
func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	start := time.Now()
	err := c.rdb.HDel(ctx, key, fields...).Err()
	dur := time.Since(start)
	c.log.Debug("redis_hdel",
		zap.String("key_prefix", prefixForLog(key)),
		zap.Int("fields", len(fields)),
		zap.Duration("duration", dur),
		zap.Error(err))
	return err
}

// RPush appends values to the list at key
func (c *Client) RPush(ctx context.Context, key string, values ...interface{}) error {
	start := time.Now()
	n, err := c.rdb.RPush(ctx, key, values...).Result()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_rpush",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_rpush",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Int64("length", n),
			zap.Duration("duration", dur))
	}
	return err
}

// LRange returns the list elements between start and stop, inclusive.
// A missing key is an empty list.
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	began := time.Now()
	vals, err := c.rdb.LRange(ctx, key, start, stop).Result()
	dur := time.Since(began)
	if err != nil {
		c.log.Info("redis_lrange",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_lrange",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Int("count", len(vals)),
			zap.Duration("duration", dur))
	}
	return vals, err
}

// Delete removes keys from Redis
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	dur := time.Since(start)
	c.log.Debug("redis_del",
		zap.Int("keys", len(keys)),
		zap.Duration("duration", dur),
		zap.Error(err))
	return err
}

// SetMultiple sets multiple key-value pairs in one pipeline with the same TTL
func (c *Client) SetMultiple(ctx context.Context, kvPairs map[string]interface{}, ttl time.Duration) error {
	pipe := c.rdb.Pipeline()
	for key, value := range kvPairs {
		pipe.Set(ctx, key, value, ttl)
	}
	start := time.Now()
	_, err := pipe.Exec(ctx)
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_set_multiple",
			zap.Int("keys", len(kvPairs)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_set_multiple",
			zap.Int("keys", len(kvPairs)),
			zap.Duration("duration", dur))
	}
	return err
}

// Publish sends a message on a pub/sub channel
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) error {
	start := time.Now()
	n, err := c.rdb.Publish(ctx, channel, message).Result()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_publish",
			zap.String("channel", channel),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_publish",
			zap.String("channel", channel),
			zap.Int64("receivers", n),
			zap.Duration("duration", dur))
	}
	return err
}

// Subscribe opens a pub/sub subscription. The caller must Close it.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	c.log.Debug("redis_subscribe", zap.Strings("channels", channels))
	return c.rdb.Subscribe(ctx, channels...)
}

// Health checks the Redis connection
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_ping",
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_ping", zap.Duration("duration", dur))
	}
	return err
}

// prefixForLog returns a safe prefix of a key to avoid logging PII
func prefixForLog(key string) string {
	if len(key) <= 24 {
		return key
	}
	return key[:24] + "…"
}
