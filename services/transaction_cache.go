package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// TransactionCache holds read-side transaction details keyed by transaction id.
// Writers invalidate after commit; readers fall back to the database on a miss.
type TransactionCache interface {
	Get(ctx context.Context, transactionID string) (*TransactionDetails, bool, error)
	Set(ctx context.Context, transactionID string, value *TransactionDetails) error
	Invalidate(ctx context.Context, transactionID string) error
}

// NoopTransactionCache never stores anything.
type NoopTransactionCache struct{}

func (NoopTransactionCache) Get(_ context.Context, _ string) (*TransactionDetails, bool, error) {
	return nil, false, nil
}

func (NoopTransactionCache) Set(_ context.Context, _ string, _ *TransactionDetails) error {
	return nil
}

func (NoopTransactionCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

// RedisTransactionCache stores JSON-encoded details in Redis with a fixed TTL.
type RedisTransactionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTransactionCache(addr, password string, db int, ttl time.Duration) *RedisTransactionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisTransactionCache{client: client, ttl: ttl}
}

func (c *RedisTransactionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTransactionCache) Close() error {
	return c.client.Close()
}

func (c *RedisTransactionCache) Get(ctx context.Context, transactionID string) (*TransactionDetails, bool, error) {
	val, err := c.client.Get(ctx, transactionCacheKey(transactionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var details TransactionDetails
	if err := json.Unmarshal([]byte(val), &details); err != nil {
		return nil, false, err
	}
	return &details, true, nil
}

func (c *RedisTransactionCache) Set(ctx context.Context, transactionID string, value *TransactionDetails) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, transactionCacheKey(transactionID), payload, c.ttl).Err()
}

func (c *RedisTransactionCache) Invalidate(ctx context.Context, transactionID string) error {
	return c.client.Del(ctx, transactionCacheKey(transactionID)).Err()
}

func transactionCacheKey(transactionID string) string {
	return "solecare:transaction:" + transactionID
}

var transactionCacheInstance TransactionCache = NoopTransactionCache{}

// GetTransactionCache returns the installed cache
func GetTransactionCache() TransactionCache {
	return transactionCacheInstance
}

// SetTransactionCache sets the cache instance
func SetTransactionCache(cache TransactionCache) {
	if cache == nil {
		cache = NoopTransactionCache{}
	}
	transactionCacheInstance = cache
}
