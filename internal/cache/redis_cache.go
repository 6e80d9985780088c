package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type contactedValue struct {
	ContactedAt time.Time `json:"contactedAt"`
}

func contactedKey(phone string) string {
	return "sms:contacted:" + phone
}

func (c *RedisCache) MarkContacted(ctx context.Context, phone string) error {
	b, err := json.Marshal(contactedValue{ContactedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, contactedKey(phone), b, c.ttl).Err()
}

func (c *RedisCache) WasContacted(ctx context.Context, phone string) (bool, error) {
	err := c.rdb.Get(ctx, contactedKey(phone)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
