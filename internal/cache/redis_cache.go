package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brahimbus/FcmControll/internal/model"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type attemptValue struct {
	Status model.HistoryStatus `json:"status"`
	Detail string              `json:"detail"`
	SentAt time.Time           `json:"sentAt"`
}

func (c *RedisCache) StoreAttempt(ctx context.Context, messageID int64, status model.HistoryStatus, detail string, sentAt time.Time) error {
	key := fmt.Sprintf("msg:%d", messageID)
	val := attemptValue{
		Status: status,
		Detail: detail,
		SentAt: sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}
