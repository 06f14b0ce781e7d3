package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// opTimeout ограничивает одну операцию кэша: кэш вспомогательный и не
// должен задерживать проход конвейера при деградации Redis.
const opTimeout = 3 * time.Second

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// Once выполняет функцию, если ключ ещё не задан. При ошибке функции
// ключ снимается, чтобы повторная доставка могла выполнить задачу заново.
func (c *RedisCache) Once(key string, ttl time.Duration, fn func() error) error {
	ctx, cancel := opCtx()
	defer cancel()

	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		delCtx, delCancel := opCtx()
		defer delCancel()
		_ = c.client.Del(delCtx, key).Err()
		return err
	}
	return nil
}

// Set задаёт значение.
func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) error {
	ctx, cancel := opCtx()
	defer cancel()
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Get возвращает значение.
func (c *RedisCache) Get(key string) ([]byte, error) {
	ctx, cancel := opCtx()
	defer cancel()
	return c.client.Get(ctx, key).Bytes()
}
