package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// opTimeout ограничивает каждое обращение к Redis: кэш вспомогательный,
// долгие ожидания здесь хуже промаха.
const opTimeout = 2 * time.Second

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

// Once выполняет функцию, если ключ ещё не был занят. При ошибке функции
// ключ освобождается, чтобы следующая попытка не потерялась.
func (c *RedisCache) Once(key string, ttl time.Duration, fn func() error) error {
	ctx, cancel := opCtx()
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	cancel()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		ctx, cancel := opCtx()
		_ = c.client.Del(ctx, key).Err()
		cancel()
		return err
	}
	return nil
}

// Set задаёт значение с TTL.
func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) error {
	ctx, cancel := opCtx()
	defer cancel()
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Get возвращает значение ключа.
func (c *RedisCache) Get(key string) ([]byte, error) {
	ctx, cancel := opCtx()
	defer cancel()
	return c.client.Get(ctx, key).Bytes()
}
