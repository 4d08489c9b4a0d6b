package cache

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"

	"warungpos/backend/internal/domain"
)

// RedisHeldCartCache stores held carts as one hash per terminal, keyed by
// hold id, with the cart serialized as JSON.
type RedisHeldCartCache struct {
	client *redis.Client
}

func NewRedisHeldCartCache(addr string, password string, db int) *RedisHeldCartCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisHeldCartCache{client: client}
}

func (c *RedisHeldCartCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisHeldCartCache) Close() error {
	return c.client.Close()
}

func terminalKey(terminalID string) string {
	return "heldcarts:" + terminalID
}

func (c *RedisHeldCartCache) Save(ctx context.Context, held domain.HeldCart) error {
	payload, err := json.Marshal(held)
	if err != nil {
		return err
	}
	return c.client.HSet(ctx, terminalKey(held.TerminalID), held.ID, payload).Err()
}

func (c *RedisHeldCartCache) List(ctx context.Context, terminalID string) ([]domain.HeldCart, error) {
	values, err := c.client.HGetAll(ctx, terminalKey(terminalID)).Result()
	if err != nil {
		return nil, err
	}

	helds := make([]domain.HeldCart, 0, len(values))
	for _, raw := range values {
		var held domain.HeldCart
		if err := json.Unmarshal([]byte(raw), &held); err != nil {
			return nil, err
		}
		helds = append(helds, held)
	}
	sortHeldCarts(helds)
	return helds, nil
}

func (c *RedisHeldCartCache) Pop(ctx context.Context, terminalID string, holdID string) (*domain.HeldCart, error) {
	key := terminalKey(terminalID)
	raw, err := c.client.HGet(ctx, key, holdID).Result()
	if err == redis.Nil {
		return nil, ErrHoldNotFound
	}
	if err != nil {
		return nil, err
	}

	var held domain.HeldCart
	if err := json.Unmarshal([]byte(raw), &held); err != nil {
		return nil, err
	}
	if err := c.client.HDel(ctx, key, holdID).Err(); err != nil {
		return nil, err
	}
	return &held, nil
}
