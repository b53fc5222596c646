package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"apotekpos/backend/internal/domain"
)

type RedisCatalogCache struct {
	client *redis.Client
}

func NewRedisCatalogCache(addr string, password string, db int) *RedisCatalogCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCatalogCache{client: client}
}

func (c *RedisCatalogCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCatalogCache) Close() error {
	return c.client.Close()
}

func (c *RedisCatalogCache) GetProducts(ctx context.Context, pharmacyID string) ([]domain.Product, bool, error) {
	val, err := c.client.Get(ctx, catalogKey(pharmacyID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var products []domain.Product
	if err := json.Unmarshal([]byte(val), &products); err != nil {
		return nil, false, err
	}
	return products, true, nil
}

func (c *RedisCatalogCache) SetProducts(ctx context.Context, pharmacyID string, products []domain.Product, ttl time.Duration) error {
	payload, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, catalogKey(pharmacyID), payload, ttl).Err()
}

func (c *RedisCatalogCache) InvalidateProducts(ctx context.Context, pharmacyID string) error {
	return c.client.Del(ctx, catalogKey(pharmacyID)).Err()
}

func catalogKey(pharmacyID string) string {
	return "catalog:" + pharmacyID
}
