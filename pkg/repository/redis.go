package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/models"
	"github.com/go-redis/redis/v8"
)

const (
	menuCacheKey  = "menu:all"
	menuCacheTTL  = 10 * time.Minute
	orderCacheTTL = 30 * time.Minute
)

// ErrCacheMiss is returned by the cache getters when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) CacheMenu(ctx context.Context, items []*models.MenuItem) error {
	return r.SetJSON(ctx, menuCacheKey, items, menuCacheTTL)
}

func (r *RedisRepository) GetMenuCache(ctx context.Context) ([]*models.MenuItem, error) {
	var items []*models.MenuItem
	if err := r.GetJSON(ctx, menuCacheKey, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RedisRepository) InvalidateMenu(ctx context.Context) error {
	return r.Del(ctx, menuCacheKey)
}

func orderKey(id string) string {
	return fmt.Sprintf("order:%s", id)
}

func (r *RedisRepository) CacheOrder(ctx context.Context, order *models.Order) error {
	return r.SetJSON(ctx, orderKey(order.ID.Hex()), order, orderCacheTTL)
}

func (r *RedisRepository) GetOrderCache(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := r.GetJSON(ctx, orderKey(orderID), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *RedisRepository) InvalidateOrder(ctx context.Context, orderID string) error {
	return r.Del(ctx, orderKey(orderID))
}

// Hit increments the counter at key and returns the new value. The key
// expires window after its first hit.
func (r *RedisRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Reset clears the counter at key.
func (r *RedisRepository) Reset(ctx context.Context, key string) error {
	return r.Del(ctx, key)
}
