package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"welcome-craft/internal/models"

	goredis "github.com/go-redis/redis/v8"
)

const defaultCacheTTL = 30 * time.Minute

// RedisCache keeps the latest record per metal as JSON under price:latest:<metal>.
type RedisCache struct {
	client *goredis.Client
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache connects and pings the server.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRedisCache(client, cfg.TTL), nil
}

func newRedisCache(client *goredis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func latestKey(metal models.Metal) string {
	return "price:latest:" + string(metal)
}

func (c *RedisCache) GetLatest(ctx context.Context, metal models.Metal) (*models.MetalPrice, error) {
	data, err := c.client.Get(ctx, latestKey(metal)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis GET %s: %w", latestKey(metal), err)
	}

	var rec models.MetalPrice
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode cached %s price: %w", metal, err)
	}
	return &rec, nil
}

func (c *RedisCache) SetLatest(ctx context.Context, rec *models.MetalPrice) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, latestKey(rec.Metal), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", latestKey(rec.Metal), err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, metal models.Metal) error {
	return c.client.Del(ctx, latestKey(metal)).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
