package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/norruva/dpp-service/internal/product"
)

const passportKeyPrefix = "passport:"

// PassportCache caches published passports for the public endpoint.
// Implements product.PassportCache.
type PassportCache struct {
	client *Client
	ttl    time.Duration
}

func NewPassportCache(client *Client, ttl time.Duration) *PassportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PassportCache{client: client, ttl: ttl}
}

// GetPassport returns the cached passport or nil on a miss.
func (c *PassportCache) GetPassport(ctx context.Context, id string) (*product.Product, error) {
	data, err := c.client.Get(ctx, passportKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var p product.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *PassportCache) SetPassport(ctx context.Context, p *product.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, passportKeyPrefix+p.ID, data, c.ttl).Err()
}

func (c *PassportCache) InvalidatePassport(ctx context.Context, id string) error {
	return c.client.Del(ctx, passportKeyPrefix+id).Err()
}
