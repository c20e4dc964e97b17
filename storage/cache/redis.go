package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/kylycht/ratebot/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "ratebot:"

// RCache keeps quotes in redis so several
// bot replicas share upstream answers
type RCache struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RCache {
	return &RCache{client: client}
}

var _ storage.Cache = (*RCache)(nil)

// Get implements storage.Cache.
func (r *RCache) Get(ctx context.Context, key string) (float64, bool) {
	val, err := r.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Error().Err(err).Str("key", key).Msg("unable to read quote from redis")
		}
		return 0, false
	}

	rate, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Error().Err(err).Str("key", key).Str("value", val).Msg("malformed quote in redis")
		return 0, false
	}

	return rate, true
}

// Set implements storage.Cache.
func (r *RCache) Set(ctx context.Context, key string, rate float64, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	return r.client.Set(ctx, keyPrefix+key, strconv.FormatFloat(rate, 'g', -1, 64), ttl).Err()
}

// Ping checks connectivity
func (r *RCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RCache) Close() error {
	return r.client.Close()
}
