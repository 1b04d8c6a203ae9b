package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultRedisKey = "affiliate:listings:latest"

// Redis is a Store shared between processes. The entry lives under a
// single key and expires after ttl.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis connects to redisURL and checks the connection.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return NewRedisWithClient(client, DefaultRedisKey, ttl), nil
}

func NewRedisWithClient(client *redis.Client, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	if ttl <= 0 {
		ttl = DefaultMaxAge
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

func (r *Redis) Load(ctx context.Context) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to load cached listings: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Warn().Err(err).Str("key", r.key).Msg("Discarding unreadable cache entry")
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (r *Redis) Save(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode listings: %w", err)
	}
	if err := r.client.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cached listings: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached listings: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
