package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harwoodlabs/kingfisher/config"
)

// Redis is a TTL cache backed by a shared redis instance, for deployments
// running more than one replica.
type Redis struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedis connects to redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Host, cfg.Port, err)
	}
	return &Redis{
		client: client,
		logger: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Printf("get %s: %v", key, err)
		}
		return nil, false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		// A failed cache write only costs a provider call later.
		r.logger.Printf("set %s: %v", key, err)
	}
}

// Close releases the underlying client.
func (r *Redis) Close() error { return r.client.Close() }
