package redisrepo

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civiclabs/ballotbox/pkg/config"
	"github.com/civiclabs/ballotbox/pkg/logger"
)

type RateLimitRepository interface {
	// CheckRateLimit reports whether the caller identified by key is still
	// inside its allowance for the window. Fails open on backend errors.
	CheckRateLimit(ctx context.Context, key string, requests int, window time.Duration) (bool, error)
}

type rateLimitRepository struct {
	client *redis.Client
}

func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	return redis.NewClient(opts), nil
}

func NewRateLimitRepository(client *redis.Client) RateLimitRepository {
	return &rateLimitRepository{client: client}
}

func (r *rateLimitRepository) CheckRateLimit(ctx context.Context, key string, requests int, window time.Duration) (bool, error) {
	// Hash the key; raw keys can carry emails or IPs.
	hashed := fmt.Sprintf("rl:%x", sha256.Sum256([]byte(key)))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, hashed)
	pipe.ExpireNX(ctx, hashed, window)
	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open: a rate-limit backend outage must not block voting.
		logger.WarnContext(ctx, "Rate limit check failed, allowing request", "error", err)
		return true, nil
	}

	return incr.Val() <= int64(requests), nil
}
