package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/config"
)

func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     4,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

// NewLocker picks the Redis slot locker when REDIS_* is configured and the
// in-process locker otherwise. The returned client is nil without Redis.
func NewLocker(cfg config.Config, log zerolog.Logger) (Locker, *redis.Client, error) {
	if !cfg.RedisEnabled() {
		log.Info().Msg("redis not configured, using in-process slot locks")
		return NewMemorySlotLocker(cfg.LockTTL), nil, nil
	}

	rdb, err := NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis, using shared slot locks")
	return NewRedisSlotLocker(rdb, cfg.LockTTL), rdb, nil
}
