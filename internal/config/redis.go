package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisClient is the shared Redis connection.
var RedisClient *redis.Client

// InitRedis connects RedisClient and verifies it with PING.
func InitRedis(cfg *Config) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	L().Info("Connected to Redis", zap.String("addr", cfg.RedisAddr), zap.String("ping", s))
	return nil
}
