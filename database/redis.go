package database

import (
	"context"
	"time"

	"payverify/helper"

	"github.com/go-redis/redis/v8"
)

// InitRedis returns nil when addr is empty. A failed ping is only logged.
func InitRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		helper.Warn("Redis connection failed: %v", err)
	} else {
		helper.Info("Redis connection successful")
	}
	return client
}
