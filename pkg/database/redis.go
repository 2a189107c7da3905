package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trip-booking/pkg/utils"
)

// InitRedis creates the Redis client used by the shared seat lock store.
func InitRedis(config utils.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", config.Addr, err)
	}

	return client, nil
}
