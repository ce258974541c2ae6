package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache lookups sit on the slot-browsing path, so commands time out fast
// and fall back to Postgres rather than stall a request.
const (
	commandTimeout = 2 * time.Second
	connectTimeout = 5 * time.Second
)

// NewRedisClient connects the client backing the schedule cache. The
// startup ping is deliberate: a misconfigured address should fail the
// boot, not degrade silently into a cache that never hits.
func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
