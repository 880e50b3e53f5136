package lib

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// GetRedisClient returns nil when REDIS_HOST is unset or invalid; callers
// fall back to the database.
func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		return nil
	}
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

func refreshTokenKey(jti string) string {
	return fmt.Sprintf("refresh:%s", jti)
}

// CacheRefreshToken marks jti as usable until ttl elapses.
func CacheRefreshToken(ctx context.Context, rdb *redis.Client, jti string, userID uint, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	return rdb.Set(ctx, refreshTokenKey(jti), userID, ttl).Err()
}

// RefreshTokenCached reports whether jti is in the cache. found is false on a
// cache miss so callers can consult the database.
func RefreshTokenCached(ctx context.Context, rdb *redis.Client, jti string) (found bool, err error) {
	if rdb == nil {
		return false, nil
	}
	err = rdb.Get(ctx, refreshTokenKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func RevokeRefreshToken(ctx context.Context, rdb *redis.Client, jti string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, refreshTokenKey(jti)).Err()
}
