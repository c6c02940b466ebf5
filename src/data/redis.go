package data

import (
	"log"

	"github.com/redis/go-redis/v9"
)

// MustRedis connects to Redis from a URL or exits. Boot-time only.
func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}
