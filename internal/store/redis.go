package store

import (
    "context"
    "fmt"
    "sort"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the set holding overridden image paths.
const DefaultRedisKey = "mangaview:repage"

// RedisOverrides keeps the set in a Redis SET.
type RedisOverrides struct {
    client *redis.Client
    key    string
}

func NewRedisOverrides(ctx context.Context, redisURL, key string) (*RedisOverrides, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, fmt.Errorf("parse redis url: %w", err) }
    c := redis.NewClient(opt)
    pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
    defer cancel()
    if err := c.Ping(pctx).Err(); err != nil {
        _ = c.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    if key == "" { key = DefaultRedisKey }
    return &RedisOverrides{client: c, key: key}, nil
}

func (s *RedisOverrides) Load(ctx context.Context) ([]string, error) {
    res, err := s.client.SMembers(ctx, s.key).Result()
    if err == redis.Nil { return nil, nil }
    if err != nil { return nil, err }
    sort.Strings(res)
    return res, nil
}

func (s *RedisOverrides) Set(ctx context.Context, path string, on bool) error {
    if on { return s.client.SAdd(ctx, s.key, path).Err() }
    return s.client.SRem(ctx, s.key, path).Err()
}

func (s *RedisOverrides) Close() error { return s.client.Close() }
