package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type redisBackend struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackend stores each session under prefix+id with a sliding ttl.
func NewRedisBackend(ctx context.Context, addr string, ttl time.Duration) (Backend, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBackend{rdb: rdb, prefix: "connector:session:", ttl: ttl}, nil
}

func (b *redisBackend) Load(ctx context.Context, id string) (map[string]any, error) {
	raw, err := b.rdb.Get(ctx, b.prefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *redisBackend) Save(ctx context.Context, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return b.rdb.Set(ctx, b.prefix+id, raw, b.ttl).Err()
}
