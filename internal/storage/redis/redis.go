package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

// MarkResetRequested sets a cooldown flag for the email via SETNX.
// Returns true if this is the first request within the window and
// false if a reset email was already requested recently.
func (r *RedisRepo) MarkResetRequested(ctx context.Context, email string, ttl time.Duration) (bool, error) {
	const op = "storage.redis.MarkResetRequested"

	key := fmt.Sprintf("reset:cooldown:%s", email)

	success, err := r.client.SetNX(ctx, key, "requested", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return success, nil
}

// ClearResetRequested drops the cooldown flag, e.g. after a delivery
// failure so the user can retry immediately.
func (r *RedisRepo) ClearResetRequested(ctx context.Context, email string) error {
	const op = "storage.redis.ClearResetRequested"

	key := fmt.Sprintf("reset:cooldown:%s", email)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * Close закрывает соединение с базой данных.
func (r *RedisRepo) Close() {
	r.client.Close()
}
