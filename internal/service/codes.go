package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/room-booking/internal/apperr"
)

// CodeStore keeps short-lived secrets such as one-time sign-in codes and
// password reset tokens.  Get returns ErrNotFound for a missing or expired
// key.
type CodeStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// RedisCodes is a CodeStore on redis keys with TTLs.
type RedisCodes struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCodes returns nil when rdb is nil so that callers can detect
// that one-time codes are unavailable.
func NewRedisCodes(rdb *redis.Client, prefix string) *RedisCodes {
	if rdb == nil {
		return nil
	}
	if prefix == "" {
		prefix = "rb:codes"
	}
	return &RedisCodes{rdb: rdb, prefix: prefix}
}

func (r *RedisCodes) key(k string) string { return r.prefix + ":" + k }

func (r *RedisCodes) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *RedisCodes) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.ErrNotFound
	}
	return v, err
}

func (r *RedisCodes) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}
