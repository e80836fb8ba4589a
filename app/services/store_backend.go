package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreContention is returned when an Update keeps losing to concurrent writers
var ErrStoreContention = errors.New("store key is under contention")

// maxUpdateAttempts bounds optimistic retries of RedisStoreBackend.Update
const maxUpdateAttempts = 100

// UpdateFunc computes the next value of a key from its current value.
// ok is false when the key is absent.
type UpdateFunc func(current string, ok bool) (next string, ttl time.Duration, err error)

// StoreBackend is the raw key/value medium behind SecureStore
type StoreBackend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Update applies fn atomically: no other write to key lands between the
	// read fn sees and the write of its result.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// RedisStoreBackend keeps entries in Redis
type RedisStoreBackend struct {
	client redis.UniversalClient
}

func NewRedisStoreBackend(client redis.UniversalClient) *RedisStoreBackend {
	return &RedisStoreBackend{client: client}
}

func (b *RedisStoreBackend) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (b *RedisStoreBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Update runs fn under WATCH and commits with MULTI/EXEC, retrying when
// another client changed key in between.
func (b *RedisStoreBackend) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		ok := true
		if errors.Is(err, redis.Nil) {
			ok = false
		} else if err != nil {
			return err
		}

		next, ttl, err := fn(current, ok)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := b.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis update %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("redis update %s: %w", key, ErrStoreContention)
}

func (b *RedisStoreBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (b *RedisStoreBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return keys, nil
}

// MemoryStoreBackend keeps entries in process memory. TTLs are ignored;
// SecureStore enforces expiry itself on read.
type MemoryStoreBackend struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStoreBackend() *MemoryStoreBackend {
	return &MemoryStoreBackend{items: make(map[string]string)}
}

func (b *MemoryStoreBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.items[key]
	return v, ok, nil
}

func (b *MemoryStoreBackend) Set(_ context.Context, key, value string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[key] = value
	return nil
}

// Update holds the write lock while fn runs
func (b *MemoryStoreBackend) Update(_ context.Context, key string, fn UpdateFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.items[key]
	next, _, err := fn(current, ok)
	if err != nil {
		return err
	}
	b.items[key] = next
	return nil
}

func (b *MemoryStoreBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.items, k)
	}
	return nil
}

func (b *MemoryStoreBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for k := range b.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
