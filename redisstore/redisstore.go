// Package redisstore provides a redis session storage implementation.
//
// RedisStore allows storing, retrieving, and deleting session data keyed
// by a session id. Each key carries a native redis expiration set from
// the store's time-to-live, so no sweep is needed.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bluescreen10/sessionstore"
)

const (
	defaultPrefix = "session:"

	// scanCount is the COUNT hint given to SCAN and the batch size of the
	// MGET and DEL calls issued for the keys it returns.
	scanCount = 100
)

// RedisStore is a redis backed storage for session data.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ sessionstore.Store = (*RedisStore)(nil)

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithPrefix sets the prefix of every session key. An empty prefix is
// ignored, since Clear would then match every key. (default "session:".)
func WithPrefix(prefix string) Option {
	return Option(func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	})
}

// WithTTL sets the lifespan applied to every write. (default 24hr.)
func WithTTL(ttl time.Duration) Option {
	return Option(func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	})
}

// New creates and returns a new RedisStore instance.
func New(rdb redis.Cmdable, opts ...Option) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: defaultPrefix,
		ttl:    sessionstore.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Get retrieves the data associated with the given id. Returns the data,
// a boolean indicating whether the id was found and not expired, and an
// error.
func (s *RedisStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	data, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}

	return data, true, nil
}

// Set stores the data under the given id, expiring after the store's
// time-to-live. If a record with the same id already exists, it is
// overwritten.
func (s *RedisStore) Set(ctx context.Context, id string, data []byte) error {
	if err := s.rdb.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// Destroy removes the data associated with the given id. If the id
// does not exist, this is a no-op.
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// All returns the data of every session key. Keys expiring between the
// scan and the read are skipped.
func (s *RedisStore) All(ctx context.Context) ([][]byte, error) {
	all := [][]byte{}
	err := s.scan(ctx, func(keys []string) error {
		values, err := s.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for _, v := range values {
			if str, ok := v.(string); ok {
				all = append(all, []byte(str))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return all, nil
}

// Clear removes every session key.
func (s *RedisStore) Clear(ctx context.Context) error {
	err := s.scan(ctx, func(keys []string) error {
		return s.rdb.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	return nil
}

// Length returns the number of session keys.
func (s *RedisStore) Length(ctx context.Context) (int64, error) {
	var n int64
	err := s.scan(ctx, func(keys []string) error {
		n += int64(len(keys))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// scan calls fn with batches of the keys matching the store's prefix.
// SCAN may return a key more than once; each key is passed to fn once.
func (s *RedisStore) scan(ctx context.Context, fn func(keys []string) error) error {
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", scanCount).Iterator()

	seen := make(map[string]struct{})
	batch := make([]string, 0, scanCount)
	for iter.Next(ctx) {
		key := iter.Val()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		batch = append(batch, key)
		if len(batch) == scanCount {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
