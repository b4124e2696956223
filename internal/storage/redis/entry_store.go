// Package redis stores rate limit entries in Redis so that several server
// instances share one lockout state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erickerk/elitetrack/internal/auth"
	goredis "github.com/redis/go-redis/v9"
)

const (
	// DefaultPrefix namespaces rate limit keys
	DefaultPrefix = "elitetrack:ratelimit:"

	maxTxRetries = 10
)

// EntryStore implements auth.EntryStore with WATCH/MULTI transactions
type EntryStore struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ auth.EntryStore = (*EntryStore)(nil)

// NewEntryStore creates a store over client. ttl bounds how long an
// untouched entry survives and should cover Window plus Lockout.
func NewEntryStore(client goredis.UniversalClient, prefix string, ttl time.Duration) *EntryStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &EntryStore{client: client, prefix: prefix, ttl: ttl}
}

// Open parses a redis:// URL and returns a store over a new client
func Open(ctx context.Context, url, prefix string, ttl time.Duration) (*EntryStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewEntryStore(client, prefix, ttl), nil
}

// Close closes the underlying client
func (s *EntryStore) Close() error {
	return s.client.Close()
}

// Update runs fn inside an optimistic transaction on key, retrying when a
// concurrent writer touched the key first
func (s *EntryStore) Update(ctx context.Context, key string, fn func(*auth.Entry) *auth.Entry) error {
	redisKey := s.prefix + key

	txf := func(tx *goredis.Tx) error {
		var current *auth.Entry
		raw, err := tx.Get(ctx, redisKey).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			var e auth.Entry
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("decode rate limit entry: %w", err)
			}
			current = &e
		}

		next := fn(current)

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, redisKey)
				return nil
			}
			blob, err := json.Marshal(next)
			if err != nil {
				return err
			}
			pipe.Set(ctx, redisKey, blob, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("rate limit update for %s: too much contention", auth.TruncateIdentifier(key))
}

// Delete removes key
func (s *EntryStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
