package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces session keys in Redis.
const DefaultKeyPrefix = "reactor:session:"

// RedisConfig selects the Redis server and key layout.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration // zero keeps snapshots forever
}

// RedisStore keeps gzip snapshots under <prefix><id> and a sorted-set
// index of session IDs scored by update time.
type RedisStore struct {
	rdb    redis.Cmdable
	closer func() error
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to the configured server and verifies it
// answers PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Address, err)
	}
	s := NewRedisStoreClient(client, cfg.KeyPrefix, cfg.TTL)
	s.closer = client.Close
	return s, nil
}

// NewRedisStoreClient wraps an existing client. The caller keeps
// ownership of rdb.
func NewRedisStoreClient(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }
func (s *RedisStore) indexKey() string     { return s.prefix + "index" }

// Save writes the snapshot and updates the index in one transaction.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	blob, err := encode(sess)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID), blob, s.ttl)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(sess.UpdatedAt.UnixMilli()),
			Member: sess.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// Load returns the latest snapshot of the session.
func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	blob, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return decode(blob)
}

// List returns up to limit summaries, most recently updated first.
// Index entries whose snapshot has expired are dropped from the index.
func (s *RedisStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read session index: %w", err)
	}

	var out []Summary
	var stale []any
	for _, id := range ids {
		sess, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess.Summarize())
	}
	if len(stale) > 0 {
		if err := s.rdb.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune session index: %w", err)
		}
	}
	return out, nil
}

// Close closes the client if the store created it.
func (s *RedisStore) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
