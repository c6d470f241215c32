package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore persists cache entries as JSON values plus a sorted-set
// index keyed by creation time. The index is what makes the TTL sweep a
// single range query instead of a full key scan.
type RedisStore struct {
	client    *redis.Client
	normalize Normalizer
	prefix    string
	indexKey  string
}

func NewRedisStore(ctx context.Context, cfg RedisConfig, normalize Normalizer) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "qcache"
	}
	if normalize == nil {
		normalize = NormalizeLexical
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		normalize: normalize,
		prefix:    cfg.KeyPrefix + ":entry:",
		indexKey:  cfg.KeyPrefix + ":by_created_at",
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Find(ctx context.Context, query string) (Entry, bool, error) {
	signature := Signature(s.normalize, query)

	raw, err := s.client.Get(ctx, s.prefix+signature).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("get cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

func (s *RedisStore) Save(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	signature := Signature(s.normalize, entry.Query)

	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	pipeline := s.client.Pipeline()
	pipeline.Set(ctx, s.prefix+signature, encoded, 0)
	pipeline.ZAdd(ctx, s.indexKey, redis.Z{
		Score:  float64(entry.CreatedAt.Unix()),
		Member: signature,
	})
	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Cleanup(ctx context.Context, ttlDays int) (int, error) {
	cutoff := ttlCutoff(time.Now().UTC(), ttlDays)
	cutoffScore := fmt.Sprintf("%d", cutoff.Unix())

	signatures, err := s.client.ZRangeByScore(ctx, s.indexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: cutoffScore,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired signatures: %w", err)
	}
	if len(signatures) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(signatures))
	for _, signature := range signatures {
		keys = append(keys, s.prefix+signature)
	}

	pipeline := s.client.Pipeline()
	pipeline.Del(ctx, keys...)
	pipeline.ZRemRangeByScore(ctx, s.indexKey, "-inf", cutoffScore)
	if _, err := pipeline.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}
	return len(signatures), nil
}
