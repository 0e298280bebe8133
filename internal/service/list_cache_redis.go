package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/sitedeck/internal/security"
)

// RedisListCacheStore keeps one SET per namespace indexing its data keys so
// a namespace can be dropped without SCAN.
type RedisListCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisListCacheStore(client redis.UniversalClient, prefix string) *RedisListCacheStore {
	if prefix == "" {
		prefix = "sitedeck"
	}
	return &RedisListCacheStore{client: client, prefix: prefix + ":lists"}
}

func (s *RedisListCacheStore) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.dataKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *RedisListCacheStore) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	dataKey := s.dataKey(namespace, key)
	index := s.indexKey(namespace)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, dataKey, value, ttl)
	pipe.SAdd(ctx, index, dataKey)
	pipe.Expire(ctx, index, ttl+time.Minute)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisListCacheStore) InvalidateNamespace(ctx context.Context, namespace string) error {
	index := s.indexKey(namespace)
	keys, err := s.client.SMembers(ctx, index).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return s.client.Del(ctx, append(keys, index)...).Err()
}

func (s *RedisListCacheStore) dataKey(namespace, key string) string {
	return s.prefix + ":" + namespace + ":" + security.HashToken(key)
}

func (s *RedisListCacheStore) indexKey(namespace string) string {
	return s.prefix + ":" + namespace + ":index"
}
