package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/LJTian/FinNews/internal/processor"
	"github.com/redis/go-redis/v9"
)

// RedisStore 以 Redis list 保存行：库名作为命名空间，每张表一个 key，元素为 JSON
type RedisStore struct {
	Redis *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &RedisStore{Redis: rdb}
}

func tableKey(name, table string) string {
	return fmt.Sprintf("finnews:%s:%s", name, table)
}

func (s *RedisStore) Load(ctx context.Context, name, table string) ([]collector.Record, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	key := tableKey(name, table)
	n, err := s.Redis.Exists(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoTable, name, table)
	}
	return s.scan(ctx, key)
}

func (s *RedisStore) scan(ctx context.Context, key string) ([]collector.Record, error) {
	raw, err := s.Redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]collector.Record, 0, len(raw))
	for _, item := range raw {
		var r collector.Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) Append(ctx context.Context, name, table string, records []collector.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validName(name); err != nil {
		return err
	}
	vals := make([]any, 0, len(records))
	for _, r := range records {
		bs, err := json.Marshal(r)
		if err != nil {
			return err
		}
		vals = append(vals, bs)
	}
	return s.Redis.RPush(ctx, tableKey(name, table), vals...).Err()
}

func (s *RedisStore) Exists(ctx context.Context, name, table, field, value string) (bool, error) {
	rows, err := s.scan(ctx, tableKey(name, table))
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r[field] == value {
			return true, nil
		}
	}
	return false, nil
}

func (s *RedisStore) DistinctValues(ctx context.Context, name, table, field string) (processor.KeySet, error) {
	rows, err := s.scan(ctx, tableKey(name, table))
	if err != nil {
		return nil, err
	}
	keys := processor.NewKeySet()
	for _, r := range rows {
		keys.Add(r[field])
	}
	return keys, nil
}
