package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps orders as JSON payloads with a TTL plus a sorted-set index ordered by creation time.
// Index members whose payload has expired are skipped on read and pruned lazily.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore constructs a Redis-backed store. A zero ttl keeps orders forever.
func NewRedisStore(client *redis.Client, ttl time.Duration, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "orders:"
	}
	return &RedisStore{client: client, ttl: ttl, prefix: prefix}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) indexKey() string { return s.prefix + "index" }

func (s *RedisStore) Save(ctx context.Context, o Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(o.ID), data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}
	return s.client.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(o.CreatedAt.UnixMilli()),
		Member: o.ID,
	}).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (Order, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return Order{}, fmt.Errorf("order: decode %s: %w", id, err)
	}
	return o, nil
}

func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) List(ctx context.Context, offset, limit int) ([]Order, int, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, 0, err
	}
	all, err := s.load(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return Stats{}, err
	}
	all, err := s.load(ctx, ids)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for _, o := range all {
		st.add(o.Status)
	}
	return st, nil
}

// UpdateStatus rewrites the payload under WATCH so a concurrent change aborts instead of being lost.
func (s *RedisStore) UpdateStatus(ctx context.Context, id string, status Status) (Order, error) {
	var updated Order
	key := s.key(id)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var o Order
		if err := json.Unmarshal(data, &o); err != nil {
			return err
		}
		if !CanTransition(o.Status, status) {
			return ErrInvalidTransition
		}
		o.Status = status
		payload, err := json.Marshal(o)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		updated = o
		return nil
	}, key)
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

func (s *RedisStore) load(ctx context.Context, ids []string) ([]Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(values))
	var expired []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var o Order
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			return nil, fmt.Errorf("order: decode %s: %w", ids[i], err)
		}
		out = append(out, o)
	}
	if len(expired) > 0 {
		_ = s.client.ZRem(ctx, s.indexKey(), expired...).Err()
	}
	return out, nil
}
