// Package redisstore keeps the todo table in Redis.
//
// Layout under a key prefix:
//
//	<prefix>:seq    INCR counter handing out ids
//	<prefix>:rows   hash id -> JSON row
//	<prefix>:order  sorted set of ids scored by id, giving insertion order
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
)

// Store implements store.Store over a Redis client.
type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ store.Store = (*Store)(nil)

// New wraps an existing client. prefix namespaces the keys, usually the
// table name.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "todos"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Options for Dial.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Dial connects and pings the server.
func Dial(ctx context.Context, opt Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opt.Addr, err)
	}
	return New(rdb, opt.Prefix), nil
}

// Close closes the underlying client.
func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) seqKey() string   { return s.prefix + ":seq" }
func (s *Store) rowsKey() string  { return s.prefix + ":rows" }
func (s *Store) orderKey() string { return s.prefix + ":order" }

func (s *Store) SelectAll(ctx context.Context) ([]model.Item, error) {
	ids, err := s.rdb.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange: %w", err)
	}
	items := make([]model.Item, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}
	vals, err := s.rdb.HMGet(ctx, s.rowsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Ordered id whose row is gone; a delete raced us.
			continue
		}
		var it model.Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("decode row %s: %w", ids[i], err)
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *Store) Insert(ctx context.Context, item model.NewItem) (model.Item, error) {
	n, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return model.Item{}, fmt.Errorf("incr: %w", err)
	}
	it := model.Item{
		ID:          model.ID(strconv.FormatInt(n, 10)),
		Name:        item.Name,
		IsCompleted: item.IsCompleted,
	}
	raw, err := json.Marshal(it)
	if err != nil {
		return model.Item{}, fmt.Errorf("json marshal: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.rowsKey(), string(it.ID), raw)
		p.ZAdd(ctx, s.orderKey(), redis.Z{Score: float64(n), Member: string(it.ID)})
		return nil
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("insert: %w", err)
	}
	return it, nil
}

// maxTxRetries bounds how often UpdateByID retries after a concurrent
// write to the watched keys.
const maxTxRetries = 8

// UpdateByID rewrites the row under WATCH so a delete that lands between the
// read and the write aborts the transaction instead of resurrecting the row.
func (s *Store) UpdateByID(ctx context.Context, id model.ID, patch model.Patch) error {
	update := func(tx *redis.Tx) error {
		if err := tx.ZScore(ctx, s.orderKey(), string(id)).Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				return store.ErrNotFound
			}
			return fmt.Errorf("zscore: %w", err)
		}
		raw, err := tx.HGet(ctx, s.rowsKey(), string(id)).Result()
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("hget: %w", err)
		}
		var it model.Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return fmt.Errorf("decode row %s: %w", id, err)
		}
		out, err := json.Marshal(patch.Apply(it))
		if err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, s.rowsKey(), string(id), out)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, update, s.rowsKey(), s.orderKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("update %s: %w", id, err)
		}
		return err
	}
	return fmt.Errorf("update %s: %w", id, redis.TxFailedErr)
}

func (s *Store) DeleteByID(ctx context.Context, id model.ID) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.HDel(ctx, s.rowsKey(), string(id))
		p.ZRem(ctx, s.orderKey(), string(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if del.Val() == 0 {
		return store.ErrNotFound
	}
	return nil
}
