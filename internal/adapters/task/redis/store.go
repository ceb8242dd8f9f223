package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"3tcapital/saftprocessor/internal/core/task"
)

const (
	keyPrefix = "saftprocessor:task:"
	recentKey = "saftprocessor:tasks:recent"
)

// Store keeps task records as JSON strings with a TTL and indexes them in a sorted set
// scored by enqueue time.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ task.Store = (*Store)(nil)

// NewStore creates a store. A non-positive ttl defaults to 24 hours.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Save(ctx context.Context, t task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", t.ID, err)
	}

	cutoff := time.Now().Add(-s.ttl).UnixNano()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+t.ID, data, s.ttl)
		pipe.ZAdd(ctx, recentKey, redis.Z{Score: float64(t.EnqueuedAt.UnixNano()), Member: t.ID})
		pipe.ZRemRangeByScore(ctx, recentKey, "-inf", fmt.Sprintf("(%d", cutoff))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*task.Task, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &t, nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]task.Task, error) {
	if limit <= 0 {
		return []task.Task{}, nil
	}
	ids, err := s.client.ZRevRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent tasks: %w", err)
	}
	if len(ids) == 0 {
		return []task.Task{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load recent tasks: %w", err)
	}

	tasks := make([]task.Task, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired between the range and the read
			continue
		}
		var t task.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
