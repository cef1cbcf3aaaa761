package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/villageroaster/bakeboard/internal/model"
)

const defaultKeyPrefix = "bakeboard:"

// RedisStore keeps the state as one JSON string and the run log as a capped
// list, newest at the head.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	maxRuns int
}

// NewRedis connects to the Redis server at url and pings it.
func NewRedis(ctx context.Context, url string, maxRuns int) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "redis: parse url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "redis: ping")
	}
	return NewRedisWithClient(client, maxRuns), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, maxRuns int) *RedisStore {
	return &RedisStore{client: client, prefix: defaultKeyPrefix, maxRuns: runsMax(maxRuns)}
}

func (s *RedisStore) stateKey() string { return s.prefix + "state" }
func (s *RedisStore) runsKey() string  { return s.prefix + "runs" }

func (s *RedisStore) Migrate(context.Context) error { return nil }

func (s *RedisStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.client.Ping(ctx).Err(), "redis: ping")
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) SaveState(ctx context.Context, state model.DailyState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return eris.Wrap(err, "redis: marshal state")
	}
	return eris.Wrap(s.client.Set(ctx, s.stateKey(), data, 0).Err(), "redis: save state")
}

func (s *RedisStore) LoadState(ctx context.Context) (*model.DailyState, error) {
	data, err := s.client.Get(ctx, s.stateKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "redis: load state")
	}
	var st model.DailyState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, eris.Wrap(err, "redis: unmarshal state")
	}
	return &st, nil
}

func (s *RedisStore) SaveRun(ctx context.Context, run model.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "redis: marshal run")
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.runsKey(), data)
		pipe.LTrim(ctx, s.runsKey(), 0, int64(s.maxRuns-1))
		return nil
	})
	return eris.Wrapf(err, "redis: save run %s", run.ID)
}

func (s *RedisStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	limit := listLimit(filter, s.maxRuns)
	stop := int64(limit - 1)
	if filter.Status != "" {
		stop = -1
	}
	raw, err := s.client.LRange(ctx, s.runsKey(), 0, stop).Result()
	if err != nil {
		return nil, eris.Wrap(err, "redis: list runs")
	}

	runs := make([]model.Run, 0, min(limit, len(raw)))
	for _, item := range raw {
		var r model.Run
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, eris.Wrap(err, "redis: unmarshal run")
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		runs = append(runs, r)
		if len(runs) == limit {
			break
		}
	}
	return runs, nil
}
