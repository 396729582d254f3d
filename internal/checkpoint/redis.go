package checkpoint

import (
	"context"
	"errors"

	"github.com/fortuna/almanac/internal/cache"
	"github.com/fortuna/almanac/internal/fixture"
)

// RedisSink keeps the checkpoint as one JSON value in Redis.
type RedisSink struct {
	cache *cache.RedisCache
	name  string
}

// NewRedisSink stores the checkpoint under "checkpoint:<name>" in the
// cache namespace.
func NewRedisSink(c *cache.RedisCache, name string) *RedisSink {
	return &RedisSink{cache: c, name: name}
}

func (s *RedisSink) key() string {
	return "checkpoint:" + s.name
}

// Location returns the full Redis key.
func (s *RedisSink) Location() string {
	return "redis:" + s.cache.Key(s.key())
}

// Load returns the checkpoint, or an empty dataset when none is stored.
func (s *RedisSink) Load(ctx context.Context) (fixture.Dataset, error) {
	var ds fixture.Dataset
	err := s.cache.GetJSON(ctx, s.key(), &ds)
	if errors.Is(err, cache.ErrMiss) {
		return fixture.Dataset{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ds.NormalizeSeasons(), nil
}

// Save overwrites the checkpoint. SET is atomic so readers see either the
// old or the new value.
func (s *RedisSink) Save(ctx context.Context, ds fixture.Dataset) error {
	if ds == nil {
		ds = fixture.Dataset{}
	}
	return s.cache.SetJSON(ctx, s.key(), ds, 0)
}

// Exists reports whether a checkpoint is stored.
func (s *RedisSink) Exists(ctx context.Context) (bool, error) {
	return s.cache.Exists(ctx, s.key())
}

// Remove deletes the checkpoint.
func (s *RedisSink) Remove(ctx context.Context) error {
	return s.cache.Delete(ctx, s.key())
}
