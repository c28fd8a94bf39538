package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/atmx/roulette-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis
// read-through cache. Writes go to the primary store and invalidate
// the cache; reads check Redis first then fall back to the primary.
//
// Concurrent reads of the same not-yet-cached round are collapsed
// with singleflight so a burst of spectators hitting a cold round
// triggers one primary-store query, not one per request.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	group   singleflight.Group
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) SaveRound(ctx context.Context, cfg model.RoundConfig) error {
	if err := s.primary.SaveRound(ctx, cfg); err != nil {
		return err
	}
	s.rdb.Del(ctx, roundKey(cfg.Round))
	return nil
}

func (s *CachedStore) InsertPayout(ctx context.Context, rec model.PayoutRecord) error {
	if err := s.primary.InsertPayout(ctx, rec); err != nil {
		return err
	}
	s.rdb.Del(ctx, payoutsKey(rec.Round))
	return nil
}

// --- Read-through (check cache first, de-dup concurrent misses) ---

func (s *CachedStore) LoadRound(ctx context.Context, number uint64) (model.RoundConfig, error) {
	if data, err := s.rdb.Get(ctx, roundKey(number)).Bytes(); err == nil {
		var cfg model.RoundConfig
		if json.Unmarshal(data, &cfg) == nil {
			return cfg, nil
		}
	}

	v, err, _ := s.group.Do(roundKey(number), func() (interface{}, error) {
		cfg, err := s.primary.LoadRound(ctx, number)
		if err != nil {
			return model.RoundConfig{}, err
		}
		s.cacheRound(ctx, cfg)
		return cfg, nil
	})
	if err != nil {
		return model.RoundConfig{}, err
	}
	return v.(model.RoundConfig), nil
}

func (s *CachedStore) ListPayouts(ctx context.Context, round uint64) ([]model.PayoutRecord, error) {
	data, err := s.rdb.Get(ctx, payoutsKey(round)).Bytes()
	if err == nil {
		var payouts []model.PayoutRecord
		if json.Unmarshal(data, &payouts) == nil {
			return payouts, nil
		}
	}

	payouts, err := s.primary.ListPayouts(ctx, round)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(payouts); err == nil {
		s.rdb.Set(ctx, payoutsKey(round), data, s.ttl)
	}
	return payouts, nil
}

// --- Passthrough (not cached: full list is small and changes often) ---

func (s *CachedStore) ListRounds(ctx context.Context) ([]model.RoundConfig, error) {
	return s.primary.ListRounds(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheRound(ctx context.Context, cfg model.RoundConfig) {
	if data, err := json.Marshal(cfg); err == nil {
		s.rdb.Set(ctx, roundKey(cfg.Round), data, s.ttl)
	}
}

func roundKey(number uint64) string   { return fmt.Sprintf("round:%d", number) }
func payoutsKey(number uint64) string { return fmt.Sprintf("payouts:%d", number) }
