package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atmx/roulette-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	rounds  map[uint64]model.RoundConfig
	payouts map[uint64][]model.PayoutRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rounds:  make(map[uint64]model.RoundConfig),
		payouts: make(map[uint64][]model.PayoutRecord),
	}
}

func (s *MemoryStore) SaveRound(_ context.Context, cfg model.RoundConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a deep-enough copy to avoid external mutation through
	// shared maps/slices.
	cp := cfg
	cp.Players = append([]string(nil), cfg.Players...)
	cp.Bets = make(map[string]model.Bet, len(cfg.Bets))
	for k, v := range cfg.Bets {
		cp.Bets[k] = v
	}
	s.rounds[cfg.Round] = cp
	return nil
}

func (s *MemoryStore) LoadRound(_ context.Context, number uint64) (model.RoundConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.rounds[number]
	if !ok {
		return model.RoundConfig{}, fmt.Errorf("round %d not found", number)
	}
	return cfg, nil
}

func (s *MemoryStore) ListRounds(_ context.Context) ([]model.RoundConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RoundConfig, 0, len(s.rounds))
	for _, cfg := range s.rounds {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) InsertPayout(_ context.Context, rec model.PayoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payouts[rec.Round] = append(s.payouts[rec.Round], rec)
	return nil
}

func (s *MemoryStore) ListPayouts(_ context.Context, round uint64) ([]model.PayoutRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PayoutRecord, len(s.payouts[round]))
	copy(out, s.payouts[round])
	return out, nil
}
