package round

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/roulette-engine/internal/model"
	"github.com/atmx/roulette-engine/internal/pool"
)

// Round is the live, exclusively-owned in-memory representation of a
// RoundConfig (spec §3, §5: "each RoundConfig is an exclusively owned
// resource during any operation that mutates it"). The engine holds
// one *Round per round number and serializes access to it with mu;
// operations on distinct rounds proceed independently.
type Round struct {
	mu sync.Mutex

	number       uint64
	minValue     decimal.Decimal
	maxValue     decimal.Decimal
	totalAmount  decimal.Decimal
	closingTime  uint64
	wheelSize    uint8
	state        model.RoundState
	createdAt    time.Time
	settledAt    *time.Time
	seed         []byte
	winningValue uint8

	ledger *pool.Ledger
	book   *BetBook
}

// newRound constructs an OPEN round seeded with initial pool liquidity.
func newRound(number uint64, minValue, maxValue, totalAmount decimal.Decimal, closingTime uint64, wheelSize uint8, seedLiquidity decimal.Decimal, now time.Time) *Round {
	return &Round{
		number:      number,
		minValue:    minValue,
		maxValue:    maxValue,
		totalAmount: totalAmount,
		closingTime: closingTime,
		wheelSize:   wheelSize,
		state:       model.StateOpen,
		createdAt:   now,
		ledger:      pool.New(seedLiquidity),
		book:        NewBetBook(),
	}
}

// Number returns the round's identifier.
func (r *Round) Number() uint64 { return r.number }

// EffectiveState derives OPEN/CLOSED from the wall clock when the
// round has not yet been settled; SETTLED is sticky once set (spec §3
// lifecycle).
func (r *Round) EffectiveState(nowMillis uint64) model.RoundState {
	if r.state == model.StateSettled {
		return model.StateSettled
	}
	if nowMillis > r.closingTime {
		return model.StateClosed
	}
	return model.StateOpen
}

// Snapshot returns a persistence/audit view of the round. Safe to call
// concurrently; callers must not mutate the returned Bets/Players slices.
func (r *Round) Snapshot(nowMillis uint64) model.RoundConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(nowMillis)
}

func (r *Round) snapshotLocked(nowMillis uint64) model.RoundConfig {
	bets := make(map[string]model.Bet, r.book.Size())
	players := make([]string, r.book.Size())
	copy(players, r.book.Players())
	for _, p := range players {
		bets[p] = mustGet(r.book, p)
	}

	return model.RoundConfig{
		Round:        r.number,
		Pool:         r.ledger.Value(),
		MinValue:     r.minValue,
		MaxValue:     r.maxValue,
		TotalAmount:  r.totalAmount,
		ClosingTime:  r.closingTime,
		WheelSize:    r.wheelSize,
		State:        r.EffectiveState(nowMillis),
		Seed:         r.seed,
		WinningValue: r.winningValue,
		CreatedAt:    r.createdAt,
		SettledAt:    r.settledAt,
		Players:      players,
		Bets:         bets,
	}
}

func mustGet(b *BetBook, player string) model.Bet {
	bet, _ := b.Get(player)
	return bet
}
