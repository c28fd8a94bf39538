// Package model defines the core domain types shared across the roulette
// engine. All monetary values use shopspring/decimal — never float64 for
// money.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RoundState is the lifecycle stage of a RoundConfig (spec §3).
type RoundState string

const (
	StateOpen    RoundState = "OPEN"
	StateClosed  RoundState = "CLOSED"
	StateSettled RoundState = "SETTLED"
)

// PayoutNumerator is the fixed payout numerator from the wheel analogy:
// a bet on k distinct numbers pays stake * PayoutNumerator / k.
const PayoutNumerator = 36

// DefaultWheelSize is the wheel size used when a round does not specify
// one explicitly. The literal 38 (American double-zero wheel) matches
// the historical source; it is a configuration default here, not a
// value hardcoded into the draw itself (spec §9 open question 1).
const DefaultWheelSize uint8 = 38

// Values is a set of distinct wheel-number bet targets (spec §3:
// Set<u8>). It is defined as its own type, rather than a bare []uint8,
// so it can carry an explicit JSON encoding: encoding/json treats
// []uint8 as []byte and marshals it as a base64 string, which is wrong
// for a numeric bet-values array.
type Values []uint8

// MarshalJSON encodes Values as a JSON array of numbers.
func (v Values) MarshalJSON() ([]byte, error) {
	ints := make([]uint16, len(v))
	for i, b := range v {
		ints[i] = uint16(b)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON decodes a JSON array of numbers into Values.
func (v *Values) UnmarshalJSON(data []byte) error {
	var ints []uint16
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]uint8, len(ints))
	for i, n := range ints {
		if n > 255 {
			return fmt.Errorf("model: bet value %d out of range for uint8", n)
		}
		out[i] = uint8(n)
	}
	*v = out
	return nil
}

// Bet is a single player's wager on a round: a stake and a non-empty
// set of distinct numbered outcomes.
type Bet struct {
	Player string          `json:"player" db:"player"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
	Values Values          `json:"values" db:"values"`
}

// RoundConfig is the per-round state described in spec §3.
type RoundConfig struct {
	Round        uint64          `json:"round" db:"round"`
	Pool         decimal.Decimal `json:"pool" db:"pool"`
	MinValue     decimal.Decimal `json:"min_value" db:"min_value"`
	MaxValue     decimal.Decimal `json:"max_value" db:"max_value"`
	TotalAmount  decimal.Decimal `json:"total_amount" db:"total_amount"`
	ClosingTime  uint64          `json:"closing_time" db:"closing_time"`
	WheelSize    uint8           `json:"wheel_size" db:"wheel_size"`
	State        RoundState      `json:"state" db:"state"`
	Seed         []byte          `json:"seed,omitempty" db:"seed"`
	WinningValue uint8           `json:"winning_value,omitempty" db:"winning_value"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	SettledAt    *time.Time      `json:"settled_at,omitempty" db:"settled_at"`

	// Players preserves bet insertion order; Bets is keyed by player.
	// Both must stay in sync — see round.BetBook, which owns mutation.
	Players []string       `json:"players" db:"-"`
	Bets    map[string]Bet `json:"bets" db:"-"`
}

// PayoutRecord is an immutable audit row written for every prize
// transfer during finish: once created it is never modified or deleted.
type PayoutRecord struct {
	ID        string          `json:"id" db:"id"`
	Round     uint64          `json:"round" db:"round"`
	Player    string          `json:"player" db:"player"`
	Stake     decimal.Decimal `json:"stake" db:"stake"`
	Prize     decimal.Decimal `json:"prize" db:"prize"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// NewBetEvent is emitted on every accepted bet (spec §4.6/§6).
type NewBetEvent struct {
	Round  uint64  `json:"round"`
	Player string  `json:"player"`
	Amount string  `json:"amount"`
	Values []uint8 `json:"values"`
}

// RoundResultEvent is emitted exactly once per round, at finish.
type RoundResultEvent struct {
	Round  uint64 `json:"round"`
	Seed   []byte `json:"seed"`
	Random uint8  `json:"random"`
}
