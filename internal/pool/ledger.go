// Package pool implements the Pool Ledger (PL): the single-asset escrow
// balance backing one round's stakes and seed liquidity (spec §4.2).
//
// All monetary values use shopspring/decimal — never float64 for money.
package pool

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInsufficientPool is returned when a withdrawal would take the pool
// balance below zero.
var ErrInsufficientPool = errors.New("pool: insufficient balance")

// Ledger is a mutable balance supporting deposit, withdraw, and value
// queries. Arithmetic saturates at zero on the low end — it never
// underflows. Synchronization is the caller's responsibility (the
// round engine serializes access per RoundConfig; see spec §5).
type Ledger struct {
	value decimal.Decimal
}

// New creates a Ledger seeded with an initial balance.
func New(seed decimal.Decimal) *Ledger {
	if seed.IsNegative() {
		seed = decimal.Zero
	}
	return &Ledger{value: seed}
}

// Deposit credits the pool by amount. amount must be non-negative;
// negative deposits are clamped to zero effect.
func (l *Ledger) Deposit(amount decimal.Decimal) {
	if amount.IsNegative() {
		return
	}
	l.value = l.value.Add(amount)
}

// Withdraw debits the pool by amount, failing if the pool cannot cover
// it. On failure the ledger is left unchanged.
func (l *Ledger) Withdraw(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrInsufficientPool
	}
	if l.value.LessThan(amount) {
		return decimal.Zero, ErrInsufficientPool
	}
	l.value = l.value.Sub(amount)
	return amount, nil
}

// DrainAll withdraws the entire remaining balance, leaving the pool at
// zero. Used for the residual drain to the operator at finish.
func (l *Ledger) DrainAll() decimal.Decimal {
	remaining := l.value
	l.value = decimal.Zero
	return remaining
}

// Value returns the current pool balance.
func (l *Ledger) Value() decimal.Decimal {
	return l.value
}
