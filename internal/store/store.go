// Package store defines the persistence interface for the roulette
// engine. PostgreSQL is the source of truth; Redis provides a
// read-through cache layer; an in-memory implementation backs tests.
//
// Every RoundConfig is a standalone record keyed by its round number
// and permanently retrievable for audit (spec §6): rows are appended
// and updated in place, never deleted.
package store

import (
	"context"

	"github.com/atmx/roulette-engine/internal/model"
)

// Store is the persistence interface consumed by the round engine and
// the HTTP API's read-only audit endpoints.
type Store interface {
	// SaveRound persists the full current snapshot of a round,
	// including its bet book in insertion order. Called after every
	// state-mutating engine operation.
	SaveRound(ctx context.Context, cfg model.RoundConfig) error

	// LoadRound retrieves a round snapshot by round number.
	LoadRound(ctx context.Context, number uint64) (model.RoundConfig, error)

	// ListRounds returns all round snapshots, most recently created
	// first.
	ListRounds(ctx context.Context) ([]model.RoundConfig, error)

	// InsertPayout appends an immutable payout audit record.
	InsertPayout(ctx context.Context, rec model.PayoutRecord) error

	// ListPayouts returns all payout records for one round.
	ListPayouts(ctx context.Context, round uint64) ([]model.PayoutRecord, error)
}
