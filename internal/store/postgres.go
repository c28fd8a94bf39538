package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/roulette-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of
// truth. Monetary values are stored as NUMERIC for exact decimal
// precision. The bet book (players + their bets, in insertion order)
// is stored as JSONB since its shape — an ordered map — has no
// natural relational encoding that preserves order as cheaply as a
// JSON array does.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// betBookRow is the JSONB encoding of a round's ordered bet book.
type betBookRow struct {
	Players []string             `json:"players"`
	Bets    map[string]model.Bet `json:"bets"`
}

func (s *PostgresStore) SaveRound(ctx context.Context, cfg model.RoundConfig) error {
	book, err := json.Marshal(betBookRow{Players: cfg.Players, Bets: cfg.Bets})
	if err != nil {
		return fmt.Errorf("marshal bet book: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rounds (round, pool, min_value, max_value, total_amount, closing_time,
		                     wheel_size, state, seed, winning_value, created_at, settled_at, bet_book)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (round) DO UPDATE SET
		   pool = EXCLUDED.pool,
		   min_value = EXCLUDED.min_value,
		   max_value = EXCLUDED.max_value,
		   total_amount = EXCLUDED.total_amount,
		   state = EXCLUDED.state,
		   seed = EXCLUDED.seed,
		   winning_value = EXCLUDED.winning_value,
		   settled_at = EXCLUDED.settled_at,
		   bet_book = EXCLUDED.bet_book`,
		cfg.Round, cfg.Pool.String(), cfg.MinValue.String(), cfg.MaxValue.String(), cfg.TotalAmount.String(),
		cfg.ClosingTime, cfg.WheelSize, string(cfg.State), cfg.Seed, cfg.WinningValue,
		cfg.CreatedAt, cfg.SettledAt, book,
	)
	return err
}

func (s *PostgresStore) LoadRound(ctx context.Context, number uint64) (model.RoundConfig, error) {
	var cfg model.RoundConfig
	var poolS, minValue, maxValue, totalAmount string
	var state string
	var book []byte

	err := s.pool.QueryRow(ctx,
		`SELECT round, pool::TEXT, min_value::TEXT, max_value::TEXT, total_amount::TEXT,
		        closing_time, wheel_size, state, seed, winning_value, created_at, settled_at, bet_book
		 FROM rounds WHERE round = $1`, number).
		Scan(&cfg.Round, &poolS, &minValue, &maxValue, &totalAmount,
			&cfg.ClosingTime, &cfg.WheelSize, &state, &cfg.Seed, &cfg.WinningValue,
			&cfg.CreatedAt, &cfg.SettledAt, &book)
	if err != nil {
		return model.RoundConfig{}, fmt.Errorf("load round %d: %w", number, err)
	}

	cfg.Pool, _ = decimal.NewFromString(poolS)
	cfg.MinValue, _ = decimal.NewFromString(minValue)
	cfg.MaxValue, _ = decimal.NewFromString(maxValue)
	cfg.TotalAmount, _ = decimal.NewFromString(totalAmount)
	cfg.State = model.RoundState(state)

	var row betBookRow
	if err := json.Unmarshal(book, &row); err != nil {
		return model.RoundConfig{}, fmt.Errorf("unmarshal bet book for round %d: %w", number, err)
	}
	cfg.Players = row.Players
	cfg.Bets = row.Bets

	return cfg, nil
}

func (s *PostgresStore) ListRounds(ctx context.Context) ([]model.RoundConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT round, pool::TEXT, min_value::TEXT, max_value::TEXT, total_amount::TEXT,
		        closing_time, wheel_size, state, seed, winning_value, created_at, settled_at, bet_book
		 FROM rounds ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RoundConfig
	for rows.Next() {
		var cfg model.RoundConfig
		var poolS, minS, maxS, totalS, state string
		var book []byte

		if err := rows.Scan(&cfg.Round, &poolS, &minS, &maxS, &totalS,
			&cfg.ClosingTime, &cfg.WheelSize, &state, &cfg.Seed, &cfg.WinningValue,
			&cfg.CreatedAt, &cfg.SettledAt, &book); err != nil {
			return nil, err
		}

		cfg.Pool, _ = decimal.NewFromString(poolS)
		cfg.MinValue, _ = decimal.NewFromString(minS)
		cfg.MaxValue, _ = decimal.NewFromString(maxS)
		cfg.TotalAmount, _ = decimal.NewFromString(totalS)
		cfg.State = model.RoundState(state)

		var row betBookRow
		if err := json.Unmarshal(book, &row); err != nil {
			return nil, fmt.Errorf("unmarshal bet book: %w", err)
		}
		cfg.Players = row.Players
		cfg.Bets = row.Bets

		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertPayout(ctx context.Context, rec model.PayoutRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO payouts (id, round, player, stake, prize, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)`,
		rec.ID, rec.Round, rec.Player, rec.Stake.String(), rec.Prize.String(), rec.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListPayouts(ctx context.Context, round uint64) ([]model.PayoutRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, round, player, stake::TEXT, prize::TEXT, timestamp
		 FROM payouts WHERE round = $1 ORDER BY timestamp`, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PayoutRecord
	for rows.Next() {
		var rec model.PayoutRecord
		var stakeS, prizeS string
		if err := rows.Scan(&rec.ID, &rec.Round, &rec.Player, &stakeS, &prizeS, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Stake, _ = decimal.NewFromString(stakeS)
		rec.Prize, _ = decimal.NewFromString(prizeS)
		out = append(out, rec)
	}
	return out, rows.Err()
}
