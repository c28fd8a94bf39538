// Package round implements the Round Engine (RE): the OPEN → CLOSED →
// SETTLED state machine, bet admission, settlement, and the
// process-wide round counter (spec §4.4, §3's RouletteConfig).
package round

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/roulette-engine/internal/admin"
	"github.com/atmx/roulette-engine/internal/clock"
	"github.com/atmx/roulette-engine/internal/metrics"
	"github.com/atmx/roulette-engine/internal/model"
)

// Store is the persistence contract the engine depends on. Concrete
// implementations (Postgres, in-memory, Redis-cached) live in
// internal/store and satisfy this interface structurally.
type Store interface {
	SaveRound(ctx context.Context, cfg model.RoundConfig) error
	InsertPayout(ctx context.Context, rec model.PayoutRecord) error
}

// EventPublisher is the Event Channel contract the engine depends on.
type EventPublisher interface {
	PublishNewBet(ctx context.Context, evt model.NewBetEvent) error
	PublishRoundResult(ctx context.Context, evt model.RoundResultEvent) error
}

// BeaconVerifier is the Randomness Verifier contract the engine
// depends on for signature checking. Derive/Selector are pure
// functions and are injected as plain function values (see NewEngine)
// rather than through an interface.
type BeaconVerifier interface {
	Verify(sig, seed []byte) error
}

// IDGenerator mints identifiers for audit records. Satisfied by
// github.com/google/uuid in production, a deterministic stub in tests.
type IDGenerator interface {
	NewID() string
}

// Engine is the Round Engine. It owns the process-wide round counter
// (RouletteConfig.current_round in spec §3) and one *Round per round
// number.
type Engine struct {
	mu           sync.Mutex // guards currentRound and rounds map membership
	currentRound uint64
	rounds       map[uint64]*Round

	cap      admin.Capability
	store    Store
	events   EventPublisher
	verifier BeaconVerifier
	ids      IDGenerator
	clk      clock.Clock

	selector func(n uint8, rnd []byte) (uint8, error)
	derive   func(sig []byte, timestampMillis uint64) [32]byte
}

// NewEngine constructs an Engine. selector/derive are injected so that
// this package does not need to import internal/randomness directly,
// keeping the dependency direction pointing outward from the domain
// core, matching spec §1's framing of RV as a collaborator the round
// engine invokes rather than embeds.
func NewEngine(
	cap admin.Capability,
	store Store,
	events EventPublisher,
	verifier BeaconVerifier,
	ids IDGenerator,
	clk clock.Clock,
	selector func(n uint8, rnd []byte) (uint8, error),
	derive func(sig []byte, timestampMillis uint64) [32]byte,
) *Engine {
	return &Engine{
		rounds:   make(map[uint64]*Round),
		cap:      cap,
		store:    store,
		events:   events,
		verifier: verifier,
		ids:      ids,
		clk:      clk,
		selector: selector,
		derive:   derive,
	}
}

func (e *Engine) checkCap(presented string) error {
	if err := e.cap.Check(presented); err != nil {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) nextRoundNumber() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.currentRound
	e.currentRound++
	return n
}

func (e *Engine) getRound(number uint64) (*Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rounds[number]
	if !ok {
		return nil, ErrRoundNotFound
	}
	return r, nil
}

// maxPossiblePayout computes the worst-case aggregate payout obligation
// implied by a round's remaining bet-intake budget: every unit of
// totalAmount landing on a single-number bet, which pays the maximum
// ratio (PayoutNumerator / 1). Spec §9.3 offers this only as a sizing
// recommendation for the seed pool, not a mandatory bound — the house
// edge is built on wheel_size covering *expected* loss, not the full
// worst case, so a round is merely flagged rather than refused when its
// seed falls short. Spec §9 open question 3.
func maxPossiblePayout(totalAmount decimal.Decimal) decimal.Decimal {
	return totalAmount.Mul(decimal.NewFromInt(model.PayoutNumerator))
}

// minWheelSize is the smallest wheel that still leaves at least one
// bettable number after reserving the zero and double-zero pockets
// (values run [1, wheel_size-2]).
const minWheelSize = 3

// CreateRound implements spec §4.4.1. presentedCap authorizes the
// call; periodMillis is added to the current clock reading to derive
// closing_time.
func (e *Engine) CreateRound(
	ctx context.Context,
	presentedCap string,
	minValue, maxValue, totalAmount decimal.Decimal,
	periodMillis uint64,
	wheelSize uint8,
	seedLiquidity decimal.Decimal,
) (*Round, error) {
	if err := e.checkCap(presentedCap); err != nil {
		return nil, err
	}
	if minValue.GreaterThan(maxValue) {
		return nil, fmt.Errorf("round: min_value must be <= max_value")
	}
	if periodMillis == 0 {
		return nil, fmt.Errorf("round: period_ms must be positive")
	}
	if wheelSize == 0 {
		wheelSize = model.DefaultWheelSize
	}
	if wheelSize < minWheelSize {
		return nil, fmt.Errorf("round: wheel_size must be at least %d", minWheelSize)
	}
	if seedLiquidity.LessThan(maxPossiblePayout(totalAmount)) {
		metrics.UnderfundedRoundsTotal.Inc()
		slog.Warn("round: seed liquidity below worst-case payout recommendation",
			"total_amount", totalAmount.String(), "seed_liquidity", seedLiquidity.String())
	}

	now := time.UnixMilli(int64(e.clk.NowMillis())).UTC()
	number := e.nextRoundNumber()
	closingTime := e.clk.NowMillis() + periodMillis

	r := newRound(number, minValue, maxValue, totalAmount, closingTime, wheelSize, seedLiquidity, now)

	e.mu.Lock()
	e.rounds[number] = r
	e.mu.Unlock()

	if err := e.store.SaveRound(ctx, r.Snapshot(e.clk.NowMillis())); err != nil {
		return nil, fmt.Errorf("round: persist new round: %w", err)
	}
	metrics.PoolValue.WithLabelValues(fmt.Sprint(number)).Set(seedLiquidity.InexactFloat64())

	slog.Info("round created", "round", number, "min_value", minValue.String(), "max_value", maxValue.String(),
		"total_amount", totalAmount.String(), "closing_time", closingTime, "wheel_size", wheelSize)

	return r, nil
}

// UpdateRound implements spec §4.4.2. Permitted only while OPEN.
func (e *Engine) UpdateRound(
	ctx context.Context,
	presentedCap string,
	roundNumber uint64,
	minValue, maxValue, totalAmount decimal.Decimal,
	extraCoins decimal.Decimal,
) error {
	if err := e.checkCap(presentedCap); err != nil {
		return err
	}
	r, err := e.getRound(roundNumber)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.EffectiveState(e.clk.NowMillis()) != model.StateOpen {
		return ErrRoundClosed
	}

	newPool := r.ledger.Value().Add(extraCoins)
	if newPool.LessThan(maxPossiblePayout(totalAmount)) {
		metrics.UnderfundedRoundsTotal.Inc()
		slog.Warn("round: updated pool below worst-case payout recommendation", "round", roundNumber,
			"total_amount", totalAmount.String(), "pool", newPool.String())
	}

	r.minValue = minValue
	r.maxValue = maxValue
	r.totalAmount = totalAmount
	r.ledger.Deposit(extraCoins)

	if err := e.store.SaveRound(ctx, r.snapshotLocked(e.clk.NowMillis())); err != nil {
		return fmt.Errorf("round: persist update: %w", err)
	}
	metrics.PoolValue.WithLabelValues(fmt.Sprint(roundNumber)).Set(r.ledger.Value().InexactFloat64())

	slog.Info("round updated", "round", roundNumber, "min_value", minValue.String(),
		"max_value", maxValue.String(), "total_amount", totalAmount.String(), "extra", extraCoins.String())
	return nil
}

// validateValues enforces spec §9 open question 2: values must be
// distinct and within [1, wheel_size-2] — the numbered pockets, not
// counting the two zero-equivalent slots implied by wheel size 38.
func validateValues(values []uint8, wheelSize uint8) error {
	if len(values) == 0 {
		return ErrInvalidValues
	}
	maxNumber := wheelSize - 2
	seen := make(map[uint8]bool, len(values))
	for _, v := range values {
		if v < 1 || v > maxNumber {
			return ErrInvalidValues
		}
		if seen[v] {
			return ErrInvalidValues
		}
		seen[v] = true
	}
	return nil
}

// Bet implements spec §4.4.3. The bet values are checked first
// (ErrInvalidValues, an extension); the remaining validations then run
// in the order the specification lists.
func (e *Engine) Bet(ctx context.Context, roundNumber uint64, player string, values []uint8, amount decimal.Decimal) error {
	r, err := e.getRound(roundNumber)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := validateValues(values, r.wheelSize); err != nil {
		metrics.BetRejectionsTotal.WithLabelValues(fmt.Sprint(CodeInvalidValues)).Inc()
		return err
	}
	if amount.LessThan(r.minValue) {
		metrics.BetRejectionsTotal.WithLabelValues(fmt.Sprint(CodeInvalidCoinValue)).Inc()
		return ErrInvalidCoinValue
	}
	if amount.GreaterThan(r.maxValue) {
		metrics.BetRejectionsTotal.WithLabelValues(fmt.Sprint(CodeInvalidCoinValue)).Inc()
		return ErrInvalidCoinValue
	}
	if amount.GreaterThan(r.totalAmount) {
		metrics.BetRejectionsTotal.WithLabelValues(fmt.Sprint(CodeRoundNotAvailable)).Inc()
		return ErrRoundNotAvailable
	}
	now := e.clk.NowMillis()
	if now > r.closingTime {
		metrics.BetRejectionsTotal.WithLabelValues(fmt.Sprint(CodeRoundClosed)).Inc()
		return ErrRoundClosed
	}
	if r.book.Contains(player) {
		metrics.BetRejectionsTotal.WithLabelValues(fmt.Sprint(CodeAlreadyPlaced)).Inc()
		return ErrAlreadyPlaced
	}

	r.totalAmount = r.totalAmount.Sub(amount)
	valuesCopy := append([]uint8(nil), values...)
	r.book.Insert(player, model.Bet{Player: player, Amount: amount, Values: valuesCopy})
	r.ledger.Deposit(amount)

	if err := e.store.SaveRound(ctx, r.snapshotLocked(now)); err != nil {
		return fmt.Errorf("round: persist bet: %w", err)
	}
	metrics.BetsTotal.Inc()
	metrics.PoolValue.WithLabelValues(fmt.Sprint(roundNumber)).Set(r.ledger.Value().InexactFloat64())

	if err := e.events.PublishNewBet(ctx, model.NewBetEvent{
		Round: roundNumber, Player: player, Amount: amount.String(), Values: valuesCopy,
	}); err != nil {
		slog.Warn("round: NewBet publish failed", "round", roundNumber, "player", player, "err", err)
	}
	return nil
}

// Finish implements spec §4.4.4.
func (e *Engine) Finish(ctx context.Context, presentedCap string, roundNumber uint64, sig, seed []byte) (model.RoundResultEvent, error) {
	if err := e.checkCap(presentedCap); err != nil {
		return model.RoundResultEvent{}, err
	}
	r, err := e.getRound(roundNumber)
	if err != nil {
		return model.RoundResultEvent{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == model.StateSettled {
		return model.RoundResultEvent{}, ErrRoundAlreadySettled
	}

	now := e.clk.NowMillis()
	if now <= r.closingTime {
		return model.RoundResultEvent{}, ErrRoundNotFinished
	}
	if err := e.verifier.Verify(sig, seed); err != nil {
		return model.RoundResultEvent{}, ErrInvalidProof
	}

	digest := e.derive(sig, now)
	raw, err := e.selector(r.wheelSize, digest[:])
	if err != nil {
		return model.RoundResultEvent{}, err
	}
	winner := raw + 1

	// Compute all obligations before mutating anything, so a shortfall
	// aborts the entire settlement without partial payouts (spec §7).
	type payout struct {
		player string
		bet    model.Bet
		prize  decimal.Decimal
	}
	var payouts []payout
	var totalOwed decimal.Decimal
	r.book.Iter(func(player string, bet model.Bet) {
		if !containsValue(bet.Values, winner) {
			return
		}
		prize := bet.Amount.Mul(decimal.NewFromInt(model.PayoutNumerator)).Div(decimal.NewFromInt(int64(len(bet.Values)))).Truncate(0)
		payouts = append(payouts, payout{player: player, bet: bet, prize: prize})
		totalOwed = totalOwed.Add(prize)
	})

	if r.ledger.Value().LessThan(totalOwed) {
		return model.RoundResultEvent{}, ErrInsufficientPool
	}

	for _, p := range payouts {
		if _, err := r.ledger.Withdraw(p.prize); err != nil {
			// Unreachable given the pre-check above, but surfaced
			// rather than silently ignored if ledger state ever
			// diverges from the pre-computed total.
			return model.RoundResultEvent{}, ErrInsufficientPool
		}
		if e.store != nil {
			_ = e.store.InsertPayout(ctx, model.PayoutRecord{
				ID:        e.ids.NewID(),
				Round:     roundNumber,
				Player:    p.player,
				Stake:     p.bet.Amount,
				Prize:     p.prize,
				Timestamp: time.UnixMilli(int64(now)).UTC(),
			})
		}
		metrics.PayoutTotal.Add(p.prize.InexactFloat64())
	}

	residual := r.ledger.DrainAll()
	metrics.ResidualDrainTotal.Add(residual.InexactFloat64())

	settledAt := time.UnixMilli(int64(now)).UTC()
	r.seed = seed
	r.winningValue = winner
	r.state = model.StateSettled
	r.settledAt = &settledAt

	if err := e.store.SaveRound(ctx, r.snapshotLocked(now)); err != nil {
		return model.RoundResultEvent{}, fmt.Errorf("round: persist settlement: %w", err)
	}
	metrics.RoundsSettled.Inc()
	metrics.PoolValue.WithLabelValues(fmt.Sprint(roundNumber)).Set(0)

	slog.Info("round settled", "round", roundNumber, "winner", winner, "payouts", len(payouts),
		"total_owed", totalOwed.String(), "residual_drained", residual.String())

	evt := model.RoundResultEvent{Round: roundNumber, Seed: seed, Random: winner}
	if err := e.events.PublishRoundResult(ctx, evt); err != nil {
		slog.Warn("round: RoundResult publish failed", "round", roundNumber, "err", err)
	}
	return evt, nil
}

// Withdraw implements spec §4.4.5. Admin-only, permitted in OPEN or
// SETTLED state.
func (e *Engine) Withdraw(ctx context.Context, presentedCap string, roundNumber uint64, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := e.checkCap(presentedCap); err != nil {
		return decimal.Zero, err
	}
	r, err := e.getRound(roundNumber)
	if err != nil {
		return decimal.Zero, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := e.clk.NowMillis()
	state := r.EffectiveState(now)
	if state == model.StateClosed {
		return decimal.Zero, ErrRoundClosed
	}

	withdrawn, err := r.ledger.Withdraw(amount)
	if err != nil {
		return decimal.Zero, ErrInsufficientPool
	}

	if state == model.StateOpen {
		metrics.OpenWithdrawalsTotal.Inc()
		slog.Warn("round: admin withdrawal while round is still OPEN", "round", roundNumber, "amount", amount.String())
	}

	if err := e.store.SaveRound(ctx, r.snapshotLocked(now)); err != nil {
		return decimal.Zero, fmt.Errorf("round: persist withdrawal: %w", err)
	}
	metrics.PoolValue.WithLabelValues(fmt.Sprint(roundNumber)).Set(r.ledger.Value().InexactFloat64())

	return withdrawn, nil
}

// Snapshot returns the current audit view of a round.
func (e *Engine) Snapshot(roundNumber uint64) (model.RoundConfig, error) {
	r, err := e.getRound(roundNumber)
	if err != nil {
		return model.RoundConfig{}, err
	}
	return r.Snapshot(e.clk.NowMillis()), nil
}

// ListRounds returns audit snapshots for every round the engine knows
// about, in ascending round-number order.
func (e *Engine) ListRounds() []model.RoundConfig {
	e.mu.Lock()
	numbers := make([]uint64, 0, len(e.rounds))
	for n := range e.rounds {
		numbers = append(numbers, n)
	}
	e.mu.Unlock()

	// Simple insertion sort: round counts are small and this avoids
	// pulling in sort for a handful of comparisons per request.
	for i := 1; i < len(numbers); i++ {
		for j := i; j > 0 && numbers[j-1] > numbers[j]; j-- {
			numbers[j-1], numbers[j] = numbers[j], numbers[j-1]
		}
	}

	out := make([]model.RoundConfig, 0, len(numbers))
	now := e.clk.NowMillis()
	for _, n := range numbers {
		r, err := e.getRound(n)
		if err != nil {
			continue
		}
		out = append(out, r.Snapshot(now))
	}
	return out
}

func containsValue(values []uint8, v uint8) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
