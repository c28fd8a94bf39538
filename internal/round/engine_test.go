package round

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/roulette-engine/internal/admin"
	"github.com/atmx/roulette-engine/internal/clock"
	"github.com/atmx/roulette-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// --- Test doubles ---

type noopStore struct{}

func (noopStore) SaveRound(context.Context, model.RoundConfig) error   { return nil }
func (noopStore) InsertPayout(context.Context, model.PayoutRecord) error { return nil }

type noopEvents struct{}

func (noopEvents) PublishNewBet(context.Context, model.NewBetEvent) error         { return nil }
func (noopEvents) PublishRoundResult(context.Context, model.RoundResultEvent) error { return nil }

// acceptVerifier treats any signature as valid over any seed, standing
// in for a real BLS verification whose fixtures can't be constructed
// without executing code.
type acceptVerifier struct{}

func (acceptVerifier) Verify([]byte, []byte) error { return nil }

var errRejected = errors.New("randomness: rejected")

type rejectVerifier struct{}

func (rejectVerifier) Verify([]byte, []byte) error { return errRejected }

type sequentialIDs struct{ n int }

func (s *sequentialIDs) NewID() string {
	s.n++
	return "id-" + string(rune('0'+s.n))
}

// fixedSelector always returns winner-1, so that after Finish adds one
// to the selector result the drawn number is winner. This lets tests pin
// the winning number without depending on Derive/Selector's real math.
func fixedSelector(winner uint8) func(uint8, []byte) (uint8, error) {
	return func(uint8, []byte) (uint8, error) { return winner - 1, nil }
}

func fixedDerive(sig []byte, ts uint64) [32]byte {
	var out [32]byte
	copy(out[:], sig)
	return out
}

func newTestEngine(t *testing.T, verifier BeaconVerifier, winner uint8, clk clock.Clock) (*Engine, string) {
	t.Helper()
	cap, err := admin.New()
	if err != nil {
		t.Fatalf("failed to build test capability: %v", err)
	}
	e := NewEngine(cap, noopStore{}, noopEvents{}, verifier, &sequentialIDs{}, clk, fixedSelector(winner), fixedDerive)
	return e, cap.String()
}

func createOpenRound(t *testing.T, e *Engine, token string, totalAmount, seedLiquidity decimal.Decimal, periodMillis uint64) *Round {
	t.Helper()
	r, err := e.CreateRound(context.Background(), token, d(1), d(100), totalAmount, periodMillis, 38, seedLiquidity)
	if err != nil {
		t.Fatalf("unexpected error creating round: %v", err)
	}
	return r
}

// --- CreateRound ---

func TestCreateRound_AdmitsSeedBelowWorstCasePayout(t *testing.T) {
	e, token := newTestEngine(t, acceptVerifier{}, 1, clock.NewManual(0))
	// total_amount=100 implies a worst-case payout of 100*36=3600 (spec §9.3
	// sizing recommendation); a seed of 100, equal to total_amount, is still
	// admitted since the bound is advisory, not a hard gate (spec scenario S1
	// relies on seed_pool == total_amount being accepted).
	r, err := e.CreateRound(context.Background(), token, d(1), d(100), d(100), 60000, 38, d(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Snapshot(0).Pool.Equal(d(100)) {
		t.Errorf("expected pool seeded at 100, got %s", r.Snapshot(0).Pool)
	}
}

func TestCreateRound_RejectsWheelSizeTooSmall(t *testing.T) {
	e, token := newTestEngine(t, acceptVerifier{}, 1, clock.NewManual(0))
	if _, err := e.CreateRound(context.Background(), token, d(1), d(100), d(10), 60000, 2, d(10000)); err == nil {
		t.Error("expected an error for a wheel_size too small to admit a bettable number")
	}
}

func TestCreateRound_RejectsUnauthorized(t *testing.T) {
	e, _ := newTestEngine(t, acceptVerifier{}, 1, clock.NewManual(0))
	_, err := e.CreateRound(context.Background(), "wrong-token", d(1), d(100), d(100), 60000, 38, d(10000))
	if err != ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateRound_DefaultsWheelSize(t *testing.T) {
	e, token := newTestEngine(t, acceptVerifier{}, 1, clock.NewManual(0))
	r, err := e.CreateRound(context.Background(), token, d(1), d(100), d(10), 60000, 0, d(10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := r.Snapshot(0)
	if snap.WheelSize != model.DefaultWheelSize {
		t.Errorf("expected default wheel size %d, got %d", model.DefaultWheelSize, snap.WheelSize)
	}
}

// --- Bet validation ordering (spec exact order) ---

func TestBet_RejectsInvalidValues(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(100000), 60000)

	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{0}, d(10)); err != ErrInvalidValues {
		t.Errorf("expected ErrInvalidValues for value 0, got %v", err)
	}
	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{1, 1}, d(10)); err != ErrInvalidValues {
		t.Errorf("expected ErrInvalidValues for duplicate values, got %v", err)
	}
}

func TestBet_RejectsAmountOutsideBounds(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(100000), 60000)

	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{1}, d(0.5)); err != ErrInvalidCoinValue {
		t.Errorf("expected ErrInvalidCoinValue below min, got %v", err)
	}
	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{1}, d(1000)); err != ErrInvalidCoinValue {
		t.Errorf("expected ErrInvalidCoinValue above max, got %v", err)
	}
}

func TestBet_RejectsExceedingRemainingBudget(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(50), d(100000), 60000)

	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{1}, d(60)); err != ErrRoundNotAvailable {
		t.Errorf("expected ErrRoundNotAvailable, got %v", err)
	}
}

func TestBet_RejectsAfterClosingTime(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(100000), 1000)

	clk.Advance(1001)
	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{1}, d(10)); err != ErrRoundClosed {
		t.Errorf("expected ErrRoundClosed, got %v", err)
	}
}

func TestBet_ExactlyAtClosingTimeStillAccepted(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(100000), 1000)

	clk.Set(1000) // now == closing_time, boundary: still OPEN
	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{1}, d(10)); err != nil {
		t.Errorf("expected boundary bet at closing_time to be accepted, got %v", err)
	}
}

func TestBet_RejectsDuplicatePlayer(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(100000), 60000)

	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{1}, d(10)); err != nil {
		t.Fatalf("unexpected error on first bet: %v", err)
	}
	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{2}, d(10)); err != ErrAlreadyPlaced {
		t.Errorf("expected ErrAlreadyPlaced, got %v", err)
	}
}

func TestBet_UnknownRound(t *testing.T) {
	e, _ := newTestEngine(t, acceptVerifier{}, 1, clock.NewManual(0))
	if err := e.Bet(context.Background(), 999, "alice", []uint8{1}, d(10)); err != ErrRoundNotFound {
		t.Errorf("expected ErrRoundNotFound, got %v", err)
	}
}

// --- Finish / settlement ---

func TestFinish_RejectsBeforeClosingTime(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(100000), 1000)

	if _, err := e.Finish(context.Background(), token, r.Number(), []byte("sig"), []byte("seed")); err != ErrRoundNotFinished {
		t.Errorf("expected ErrRoundNotFinished, got %v", err)
	}
}

func TestFinish_RejectsInvalidProof(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, rejectVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(100000), 1000)

	clk.Advance(1001)
	if _, err := e.Finish(context.Background(), token, r.Number(), []byte("bad-sig"), []byte("seed")); err != ErrInvalidProof {
		t.Errorf("expected ErrInvalidProof, got %v", err)
	}
}

func TestFinish_PaysWinnersAndDrainsResidual(t *testing.T) {
	clk := clock.NewManual(0)
	winner := uint8(5)
	e, token := newTestEngine(t, acceptVerifier{}, winner, clk)
	r := createOpenRound(t, e, token, d(1000), d(10000), 1000)

	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{5}, d(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Bet(context.Background(), r.Number(), "bob", []uint8{6}, d(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clk.Advance(1001)
	evt, err := e.Finish(context.Background(), token, r.Number(), []byte("sig"), []byte("seed"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Random != winner {
		t.Errorf("expected winner %d, got %d", winner, evt.Random)
	}

	snap := r.Snapshot(clk.NowMillis())
	if snap.State != model.StateSettled {
		t.Errorf("expected SETTLED, got %s", snap.State)
	}
	// alice staked 10 on a single number and won: prize = 10*36/1 = 360.
	// Pool started at 10000 + 10 + 10 = 10020, minus 360 payout, drained to zero.
	if !snap.Pool.IsZero() {
		t.Errorf("expected pool fully drained after settlement, got %s", snap.Pool)
	}
}

func TestFinish_AbortsEntirelyWhenPoolCannotCoverPayouts(t *testing.T) {
	clk := clock.NewManual(0)
	winner := uint8(5)
	e, token := newTestEngine(t, acceptVerifier{}, winner, clk)
	// Seed exactly at the worst-case payout recommendation
	// (total_amount*36 = 10*36 = 360), then drain most of it via an admin
	// withdrawal so the settlement-time payout can no longer be covered.
	r := createOpenRound(t, e, token, d(10), d(360), 1000)

	if err := e.Bet(context.Background(), r.Number(), "alice", []uint8{5}, d(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := e.Withdraw(context.Background(), token, r.Number(), d(340)); err != nil {
		t.Fatalf("unexpected error withdrawing: %v", err)
	}

	beforeSnap := r.Snapshot(clk.NowMillis())

	clk.Advance(1001)
	if _, err := e.Finish(context.Background(), token, r.Number(), []byte("sig"), []byte("seed")); err != ErrInsufficientPool {
		t.Fatalf("expected ErrInsufficientPool, got %v", err)
	}

	afterSnap := r.Snapshot(clk.NowMillis())
	if !afterSnap.Pool.Equal(beforeSnap.Pool) {
		t.Errorf("aborted settlement must not mutate the pool: before=%s after=%s", beforeSnap.Pool, afterSnap.Pool)
	}
	if afterSnap.State == model.StateSettled {
		t.Error("aborted settlement must not transition the round to SETTLED")
	}
}

func TestFinish_IsNotIdempotent_SecondCallRejected(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(100000), 1000)

	clk.Advance(1001)
	if _, err := e.Finish(context.Background(), token, r.Number(), []byte("sig"), []byte("seed")); err != nil {
		t.Fatalf("unexpected error on first finish: %v", err)
	}
	if _, err := e.Finish(context.Background(), token, r.Number(), []byte("sig"), []byte("seed")); err != ErrRoundAlreadySettled {
		t.Errorf("expected ErrRoundAlreadySettled on second finish, got %v", err)
	}
}

// --- Withdraw ---

func TestWithdraw_DuringOpenSucceeds(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(10000), 60000)

	withdrawn, err := e.Withdraw(context.Background(), token, r.Number(), d(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !withdrawn.Equal(d(500)) {
		t.Errorf("expected withdrawn 500, got %s", withdrawn)
	}
}

func TestWithdraw_RejectedDuringClosed(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(10000), 1000)

	clk.Advance(1001) // past closing_time, not yet finished: CLOSED
	if _, err := e.Withdraw(context.Background(), token, r.Number(), d(500)); err != ErrRoundClosed {
		t.Errorf("expected ErrRoundClosed, got %v", err)
	}
}

func TestWithdraw_InsufficientPool(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	r := createOpenRound(t, e, token, d(1000), d(10000), 60000)

	if _, err := e.Withdraw(context.Background(), token, r.Number(), d(999999)); err != ErrInsufficientPool {
		t.Errorf("expected ErrInsufficientPool, got %v", err)
	}
}

// --- ListRounds ---

func TestListRounds_AscendingOrder(t *testing.T) {
	clk := clock.NewManual(0)
	e, token := newTestEngine(t, acceptVerifier{}, 1, clk)
	createOpenRound(t, e, token, d(1000), d(100000), 60000)
	createOpenRound(t, e, token, d(1000), d(100000), 60000)
	createOpenRound(t, e, token, d(1000), d(100000), 60000)

	rounds := e.ListRounds()
	if len(rounds) != 3 {
		t.Fatalf("expected 3 rounds, got %d", len(rounds))
	}
	for i, r := range rounds {
		if r.Round != uint64(i) {
			t.Errorf("expected round %d at index %d, got %d", i, i, r.Round)
		}
	}
}
