// Package api provides the HTTP handlers for the roulette engine's
// round lifecycle: create, update, bet, finish, withdraw, and audit
// reads (spec §4.4). Each handler follows the same shape: decode the
// request body, validate, delegate to the engine, encode the response
// or error.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/roulette-engine/internal/model"
	"github.com/atmx/roulette-engine/internal/round"
	"github.com/atmx/roulette-engine/internal/store"
)

// Server holds the round engine and exposes chi handlers for it.
//
// GetRound/ListRounds serve the engine's live in-memory state so the
// wall-clock-derived OPEN/CLOSED transition (round.Round.EffectiveState)
// stays accurate between mutations; the audit endpoints below instead
// read the persisted store directly, since that copy — not the engine's
// in-process map — is spec §6's "permanently retrievable" record and
// the one that survives a restart.
type Server struct {
	engine *round.Engine
	store  store.Store
}

// NewServer constructs an API server bound to a round engine and its
// backing store.
func NewServer(engine *round.Engine, st store.Store) *Server {
	return &Server{engine: engine, store: st}
}

// --- Request/response bodies ---

// CreateRoundRequest is the JSON body for POST /api/v1/rounds.
type CreateRoundRequest struct {
	MinValue      decimal.Decimal `json:"min_value"`
	MaxValue      decimal.Decimal `json:"max_value"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PeriodMillis  uint64          `json:"period_ms"`
	WheelSize     uint8           `json:"wheel_size"`
	SeedLiquidity decimal.Decimal `json:"seed_liquidity"`
}

// UpdateRoundRequest is the JSON body for PATCH /api/v1/rounds/{round}.
type UpdateRoundRequest struct {
	MinValue    decimal.Decimal `json:"min_value"`
	MaxValue    decimal.Decimal `json:"max_value"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ExtraCoins  decimal.Decimal `json:"extra_coins"`
}

// BetRequest is the JSON body for POST /api/v1/rounds/{round}/bets.
type BetRequest struct {
	Player string          `json:"player"`
	Values model.Values    `json:"values"`
	Amount decimal.Decimal `json:"amount"`
}

// FinishRequest is the JSON body for POST /api/v1/rounds/{round}/finish.
type FinishRequest struct {
	Signature []byte `json:"signature"`
	Seed      []byte `json:"seed"`
}

// WithdrawRequest is the JSON body for POST /api/v1/rounds/{round}/withdraw.
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// WithdrawResponse reports how much was actually drained.
type WithdrawResponse struct {
	Withdrawn decimal.Decimal `json:"withdrawn"`
}

// --- Helpers ---

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEngineError maps a round-engine error to an HTTP status,
// surfacing the wire-stable numeric code from spec §6 when present.
func writeEngineError(w http.ResponseWriter, err error) {
	var re *round.Error
	if errors.As(err, &re) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{"error": re.Msg, "code": re.Code})
		return
	}
	switch {
	case errors.Is(err, round.ErrUnauthorized):
		writeError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, round.ErrRoundNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, round.ErrRoundAlreadySettled), errors.Is(err, round.ErrRoundNotFinished):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, round.ErrInvalidProof):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		writeError(w, err.Error(), http.StatusBadRequest)
	}
}

func parseRoundParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "round"), 10, 64)
}

// capabilityFromRequest reads the admin capability from the standard
// bearer-token header.
func capabilityFromRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return auth
}

// --- Handlers ---

// CreateRound handles POST /api/v1/rounds.
func (s *Server) CreateRound(w http.ResponseWriter, r *http.Request) {
	var req CreateRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rnd, err := s.engine.CreateRound(r.Context(), capabilityFromRequest(r),
		req.MinValue, req.MaxValue, req.TotalAmount, req.PeriodMillis, req.WheelSize, req.SeedLiquidity)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	snap, err := s.engine.Snapshot(rnd.Number())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(snap)
}

// UpdateRound handles PATCH /api/v1/rounds/{round}.
func (s *Server) UpdateRound(w http.ResponseWriter, r *http.Request) {
	number, err := parseRoundParam(r)
	if err != nil {
		writeError(w, "invalid round number", http.StatusBadRequest)
		return
	}

	var req UpdateRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.engine.UpdateRound(r.Context(), capabilityFromRequest(r), number,
		req.MinValue, req.MaxValue, req.TotalAmount, req.ExtraCoins); err != nil {
		writeEngineError(w, err)
		return
	}

	snap, err := s.engine.Snapshot(number)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// PlaceBet handles POST /api/v1/rounds/{round}/bets.
func (s *Server) PlaceBet(w http.ResponseWriter, r *http.Request) {
	number, err := parseRoundParam(r)
	if err != nil {
		writeError(w, "invalid round number", http.StatusBadRequest)
		return
	}

	var req BetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Player == "" {
		writeError(w, "player is required", http.StatusBadRequest)
		return
	}

	if err := s.engine.Bet(r.Context(), number, req.Player, req.Values, req.Amount); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("bet accepted", "round", number, "player", req.Player, "amount", req.Amount.String())

	snap, err := s.engine.Snapshot(number)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(snap)
}

// Finish handles POST /api/v1/rounds/{round}/finish.
func (s *Server) Finish(w http.ResponseWriter, r *http.Request) {
	number, err := parseRoundParam(r)
	if err != nil {
		writeError(w, "invalid round number", http.StatusBadRequest)
		return
	}

	var req FinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	evt, err := s.engine.Finish(r.Context(), capabilityFromRequest(r), number, req.Signature, req.Seed)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(evt)
}

// Withdraw handles POST /api/v1/rounds/{round}/withdraw.
func (s *Server) Withdraw(w http.ResponseWriter, r *http.Request) {
	number, err := parseRoundParam(r)
	if err != nil {
		writeError(w, "invalid round number", http.StatusBadRequest)
		return
	}

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	withdrawn, err := s.engine.Withdraw(r.Context(), capabilityFromRequest(r), number, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(WithdrawResponse{Withdrawn: withdrawn})
}

// GetRound handles GET /api/v1/rounds/{round}.
func (s *Server) GetRound(w http.ResponseWriter, r *http.Request) {
	number, err := parseRoundParam(r)
	if err != nil {
		writeError(w, "invalid round number", http.StatusBadRequest)
		return
	}

	snap, err := s.engine.Snapshot(number)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// ListRounds handles GET /api/v1/rounds.
func (s *Server) ListRounds(w http.ResponseWriter, r *http.Request) {
	rounds := s.engine.ListRounds()
	w.Header().Set("Content-Type", "application/json")
	if rounds == nil {
		json.NewEncoder(w).Encode([]any{})
		return
	}
	json.NewEncoder(w).Encode(rounds)
}

// AuditGetRound handles GET /api/v1/audit/rounds/{round}, reading the
// persisted snapshot from the store rather than the engine's in-memory
// state (spec §6: the round record stays retrievable across restarts).
func (s *Server) AuditGetRound(w http.ResponseWriter, r *http.Request) {
	number, err := parseRoundParam(r)
	if err != nil {
		writeError(w, "invalid round number", http.StatusBadRequest)
		return
	}

	cfg, err := s.store.LoadRound(r.Context(), number)
	if err != nil {
		writeError(w, "round not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// AuditListRounds handles GET /api/v1/audit/rounds, listing every round
// ever persisted, most recently created first.
func (s *Server) AuditListRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.store.ListRounds(r.Context())
	if err != nil {
		writeError(w, "failed to list rounds", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if rounds == nil {
		json.NewEncoder(w).Encode([]any{})
		return
	}
	json.NewEncoder(w).Encode(rounds)
}

// ListPayouts handles GET /api/v1/rounds/{round}/payouts, the durable
// audit trail of prize disbursements for one round (spec §6).
func (s *Server) ListPayouts(w http.ResponseWriter, r *http.Request) {
	number, err := parseRoundParam(r)
	if err != nil {
		writeError(w, "invalid round number", http.StatusBadRequest)
		return
	}

	payouts, err := s.store.ListPayouts(r.Context(), number)
	if err != nil {
		writeError(w, "failed to list payouts", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if payouts == nil {
		json.NewEncoder(w).Encode([]any{})
		return
	}
	json.NewEncoder(w).Encode(payouts)
}
