package round

import "github.com/atmx/roulette-engine/internal/model"

// BetBook is an ordered mapping from player identity to a single bet
// record, guaranteeing at-most-one placement per player and stable
// iteration order for the draw traversal (spec §4.3).
//
// Go maps do not preserve insertion order, so order is tracked
// explicitly in players, walked alongside the map rather than ranging
// over it, to keep settlement traversal deterministic.
type BetBook struct {
	players []string
	bets    map[string]model.Bet
}

// NewBetBook returns an empty bet book.
func NewBetBook() *BetBook {
	return &BetBook{bets: make(map[string]model.Bet)}
}

// Contains reports whether player already has a bet recorded.
func (b *BetBook) Contains(player string) bool {
	_, ok := b.bets[player]
	return ok
}

// Insert records a bet for player. The caller (round engine) must
// assert !Contains(player) before calling; violating this precondition
// panics rather than silently overwriting a bet, since that would
// break invariant P1 (uniqueness) without any caller noticing.
func (b *BetBook) Insert(player string, bet model.Bet) {
	if b.Contains(player) {
		panic("round: betbook precondition violated: player already has a bet")
	}
	b.players = append(b.players, player)
	b.bets[player] = bet
}

// Get returns the bet recorded for player, if any.
func (b *BetBook) Get(player string) (model.Bet, bool) {
	bet, ok := b.bets[player]
	return bet, ok
}

// Iter calls fn for each (player, bet) pair in insertion order. Used
// during settlement (spec §4.4.4 step 3, §5 ordering guarantees).
func (b *BetBook) Iter(fn func(player string, bet model.Bet)) {
	for _, p := range b.players {
		fn(p, b.bets[p])
	}
}

// Size returns the number of distinct players with a bet recorded.
func (b *BetBook) Size() int {
	return len(b.players)
}

// Players returns the insertion-ordered player list. The returned
// slice must not be mutated by the caller.
func (b *BetBook) Players() []string {
	return b.players
}
