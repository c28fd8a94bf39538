package round

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/roulette-engine/internal/model"
)

func TestBetBook_InsertAndContains(t *testing.T) {
	b := NewBetBook()
	if b.Contains("alice") {
		t.Fatal("empty book should not contain alice")
	}
	b.Insert("alice", model.Bet{Player: "alice", Amount: decimal.NewFromInt(10), Values: []uint8{1}})
	if !b.Contains("alice") {
		t.Error("book should contain alice after insert")
	}
}

func TestBetBook_InsertDuplicatePanics(t *testing.T) {
	b := NewBetBook()
	b.Insert("alice", model.Bet{Player: "alice", Amount: decimal.NewFromInt(10), Values: []uint8{1}})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate insert")
		}
	}()
	b.Insert("alice", model.Bet{Player: "alice", Amount: decimal.NewFromInt(5), Values: []uint8{2}})
}

func TestBetBook_PreservesInsertionOrder(t *testing.T) {
	b := NewBetBook()
	order := []string{"carol", "alice", "bob"}
	for _, p := range order {
		b.Insert(p, model.Bet{Player: p, Amount: decimal.NewFromInt(1), Values: []uint8{1}})
	}

	var seen []string
	b.Iter(func(player string, _ model.Bet) {
		seen = append(seen, player)
	})

	if len(seen) != len(order) {
		t.Fatalf("expected %d entries, got %d", len(order), len(seen))
	}
	for i, p := range order {
		if seen[i] != p {
			t.Errorf("index %d: expected %s, got %s", i, p, seen[i])
		}
	}
}

func TestBetBook_Get(t *testing.T) {
	b := NewBetBook()
	bet := model.Bet{Player: "alice", Amount: decimal.NewFromInt(42), Values: []uint8{7, 8}}
	b.Insert("alice", bet)

	got, ok := b.Get("alice")
	if !ok {
		t.Fatal("expected alice's bet to be found")
	}
	if !got.Amount.Equal(bet.Amount) {
		t.Errorf("expected amount %s, got %s", bet.Amount, got.Amount)
	}

	_, ok = b.Get("nobody")
	if ok {
		t.Error("expected nobody's bet to be absent")
	}
}

func TestBetBook_Size(t *testing.T) {
	b := NewBetBook()
	if b.Size() != 0 {
		t.Errorf("expected size 0, got %d", b.Size())
	}
	b.Insert("alice", model.Bet{Player: "alice", Amount: decimal.NewFromInt(1), Values: []uint8{1}})
	b.Insert("bob", model.Bet{Player: "bob", Amount: decimal.NewFromInt(1), Values: []uint8{1}})
	if b.Size() != 2 {
		t.Errorf("expected size 2, got %d", b.Size())
	}
}
