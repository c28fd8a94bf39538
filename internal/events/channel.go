// Package events implements the Event Channel (EC): append-only
// emission of NewBet and RoundResult records to an external sink
// (spec §4.6). Emission is fire-and-forget from the caller's
// perspective and must occur strictly after the effecting state
// mutation, so observers never see events for changes that could
// still be rolled back (spec §5, §7).
package events

import (
	"context"
	"log/slog"

	"github.com/atmx/roulette-engine/internal/model"
)

// Publisher is the Event Channel's contract. Implementations append to
// a durable external log and return any failure; the round engine logs
// such failures and carries on, so an unavailable event sink never
// blocks round settlement.
type Publisher interface {
	PublishNewBet(ctx context.Context, evt model.NewBetEvent) error
	PublishRoundResult(ctx context.Context, evt model.RoundResultEvent) error
}

// NopPublisher discards all events. Used when no durable sink is
// configured, e.g. local development without Redis.
type NopPublisher struct{}

func (NopPublisher) PublishNewBet(context.Context, model.NewBetEvent) error         { return nil }
func (NopPublisher) PublishRoundResult(context.Context, model.RoundResultEvent) error { return nil }

// Broadcaster is anything that wants a copy of every emitted event for
// live fan-out, e.g. the WebSocket hub in internal/live.
type Broadcaster interface {
	BroadcastNewBet(evt model.NewBetEvent)
	BroadcastRoundResult(evt model.RoundResultEvent)
}

// FanOut publishes to a durable Publisher and, best-effort, notifies a
// live Broadcaster. Constructed once in cmd/server and handed to the
// round engine.
type FanOut struct {
	sink        Publisher
	broadcaster Broadcaster
}

// NewFanOut combines a durable sink with an optional live broadcaster.
// Pass nil broadcaster if no live feed is wired.
func NewFanOut(sink Publisher, broadcaster Broadcaster) *FanOut {
	if sink == nil {
		sink = NopPublisher{}
	}
	return &FanOut{sink: sink, broadcaster: broadcaster}
}

func (f *FanOut) PublishNewBet(ctx context.Context, evt model.NewBetEvent) error {
	if f.broadcaster != nil {
		f.broadcaster.BroadcastNewBet(evt)
	}
	if err := f.sink.PublishNewBet(ctx, evt); err != nil {
		slog.Error("event channel: failed to publish NewBet", "round", evt.Round, "player", evt.Player, "err", err)
		return err
	}
	return nil
}

func (f *FanOut) PublishRoundResult(ctx context.Context, evt model.RoundResultEvent) error {
	if f.broadcaster != nil {
		f.broadcaster.BroadcastRoundResult(evt)
	}
	if err := f.sink.PublishRoundResult(ctx, evt); err != nil {
		slog.Error("event channel: failed to publish RoundResult", "round", evt.Round, "err", err)
		return err
	}
	return nil
}
