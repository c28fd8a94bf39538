package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/roulette-engine/internal/model"
)

// RedisSink appends events to Redis Streams, giving the Event Channel
// a durable, ordered, externally-consumable log.
type RedisSink struct {
	rdb    *redis.Client
	stream string
}

// NewRedisSink creates a sink that appends to the given Redis stream
// key.
func NewRedisSink(rdb *redis.Client, stream string) *RedisSink {
	return &RedisSink{rdb: rdb, stream: stream}
}

func (s *RedisSink) PublishNewBet(ctx context.Context, evt model.NewBetEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal NewBet: %w", err)
	}
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"type": "NewBet",
			"data": data,
		},
	}).Err()
}

func (s *RedisSink) PublishRoundResult(ctx context.Context, evt model.RoundResultEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal RoundResult: %w", err)
	}
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"type": "RoundResult",
			"data": data,
		},
	}).Err()
}
