package tasklog

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	streamPrefix  = "settlement:lane:"
	envelopeField = "envelope"
)

// Log is the durable, per-lane, append-only record of pending settlement
// work, backed by one Redis Stream per lane.
type Log struct {
	client redis.Cmdable
}

func NewLog(client redis.Cmdable) *Log {
	return &Log{client: client}
}

// Append durably appends an envelope to its lane. Stream order is the
// settlement order for that lane.
func (l *Log) Append(ctx context.Context, lane int, env Envelope) error {
	payload, err := env.marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	err = l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName(lane),
		Values: map[string]any{envelopeField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("append envelope to lane %d: %w", lane, err)
	}
	return nil
}

// Depth returns the number of entries currently in a lane's stream.
func (l *Log) Depth(ctx context.Context, lane int) (int64, error) {
	n, err := l.client.XLen(ctx, StreamName(lane)).Result()
	if err != nil {
		return 0, fmt.Errorf("lane %d depth: %w", lane, err)
	}
	return n, nil
}

// StreamName returns the Redis Stream key for a lane.
func StreamName(lane int) string {
	return fmt.Sprintf("%s%d", streamPrefix, lane)
}
