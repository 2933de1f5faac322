package tasklog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/afripay/wallet-core/internal/observability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Handler settles one envelope. A nil return acknowledges the entry; an
// error leaves it pending so it becomes claimable again after MinIdle.
type Handler func(ctx context.Context, env Envelope) error

// DeadLetterFunc receives an envelope that exhausted its delivery budget.
type DeadLetterFunc func(ctx context.Context, env Envelope, deliveries int64)

// Consumer drains one lane on behalf of a consumer group. Each lane has a
// single active consumer, which preserves enqueue order within the lane.
type Consumer struct {
	client        redis.Cmdable
	lane          int
	group         string
	consumer      string
	handler       Handler
	deadLetter    DeadLetterFunc
	batchSize     int64
	blockDuration time.Duration
	minIdle       time.Duration
	maxDeliveries int64
}

type ConsumerConfig struct {
	Lane          int
	Group         string
	Handler       Handler
	DeadLetter    DeadLetterFunc
	BatchSize     int64
	BlockDuration time.Duration
	MinIdle       time.Duration
	MaxDeliveries int64
}

func NewConsumer(client redis.Cmdable, config ConsumerConfig) *Consumer {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.MinIdle == 0 {
		config.MinIdle = 30 * time.Second
	}
	if config.MaxDeliveries == 0 {
		config.MaxDeliveries = 5
	}
	return &Consumer{
		client:        client,
		lane:          config.Lane,
		group:         config.Group,
		consumer:      fmt.Sprintf("%s-lane-%d", config.Group, config.Lane),
		handler:       config.Handler,
		deadLetter:    config.DeadLetter,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		minIdle:       config.MinIdle,
		maxDeliveries: config.MaxDeliveries,
	}
}

// Lane returns the lane this consumer drains.
func (c *Consumer) Lane() int {
	return c.lane
}

// EnsureGroup creates the lane's consumer group if it does not exist yet.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, StreamName(c.lane), c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group for lane %d: %w", c.lane, err)
	}
	return nil
}

// Start blocks, reading and settling envelopes in stream order until the
// context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	zap.L().Info("lane consumer started",
		zap.Int("lane", c.lane),
		zap.String("group", c.group),
		zap.String("consumer", c.consumer),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{StreamName(c.lane), ">"},
			Count:    c.batchSize,
			Block:    c.blockDuration,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			zap.L().Error("lane read failed", zap.Int("lane", c.lane), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.process(ctx, msg, 1)
			}
		}
	}
}

// ReclaimOnce takes over entries another delivery attempt left pending for
// longer than MinIdle and settles them, dead-lettering entries that have
// exhausted their delivery budget. No envelope is dropped silently.
func (c *Consumer) ReclaimOnce(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: StreamName(c.lane),
		Group:  c.group,
		Idle:   c.minIdle,
		Start:  "-",
		End:    "+",
		Count:  c.batchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("lane %d pending scan: %w", c.lane, err)
	}

	for _, entry := range pending {
		claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   StreamName(c.lane),
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  c.minIdle,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			zap.L().Warn("claim failed", zap.Int("lane", c.lane), zap.String("id", entry.ID), zap.Error(err))
			continue
		}
		for _, msg := range claimed {
			c.process(ctx, msg, entry.RetryCount)
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage, deliveries int64) {
	if deliveries > 1 {
		observability.IncrementRedelivery(c.lane)
	}
	raw, ok := msg.Values[envelopeField].(string)
	if !ok {
		zap.L().Error("malformed stream entry", zap.Int("lane", c.lane), zap.String("id", msg.ID))
		c.ack(ctx, msg.ID)
		return
	}
	env, err := unmarshalEnvelope(raw)
	if err != nil {
		zap.L().Error("undecodable envelope", zap.Int("lane", c.lane), zap.String("id", msg.ID), zap.Error(err))
		c.ack(ctx, msg.ID)
		return
	}

	if deliveries > c.maxDeliveries {
		zap.L().Warn("envelope exhausted delivery budget",
			zap.Int("lane", c.lane),
			zap.String("transaction_id", env.TransactionID.String()),
			zap.Int64("deliveries", deliveries),
		)
		if c.deadLetter != nil {
			c.deadLetter(ctx, env, deliveries)
		}
		c.ack(ctx, msg.ID)
		return
	}

	if err := c.handler(ctx, env); err != nil {
		// Left unacknowledged: the entry stays pending and becomes
		// claimable again after MinIdle.
		zap.L().Warn("envelope settlement deferred",
			zap.Int("lane", c.lane),
			zap.String("transaction_id", env.TransactionID.String()),
			zap.Error(err),
		)
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, StreamName(c.lane), c.group, id).Err(); err != nil {
		zap.L().Warn("ack failed", zap.Int("lane", c.lane), zap.String("id", id), zap.Error(err))
	}
}
