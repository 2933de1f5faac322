package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/afripay/wallet-core/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NotificationWorker drains the notifications stream and delivers each
// event to the owning account's device. Delivery is best-effort: every
// event is acknowledged whether or not the push succeeds.
type NotificationWorker struct {
	client   redis.Cmdable
	dispatch *service.Dispatch
	group    string
	consumer string
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewNotificationWorker(client redis.Cmdable, dispatch *service.Dispatch) *NotificationWorker {
	return &NotificationWorker{
		client:   client,
		dispatch: dispatch,
		group:    "notifiers",
		consumer: "notifiers-1",
		stopCh:   make(chan struct{}),
	}
}

// Start blocks and delivers notifications until the context is canceled
// or Stop is called.
func (w *NotificationWorker) Start(ctx context.Context) {
	zap.L().Info("notification worker starting", zap.String("group", w.group))

	err := w.client.XGroupCreateMkStream(ctx, service.NotificationsStream, w.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		zap.L().Error("notification group create failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if ctx.Err() != nil {
			zap.L().Info("notification worker stopped")
			return
		}

		streams, err := w.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.group,
			Consumer: w.consumer,
			Streams:  []string{service.NotificationsStream, ">"},
			Count:    20,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			zap.L().Error("notification read failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				w.deliver(ctx, msg)
			}
		}
	}
}

// Stop signals the worker to stop.
func (w *NotificationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *NotificationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *NotificationWorker) deliver(ctx context.Context, msg redis.XMessage) {
	defer func() {
		if err := w.client.XAck(ctx, service.NotificationsStream, w.group, msg.ID).Err(); err != nil {
			zap.L().Warn("notification ack failed", zap.String("id", msg.ID), zap.Error(err))
		}
	}()

	raw, ok := msg.Values["event"].(string)
	if !ok {
		zap.L().Warn("malformed notification entry", zap.String("id", msg.ID))
		return
	}
	var event service.NotificationEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		zap.L().Warn("undecodable notification event", zap.String("id", msg.ID), zap.Error(err))
		return
	}
	w.dispatch.Deliver(ctx, event)
}
