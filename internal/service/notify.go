package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/afripay/wallet-core/internal/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NotificationsStream is the Redis Stream carrying user-facing events.
// Stream order preserves the commit order of the underlying state changes.
const NotificationsStream = "notifications"

// Notifier is the best-effort fan-out contract. Notify never returns an
// error: a publish failure is logged, not propagated, because delivery
// failures must never roll back money movement.
type Notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, message string)
}

// NotificationEvent is the payload appended to the notifications stream.
type NotificationEvent struct {
	AccountID uuid.UUID `json:"account_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Fanout publishes notification events to the notifications stream.
type Fanout struct {
	client redis.Cmdable
}

func NewFanout(client redis.Cmdable) *Fanout {
	return &Fanout{client: client}
}

func (f *Fanout) Notify(ctx context.Context, accountID uuid.UUID, message string) {
	event := NotificationEvent{
		AccountID: accountID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		observability.IncrementNotification("marshal_error")
		zap.L().Warn("notification marshal failed", zap.Error(err))
		return
	}
	err = f.client.XAdd(ctx, &redis.XAddArgs{
		Stream: NotificationsStream,
		Values: map[string]any{"event": payload},
	}).Err()
	if err != nil {
		observability.IncrementNotification("publish_error")
		zap.L().Warn("notification publish failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err),
		)
		return
	}
	observability.IncrementNotification("published")
}

// Pusher is the external push/email delivery collaborator.
type Pusher interface {
	Push(ctx context.Context, deviceToken, title, body string) error
}

// LogPusher stands in for the push collaborator in environments without
// one configured; it records deliveries in the process log.
type LogPusher struct{}

func (LogPusher) Push(ctx context.Context, deviceToken, title, body string) error {
	zap.L().Info("push notification",
		zap.String("device_token", deviceToken),
		zap.String("title", title),
		zap.String("body", body),
	)
	return nil
}

// Dispatch delivers one notification event to the account's device.
// Delivery is best-effort end to end: missing accounts, missing device
// tokens and push failures are logged and the event is still consumed.
type Dispatch struct {
	store  Store
	pusher Pusher
	title  string
}

func NewDispatch(store Store, pusher Pusher) *Dispatch {
	return &Dispatch{store: store, pusher: pusher, title: "AfriPay"}
}

func (d *Dispatch) Deliver(ctx context.Context, event NotificationEvent) {
	account, err := d.store.GetAccount(ctx, event.AccountID)
	if err != nil {
		observability.IncrementNotification("account_lookup_failed")
		zap.L().Warn("notification delivery skipped",
			zap.String("account_id", event.AccountID.String()),
			zap.Error(err),
		)
		return
	}
	if account.DeviceToken == "" {
		observability.IncrementNotification("no_device")
		return
	}
	if err := d.pusher.Push(ctx, account.DeviceToken, d.title, event.Message); err != nil {
		observability.IncrementNotification("push_failed")
		zap.L().Warn("push delivery failed",
			zap.String("account_id", event.AccountID.String()),
			zap.Error(err),
		)
		return
	}
	observability.IncrementNotification("delivered")
}
