package tasklog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/afripay/wallet-core/internal/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamName(t *testing.T) {
	assert.Equal(t, "settlement:lane:0", StreamName(0))
	assert.Equal(t, "settlement:lane:4", StreamName(4))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{
		TransactionID: uuid.New(),
		AccountID:     uuid.New(),
		Kind:          "utility",
		AmountMicros:  200_000_000,
		Currency:      "USD",
		Provider:      "power-co",
		Details:       json.RawMessage(`{"meter":"A-17"}`),
		Country:       "Nigeria",
		EnqueuedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	raw, err := env.marshal()
	require.NoError(t, err)
	got, err := unmarshalEnvelope(string(raw))
	require.NoError(t, err)

	assert.Equal(t, env.TransactionID, got.TransactionID)
	assert.Equal(t, env.AccountID, got.AccountID)
	assert.Equal(t, env.Kind, got.Kind)
	assert.Equal(t, env.AmountMicros, got.AmountMicros)
	assert.Equal(t, env.Provider, got.Provider)
	assert.JSONEq(t, string(env.Details), string(got.Details))
	assert.True(t, env.EnqueuedAt.Equal(got.EnqueuedAt))
}

func newIntegrationClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping integration test: REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	return redis.NewClient(opt)
}

func TestAppendConsume_Integration(t *testing.T) {
	client := newIntegrationClient(t)
	defer client.Close()
	ctx := context.Background()

	lane := 3
	client.Del(ctx, StreamName(lane))
	log := NewLog(client)

	first := Envelope{TransactionID: uuid.New(), AccountID: uuid.New(), Kind: "topup", AmountMicros: 1, Currency: "USD", EnqueuedAt: time.Now().UTC()}
	second := Envelope{TransactionID: uuid.New(), AccountID: first.AccountID, Kind: "topup", AmountMicros: 2, Currency: "USD", EnqueuedAt: time.Now().UTC()}
	require.NoError(t, log.Append(ctx, lane, first))
	require.NoError(t, log.Append(ctx, lane, second))

	depth, err := log.Depth(ctx, lane)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	var mu sync.Mutex
	var seen []uuid.UUID
	consumer := NewConsumer(client, ConsumerConfig{
		Lane:  lane,
		Group: "tasklog-test",
		Handler: func(ctx context.Context, env Envelope) error {
			mu.Lock()
			seen = append(seen, env.TransactionID)
			mu.Unlock()
			return nil
		},
		BlockDuration: 200 * time.Millisecond,
	})

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = consumer.Start(runCtx)

	mu.Lock()
	defer mu.Unlock()
	// Enqueue order is preserved within the lane.
	require.Len(t, seen, 2)
	assert.Equal(t, first.TransactionID, seen[0])
	assert.Equal(t, second.TransactionID, seen[1])
}

func TestReclaim_Integration(t *testing.T) {
	client := newIntegrationClient(t)
	defer client.Close()
	ctx := context.Background()

	lane := 2
	client.Del(ctx, StreamName(lane))
	log := NewLog(client)

	env := Envelope{TransactionID: uuid.New(), AccountID: uuid.New(), Kind: "utility", AmountMicros: 5, Currency: "USD", EnqueuedAt: time.Now().UTC()}
	require.NoError(t, log.Append(ctx, lane, env))

	// First consumer reads the entry and fails, leaving it unacked.
	failing := NewConsumer(client, ConsumerConfig{
		Lane:  lane,
		Group: "reclaim-test",
		Handler: func(ctx context.Context, env Envelope) error {
			return context.DeadlineExceeded
		},
		BlockDuration: 200 * time.Millisecond,
		MinIdle:       100 * time.Millisecond,
	})
	runCtx, cancel := context.WithTimeout(ctx, time.Second)
	_ = failing.Start(runCtx)
	cancel()

	time.Sleep(200 * time.Millisecond)

	// Reclaim re-drives the pending entry through a healthy handler.
	var mu sync.Mutex
	var recovered []uuid.UUID
	healthy := NewConsumer(client, ConsumerConfig{
		Lane:  lane,
		Group: "reclaim-test",
		Handler: func(ctx context.Context, env Envelope) error {
			mu.Lock()
			recovered = append(recovered, env.TransactionID)
			mu.Unlock()
			return nil
		},
		MinIdle: 100 * time.Millisecond,
	})
	require.NoError(t, healthy.ReclaimOnce(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, recovered, 1)
	assert.Equal(t, env.TransactionID, recovered[0])
}

func TestProcessCountsRedeliveries(t *testing.T) {
	observability.Init()

	c := NewConsumer(nil, ConsumerConfig{
		Lane:  3,
		Group: "settlers",
		Handler: func(ctx context.Context, env Envelope) error {
			return errors.New("not yet")
		},
	})

	env := Envelope{TransactionID: uuid.New(), AccountID: uuid.New(), Kind: "utility", AmountMicros: 1_000_000, Currency: "USD"}
	raw, err := env.marshal()
	require.NoError(t, err)
	msg := redis.XMessage{ID: "1-0", Values: map[string]interface{}{envelopeField: string(raw)}}

	// Second delivery of the same entry increments the redelivery series
	// for the lane. The failing handler leaves the entry unacked, so no
	// redis round trip happens.
	c.process(context.Background(), msg, 2)

	count, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "envelope_redeliveries_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}
