package worker

import (
	"context"
	"sync"
	"time"

	"github.com/afripay/wallet-core/internal/domain"
	"github.com/afripay/wallet-core/internal/tasklog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SettlementPool runs one lane consumer per region lane. Lanes drain in
// parallel; within a lane a single consumer settles envelopes in enqueue
// order.
type SettlementPool struct {
	consumers []*tasklog.Consumer
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// PoolConfig carries the per-consumer tuning shared by every lane.
type PoolConfig struct {
	Group         string
	Handler       tasklog.Handler
	DeadLetter    tasklog.DeadLetterFunc
	BatchSize     int64
	BlockDuration time.Duration
	MinIdle       time.Duration
	MaxDeliveries int64
}

// NewSettlementPool constructs a consumer for every lane.
func NewSettlementPool(client redis.Cmdable, config PoolConfig) *SettlementPool {
	if config.Group == "" {
		config.Group = "settlers"
	}
	pool := &SettlementPool{
		consumers: make([]*tasklog.Consumer, 0, domain.LaneCount),
		stopCh:    make(chan struct{}),
	}
	for lane := 0; lane < domain.LaneCount; lane++ {
		pool.consumers = append(pool.consumers, tasklog.NewConsumer(client, tasklog.ConsumerConfig{
			Lane:          lane,
			Group:         config.Group,
			Handler:       config.Handler,
			DeadLetter:    config.DeadLetter,
			BatchSize:     config.BatchSize,
			BlockDuration: config.BlockDuration,
			MinIdle:       config.MinIdle,
			MaxDeliveries: config.MaxDeliveries,
		}))
	}
	return pool
}

// Consumers exposes the lane consumers, used by the reclaim worker to
// re-drive stuck deliveries with the same group settings.
func (p *SettlementPool) Consumers() []*tasklog.Consumer {
	return p.consumers
}

// Start blocks until every lane consumer has stopped.
func (p *SettlementPool) Start(ctx context.Context) {
	zap.L().Info("settlement pool starting", zap.Int("lanes", len(p.consumers)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for _, consumer := range p.consumers {
		p.wg.Add(1)
		go func(c *tasklog.Consumer) {
			defer p.wg.Done()
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				zap.L().Error("lane consumer exited", zap.Int("lane", c.Lane()), zap.Error(err))
			}
		}(consumer)
	}
	p.wg.Wait()
	zap.L().Info("settlement pool stopped")
}

// Stop signals every lane consumer to stop.
func (p *SettlementPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
}

// Run starts the pool in a goroutine and returns a stop function.
func (p *SettlementPool) Run(ctx context.Context) func() {
	go p.Start(ctx)
	return p.Stop
}
