package worker

import (
	"context"
	"sync"
	"time"

	"github.com/afripay/wallet-core/internal/observability"
	"github.com/afripay/wallet-core/internal/tasklog"
	"go.uber.org/zap"
)

// ReclaimWorker periodically sweeps every lane for deliveries left
// pending by a crashed or stalled consumer and re-drives them. It also
// samples lane depth for the depth gauge.
type ReclaimWorker struct {
	consumers []*tasklog.Consumer
	log       *tasklog.Log
	interval  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewReclaimWorker constructs a worker with a default one minute sweep.
func NewReclaimWorker(consumers []*tasklog.Consumer, log *tasklog.Log) *ReclaimWorker {
	return &ReclaimWorker{
		consumers: consumers,
		log:       log,
		interval:  time.Minute,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *ReclaimWorker) WithInterval(interval time.Duration) *ReclaimWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *ReclaimWorker) Start(ctx context.Context) {
	zap.L().Info("reclaim worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reclaim worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reclaim worker stop signal received")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *ReclaimWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReclaimWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ReclaimWorker) sweep(ctx context.Context) {
	failed := false
	for _, consumer := range w.consumers {
		if err := consumer.ReclaimOnce(ctx); err != nil {
			failed = true
			zap.L().Error("lane reclaim failed", zap.Int("lane", consumer.Lane()), zap.Error(err))
		}
		depth, err := w.log.Depth(ctx, consumer.Lane())
		if err != nil {
			zap.L().Warn("lane depth sample failed", zap.Int("lane", consumer.Lane()), zap.Error(err))
			continue
		}
		observability.SetLaneDepth(consumer.Lane(), depth)
	}
	if failed {
		observability.IncrementWorkerRun("reclaim", "failed")
		return
	}
	observability.IncrementWorkerRun("reclaim", "success")
}
