package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
)

// PoolStats is a snapshot of pool activity
type PoolStats struct {
	InFlight              int64         `json:"in_flight"`
	Waiting               int64         `json:"waiting"`
	PeakInFlight          int64         `json:"peak_in_flight"`
	TasksProcessed        int64         `json:"tasks_processed"`
	BatchesProcessed      int64         `json:"batches_processed"`
	TotalProcessingTime   time.Duration `json:"total_processing_time"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
	MaxConcurrent         int           `json:"max_concurrent"`
}

// WorkerPool runs indexed tasks in fixed-size batches with a hard ceiling on
// tasks in flight. The ceiling is shared by every concurrent Run call.
type WorkerPool struct {
	maxConcurrent int
	batchSize     int
	batchDelay    time.Duration
	slots         chan struct{}
	logger        types.Logger

	inFlight  atomic.Int64
	waiting   atomic.Int64
	peak      atomic.Int64
	processed atomic.Int64
	batches   atomic.Int64

	mu        sync.Mutex
	totalTime time.Duration
}

// NewWorkerPool creates a pool from workers.max_concurrent, batch_size and batch_delay
func NewWorkerPool(cfg *config.Config) *WorkerPool {
	return newWorkerPool(cfg.Workers.MaxConcurrent, cfg.Workers.BatchSize, cfg.Workers.BatchDelay)
}

func newWorkerPool(maxConcurrent, batchSize int, batchDelay time.Duration) *WorkerPool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if batchSize < 1 {
		batchSize = maxConcurrent
	}
	return &WorkerPool{
		maxConcurrent: maxConcurrent,
		batchSize:     batchSize,
		batchDelay:    batchDelay,
		slots:         make(chan struct{}, maxConcurrent),
		logger:        logging.Component("worker_pool"),
	}
}

// Run calls work exactly once for every index in [0, n). Tasks never cancel
// each other; a cancelled ctx only shortens the pause between batches, so
// work is still invoked (and expected to return promptly) for every index.
func (wp *WorkerPool) Run(ctx context.Context, n int, work func(ctx context.Context, i int)) {
	for start := 0; start < n; start += wp.batchSize {
		end := start + wp.batchSize
		if end > n {
			end = n
		}

		if start > 0 && wp.batchDelay > 0 {
			select {
			case <-time.After(wp.batchDelay):
			case <-ctx.Done():
			}
		}

		wp.logger.Debug("Starting batch", map[string]interface{}{
			"batch_start": start,
			"batch_size":  end - start,
			"total":       n,
		})

		var g errgroup.Group
		g.SetLimit(wp.maxConcurrent)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				wp.execute(ctx, i, work)
				return nil
			})
		}
		_ = g.Wait()
		wp.batches.Add(1)
	}
}

func (wp *WorkerPool) execute(ctx context.Context, i int, work func(ctx context.Context, i int)) {
	wp.waiting.Add(1)
	wp.slots <- struct{}{}
	wp.waiting.Add(-1)
	defer func() { <-wp.slots }()

	current := wp.inFlight.Add(1)
	for {
		peak := wp.peak.Load()
		if current <= peak || wp.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	defer wp.inFlight.Add(-1)

	started := time.Now()
	work(ctx, i)

	wp.processed.Add(1)
	wp.mu.Lock()
	wp.totalTime += time.Since(started)
	wp.mu.Unlock()
}

// InFlight is the number of tasks currently holding a slot
func (wp *WorkerPool) InFlight() int {
	return int(wp.inFlight.Load())
}

// QueueDepth counts running plus waiting tasks
func (wp *WorkerPool) QueueDepth() int {
	return int(wp.inFlight.Load() + wp.waiting.Load())
}

// GetStats returns current pool statistics
func (wp *WorkerPool) GetStats() PoolStats {
	wp.mu.Lock()
	total := wp.totalTime
	wp.mu.Unlock()

	stats := PoolStats{
		InFlight:            wp.inFlight.Load(),
		Waiting:             wp.waiting.Load(),
		PeakInFlight:        wp.peak.Load(),
		TasksProcessed:      wp.processed.Load(),
		BatchesProcessed:    wp.batches.Load(),
		TotalProcessingTime: total,
		MaxConcurrent:       wp.maxConcurrent,
	}
	if stats.TasksProcessed > 0 {
		stats.AverageProcessingTime = total / time.Duration(stats.TasksProcessed)
	}
	return stats
}
