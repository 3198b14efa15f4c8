package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"harvest-engine/pkg/utils"
)

func TestWorkerPool_RespectsConcurrencyCeiling(t *testing.T) {
	pool := newWorkerPool(3, 4, 0)

	var current, maxSeen atomic.Int64
	var mu sync.Mutex
	seen := map[int]bool{}

	pool.Run(context.Background(), 11, func(ctx context.Context, i int) {
		n := current.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)

		mu.Lock()
		seen[i] = true
		mu.Unlock()
	})

	assert.LessOrEqual(t, maxSeen.Load(), int64(3))
	assert.Len(t, seen, 11)

	stats := pool.GetStats()
	assert.Equal(t, int64(11), stats.TasksProcessed)
	assert.Equal(t, int64(3), stats.BatchesProcessed)
	assert.LessOrEqual(t, stats.PeakInFlight, int64(3))
	assert.Equal(t, int64(0), stats.InFlight)
}

func TestWorkerPool_CeilingSharedAcrossRuns(t *testing.T) {
	pool := newWorkerPool(2, 10, 0)

	var current, maxSeen atomic.Int64
	work := func(ctx context.Context, i int) {
		n := current.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
	}

	var wg sync.WaitGroup
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Run(context.Background(), 4, work)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int64(2))
}

func TestWorkerPool_CancelledContextStillVisitsEveryIndex(t *testing.T) {
	pool := newWorkerPool(2, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	pool.Run(ctx, 5, func(ctx context.Context, i int) { calls.Add(1) })
	assert.Equal(t, int64(5), calls.Load())
}

func TestRateLimiter_SharedBucketThrottles(t *testing.T) {
	rl := newRateLimiter(rate.Limit(20), 1, 5, time.Minute)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(context.Background(), "a.example"))
		require.NoError(t, rl.Wait(context.Background(), "b.example"))
	}
	// 6 tokens at 20/s with burst 1 need at least 5 refills
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	rl := newRateLimiter(rate.Limit(0.001), 1, 5, time.Minute)
	require.NoError(t, rl.Wait(context.Background(), "slow.example"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx, "slow.example")
	require.Error(t, err)
	assert.Equal(t, utils.KindTimeout, utils.KindOf(err))
}

func TestRateLimiter_CircuitBreaker(t *testing.T) {
	rl := newRateLimiter(rate.Inf, 1, 2, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.RecordFailure("flaky.example", errors.New("boom"))
	assert.Equal(t, CircuitClosed, rl.CircuitState("flaky.example"))
	rl.RecordFailure("flaky.example", errors.New("boom"))
	assert.Equal(t, CircuitOpen, rl.CircuitState("flaky.example"))

	err := rl.Wait(context.Background(), "flaky.example")
	require.Error(t, err)
	assert.Equal(t, utils.KindNetwork, utils.KindOf(err))
	assert.NoError(t, rl.Wait(context.Background(), "healthy.example"))

	now = now.Add(2 * time.Minute)
	require.NoError(t, rl.Wait(context.Background(), "flaky.example"))
	assert.Equal(t, CircuitHalfOpen, rl.CircuitState("flaky.example"))

	rl.RecordSuccess("flaky.example")
	assert.Equal(t, CircuitClosed, rl.CircuitState("flaky.example"))
}
