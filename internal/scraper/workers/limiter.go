package workers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/pkg/utils"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns string representation of CircuitState
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// circuitBreaker tracks consecutive failures for one host
type circuitBreaker struct {
	state        CircuitState
	failureCount int
	lastFailTime time.Time
}

// hostStats is per-host bookkeeping exposed through GetAllStats
type hostStats struct {
	requests int64
	failures int64
	lastSeen time.Time
}

// RateLimiter is the single token bucket shared by every outbound request of
// every concurrent company scrape, plus a per-host circuit breaker.
type RateLimiter struct {
	bucket       *rate.Limiter
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	breakers map[string]*circuitBreaker
	hosts    map[string]*hostStats

	logger      types.Logger
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter creates the shared limiter from workers.requests_per_minute and workers.burst
func NewRateLimiter(cfg *config.Config) *RateLimiter {
	rl := newRateLimiter(
		rate.Limit(float64(cfg.Workers.RequestsPerMinute)/60.0),
		cfg.Workers.Burst,
		cfg.Workers.CircuitThreshold,
		cfg.Workers.CircuitCooldown,
	)
	go rl.cleanupRoutine(5 * time.Minute)
	return rl
}

func newRateLimiter(limit rate.Limit, burst, maxFailures int, resetTimeout time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if maxFailures < 1 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &RateLimiter{
		bucket:       rate.NewLimiter(limit, burst),
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		breakers:     make(map[string]*circuitBreaker),
		hosts:        make(map[string]*hostStats),
		logger:       logging.Component("rate_limiter"),
		stopCleanup:  make(chan struct{}),
	}
}

// Wait blocks until the shared bucket grants a token for a request to host.
// It fails fast with a network error while the host's circuit is open.
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	host = strings.ToLower(host)

	if !rl.allowHost(host) {
		rl.logger.Debug("Request rejected by circuit breaker", map[string]interface{}{"host": host})
		return utils.NewNetworkError(0, fmt.Sprintf("circuit open for %s", host))
	}

	if err := rl.bucket.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return utils.NewTimeoutError("waiting for rate limiter").WithCause(ctx.Err())
		}
		return utils.NewTimeoutError(err.Error())
	}

	rl.mu.Lock()
	hs := rl.statsFor(host)
	hs.requests++
	hs.lastSeen = rl.now()
	rl.mu.Unlock()
	return nil
}

// RecordSuccess closes a half-open circuit and resets the failure streak
func (rl *RateLimiter) RecordSuccess(host string) {
	host = strings.ToLower(host)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cb, ok := rl.breakers[host]; ok {
		if cb.state != CircuitClosed {
			rl.logger.Info("Circuit breaker closed after successful request", map[string]interface{}{"host": host})
		}
		cb.state = CircuitClosed
		cb.failureCount = 0
	}
}

// RecordFailure counts a transport-level failure against host
func (rl *RateLimiter) RecordFailure(host string, err error) {
	host = strings.ToLower(host)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.statsFor(host).failures++

	cb, ok := rl.breakers[host]
	if !ok {
		cb = &circuitBreaker{}
		rl.breakers[host] = cb
	}
	cb.failureCount++
	cb.lastFailTime = rl.now()

	if cb.state == CircuitHalfOpen || (cb.state == CircuitClosed && cb.failureCount >= rl.maxFailures) {
		cb.state = CircuitOpen
		fields := map[string]interface{}{"host": host, "failures": cb.failureCount}
		if err != nil {
			fields["error"] = err.Error()
		}
		rl.logger.Warn("Circuit breaker opened due to failures", fields)
	}
}

func (rl *RateLimiter) allowHost(host string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cb, ok := rl.breakers[host]
	if !ok {
		return true
	}
	switch cb.state {
	case CircuitOpen:
		if rl.now().Sub(cb.lastFailTime) > rl.resetTimeout {
			cb.state = CircuitHalfOpen
			rl.logger.Info("Circuit breaker transitioned to half-open", map[string]interface{}{"host": host})
			return true
		}
		return false
	default:
		return true
	}
}

// statsFor must be called with rl.mu held
func (rl *RateLimiter) statsFor(host string) *hostStats {
	hs, ok := rl.hosts[host]
	if !ok {
		hs = &hostStats{}
		rl.hosts[host] = hs
	}
	return hs
}

// CircuitState returns the current breaker state for host
func (rl *RateLimiter) CircuitState(host string) CircuitState {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cb, ok := rl.breakers[strings.ToLower(host)]; ok {
		return cb.state
	}
	return CircuitClosed
}

// GetAllStats returns per-host request counters and circuit states
func (rl *RateLimiter) GetAllStats() map[string]map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	all := make(map[string]map[string]interface{}, len(rl.hosts))
	for host, hs := range rl.hosts {
		stats := map[string]interface{}{
			"requests":      hs.requests,
			"failures":      hs.failures,
			"last_seen":     hs.lastSeen,
			"circuit_state": CircuitClosed.String(),
		}
		if cb, ok := rl.breakers[host]; ok {
			stats["circuit_state"] = cb.state.String()
			stats["failure_count"] = cb.failureCount
		}
		all[host] = stats
	}
	return all
}

func (rl *RateLimiter) cleanupRoutine(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(10 * time.Minute)
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup forgets idle hosts whose circuit is closed
func (rl *RateLimiter) cleanup(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	removed := 0
	for host, hs := range rl.hosts {
		cb, hasBreaker := rl.breakers[host]
		if hs.lastSeen.Before(cutoff) && (!hasBreaker || cb.state == CircuitClosed) {
			delete(rl.hosts, host)
			delete(rl.breakers, host)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug("Cleaned up idle host limiters", map[string]interface{}{"removed_count": removed})
	}
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}
