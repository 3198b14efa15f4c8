// Package background runs scrape batches asynchronously and keeps their results for polling.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/internal/orchestrator"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

// BatchRunner is the orchestrator surface a background run needs
type BatchRunner interface {
	ScrapeCompanies(ctx context.Context, companies []models.CompanyConfig) (*orchestrator.BatchOutcome, error)
	IsRunning() bool
}

// TaskManager accepts batches, runs them one at a time in the background and keeps their results
type TaskManager struct {
	runner    BatchRunner
	store     TaskStore
	retention time.Duration
	logger    types.Logger
	newID     func() string

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	active  bool
}

// NewTaskManager creates a task manager; results are kept for retention after completion
func NewTaskManager(runner BatchRunner, retention time.Duration) *TaskManager {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &TaskManager{
		runner:    runner,
		store:     NewInMemoryTaskStore(),
		retention: retention,
		logger:    logging.Component("task_manager"),
		newID:     utils.GenerateRequestID,
	}
}

// Start starts the cleanup routine; tasks submitted before Start are rejected
func (tm *TaskManager) Start(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.running {
		return fmt.Errorf("task manager already running")
	}
	tm.ctx, tm.cancel = context.WithCancel(ctx)
	tm.running = true

	tm.wg.Add(1)
	go tm.cleanupRoutine()

	tm.logger.Info("Task manager started", map[string]interface{}{"retention": tm.retention.String()})
	return nil
}

// Stop cancels running batches and waits for them until ctx expires
func (tm *TaskManager) Stop(ctx context.Context) error {
	tm.mu.Lock()
	if !tm.running {
		tm.mu.Unlock()
		return nil
	}
	tm.running = false
	tm.cancel()
	tm.mu.Unlock()

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		tm.logger.Info("Task manager stopped gracefully", nil)
		return nil
	case <-ctx.Done():
		tm.logger.Warn("Task manager shutdown timed out", nil)
		return ctx.Err()
	}
}

// Submit records an accepted batch and starts it. It fails fast with the
// orchestrator's conflict error when a batch is already in flight.
func (tm *TaskManager) Submit(ctx context.Context, companies []models.CompanyConfig) (*TaskResult, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if !tm.running {
		return nil, utils.NewInternalServerError("task manager is not running")
	}
	if tm.active || tm.runner.IsRunning() {
		return nil, orchestrator.ErrBatchInProgress
	}
	tm.active = true

	task := &TaskResult{
		ProcessID: tm.newID(),
		Status:    TaskStatusAccepted,
		Companies: len(companies),
		CreatedAt: time.Now().UTC(),
	}
	if err := tm.store.Store(ctx, task); err != nil {
		tm.active = false
		return nil, fmt.Errorf("failed to store task result: %w", err)
	}
	tm.logger.Info("Batch accepted", map[string]interface{}{"process_id": task.ProcessID, "companies": len(companies)})

	batch := append([]models.CompanyConfig(nil), companies...)
	tm.wg.Add(1)
	go tm.process(tm.ctx, task.ProcessID, batch)

	return task.clone(), nil
}

func (tm *TaskManager) process(ctx context.Context, processID string, companies []models.CompanyConfig) {
	defer tm.wg.Done()
	started := time.Now()

	_ = tm.store.Update(ctx, processID, func(t *TaskResult) { t.Status = TaskStatusProcessing })

	outcome, err := tm.runner.ScrapeCompanies(ctx, companies)

	// free the slot before publishing the outcome so pollers can submit again right away
	tm.mu.Lock()
	tm.active = false
	tm.mu.Unlock()

	completed := time.Now().UTC()
	_ = tm.store.Update(context.Background(), processID, func(t *TaskResult) {
		t.CompletedAt = &completed
		t.ProcessingTime = time.Since(started)
		if err != nil {
			t.Status = TaskStatusFailure
			t.Error = err.Error()
			return
		}
		t.Status = TaskStatusSuccess
		t.Results = outcome.Results
		t.Metrics = outcome.Metrics
	})

	fields := map[string]interface{}{"process_id": processID, "processing_time": time.Since(started).String()}
	if err != nil {
		fields["error"] = err.Error()
		tm.logger.Error("Background batch failed", fields)
		return
	}
	fields["new_jobs"] = outcome.Metrics.NewJobsAdded
	tm.logger.Info("Background batch completed", fields)
}

// GetTaskResult returns a snapshot of the task
func (tm *TaskManager) GetTaskResult(ctx context.Context, processID string) (*TaskResult, error) {
	return tm.store.Get(ctx, processID)
}

// ListTasks lists task summaries without per-company results
func (tm *TaskManager) ListTasks(ctx context.Context) ([]*TaskResult, error) {
	return tm.store.List(ctx)
}

// IsHealthy reports whether the manager accepts work
func (tm *TaskManager) IsHealthy() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.running
}

func (tm *TaskManager) cleanupRoutine() {
	defer tm.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-tm.ctx.Done():
			return
		case <-ticker.C:
			removed, err := tm.store.Cleanup(tm.ctx, tm.retention)
			if err != nil {
				tm.logger.Error("Failed to cleanup old task results", map[string]interface{}{"error": err.Error()})
				continue
			}
			if removed > 0 {
				tm.logger.Debug("Cleaned up old task results", map[string]interface{}{"removed": removed})
			}
		}
	}
}
