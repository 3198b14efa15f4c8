package background

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest-engine/internal/orchestrator"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

type fakeRunner struct {
	release chan struct{}
	err     error
}

func (f *fakeRunner) ScrapeCompanies(ctx context.Context, companies []models.CompanyConfig) (*orchestrator.BatchOutcome, error) {
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	results := make([]*models.ScrapingResult, len(companies))
	for i, c := range companies {
		results[i] = &models.ScrapingResult{CompanyID: c.ID, Success: true}
	}
	return &orchestrator.BatchOutcome{Results: results, Metrics: &models.ScrapingMetrics{CompaniesScraped: len(companies), NewJobsAdded: 4}}, nil
}

func (f *fakeRunner) IsRunning() bool { return false }

func waitForStatus(t *testing.T, tm *TaskManager, id string, want TaskStatus) *TaskResult {
	t.Helper()
	var last *TaskResult
	require.Eventually(t, func() bool {
		r, err := tm.GetTaskResult(context.Background(), id)
		if err != nil {
			return false
		}
		last = r
		return r.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func companies(ids ...string) []models.CompanyConfig {
	out := make([]models.CompanyConfig, len(ids))
	for i, id := range ids {
		out[i] = models.CompanyConfig{ID: id, Name: id}
	}
	return out
}

func TestSubmit_RunsBatchInBackground(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	tm := NewTaskManager(runner, time.Hour)
	require.NoError(t, tm.Start(context.Background()))
	defer tm.Stop(context.Background())

	task, err := tm.Submit(context.Background(), companies("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, TaskStatusAccepted, task.Status)
	waitForStatus(t, tm, task.ProcessID, TaskStatusProcessing)

	_, err = tm.Submit(context.Background(), companies("c"))
	assert.True(t, errors.Is(err, orchestrator.ErrBatchInProgress))

	close(runner.release)
	done := waitForStatus(t, tm, task.ProcessID, TaskStatusSuccess)
	assert.Len(t, done.Results, 2)
	assert.Equal(t, 4, done.Metrics.NewJobsAdded)
	assert.NotNil(t, done.CompletedAt)

	next, err := tm.Submit(context.Background(), companies("c"))
	require.NoError(t, err)
	waitForStatus(t, tm, next.ProcessID, TaskStatusSuccess)

	list, err := tm.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Nil(t, list[0].Results)
}

func TestSubmit_RecordsFailure(t *testing.T) {
	tm := NewTaskManager(&fakeRunner{err: utils.NewInternalServerError("boom")}, time.Hour)
	require.NoError(t, tm.Start(context.Background()))
	defer tm.Stop(context.Background())

	task, err := tm.Submit(context.Background(), companies("a"))
	require.NoError(t, err)
	failed := waitForStatus(t, tm, task.ProcessID, TaskStatusFailure)
	assert.Contains(t, failed.Error, "boom")
}

func TestSubmit_RequiresStart(t *testing.T) {
	tm := NewTaskManager(&fakeRunner{}, time.Hour)
	_, err := tm.Submit(context.Background(), companies("a"))
	assert.Error(t, err)
	assert.False(t, tm.IsHealthy())
}

func TestGetTaskResult_Unknown(t *testing.T) {
	tm := NewTaskManager(&fakeRunner{}, time.Hour)
	_, err := tm.GetTaskResult(context.Background(), "nope")
	assert.Equal(t, utils.KindNotFound, utils.KindOf(err))
}

func TestInMemoryTaskStore_CleanupKeepsRunningTasks(t *testing.T) {
	store := NewInMemoryTaskStore()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	done := now.Add(-47 * time.Hour)
	require.NoError(t, store.Store(context.Background(), &TaskResult{ProcessID: "old-done", CreatedAt: now.Add(-48 * time.Hour), CompletedAt: &done}))
	require.NoError(t, store.Store(context.Background(), &TaskResult{ProcessID: "old-running", CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.Store(context.Background(), &TaskResult{ProcessID: "fresh", CreatedAt: now}))

	removed, err := store.Cleanup(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(context.Background(), "old-running")
	assert.NoError(t, err)
}
