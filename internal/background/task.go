package background

import (
	"context"
	"sort"
	"sync"
	"time"

	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

// TaskStatus represents the status of a background batch run
type TaskStatus string

const (
	TaskStatusAccepted   TaskStatus = "ACCEPTED"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusSuccess    TaskStatus = "SUCCESS"
	TaskStatusFailure    TaskStatus = "FAILURE"
)

// TaskResult is the pollable record of one asynchronous batch
type TaskResult struct {
	ProcessID      string                   `json:"process_id"`
	Status         TaskStatus               `json:"status"`
	Companies      int                      `json:"companies"`
	Results        []*models.ScrapingResult `json:"results,omitempty"`
	Metrics        *models.ScrapingMetrics  `json:"metrics,omitempty"`
	Error          string                   `json:"error,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	ProcessingTime time.Duration            `json:"processing_time,omitempty"`
}

// clone returns a copy safe to hand out while the run keeps updating the stored one
func (r *TaskResult) clone() *TaskResult {
	c := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	c.Results = append([]*models.ScrapingResult(nil), r.Results...)
	return &c
}

// TaskStore keeps task results
type TaskStore interface {
	Store(ctx context.Context, result *TaskResult) error
	Get(ctx context.Context, processID string) (*TaskResult, error)
	Update(ctx context.Context, processID string, mutate func(*TaskResult)) error
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
	List(ctx context.Context) ([]*TaskResult, error)
}

// ErrTaskNotFound is returned for unknown process ids
var ErrTaskNotFound = utils.NewNotFoundError("task not found")

// InMemoryTaskStore implements TaskStore using in-memory storage
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*TaskResult
	now   func() time.Time
}

// NewInMemoryTaskStore creates a new in-memory task store
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{tasks: make(map[string]*TaskResult), now: time.Now}
}

func (s *InMemoryTaskStore) Store(ctx context.Context, result *TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[result.ProcessID] = result.clone()
	return nil
}

func (s *InMemoryTaskStore) Get(ctx context.Context, processID string) (*TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, exists := s.tasks[processID]
	if !exists {
		return nil, ErrTaskNotFound
	}
	return result.clone(), nil
}

// Update applies mutate under the store lock
func (s *InMemoryTaskStore) Update(ctx context.Context, processID string, mutate func(*TaskResult)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, exists := s.tasks[processID]
	if !exists {
		return ErrTaskNotFound
	}
	mutate(result)
	return nil
}

// Cleanup removes finished results older than maxAge; running tasks are kept
func (s *InMemoryTaskStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for processID, result := range s.tasks {
		if result.CompletedAt != nil && result.CreatedAt.Before(cutoff) {
			delete(s.tasks, processID)
			removed++
		}
	}
	return removed, nil
}

// List returns all task results, newest first
func (s *InMemoryTaskStore) List(ctx context.Context) ([]*TaskResult, error) {
	s.mu.RLock()
	results := make([]*TaskResult, 0, len(s.tasks))
	for _, result := range s.tasks {
		c := result.clone()
		c.Results = nil
		results = append(results, c)
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.After(results[j].CreatedAt) })
	return results, nil
}
