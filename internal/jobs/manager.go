// Package jobs tracks batch runs submitted through the API.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quickshelf/qcom-scraper/internal/models"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one batch availability run.
type Job struct {
	ID          string                       `json:"id"`
	Rows        []models.InputRow            `json:"rows"`
	Pincode     string                       `json:"pincode"`
	Status      Status                       `json:"status"`
	RowsTotal   int                          `json:"rows_total"`
	RowsDone    int                          `json:"rows_done"`
	Results     []*models.AvailabilityRecord `json:"results,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
	StartedAt   *time.Time                   `json:"started_at,omitempty"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
	Error       string                       `json:"error,omitempty"`
}

// Runner executes the batch; the controller in internal/scraper satisfies
// this.
type Runner interface {
	Run(ctx context.Context, rows []models.InputRow, defaultPincode string) []*models.AvailabilityRecord
}

// Manager keeps job state in memory and runs one job at a time. A single
// browser serves the whole process, so serializing jobs keeps sessions
// from fighting over it.
type Manager struct {
	runner Runner
	logger *slog.Logger

	mu      sync.RWMutex
	jobs    map[string]*Job
	pending chan string
}

func NewManager(runner Runner) *Manager {
	return &Manager{
		runner:  runner,
		logger:  slog.Default().With("component", "job_manager"),
		jobs:    make(map[string]*Job),
		pending: make(chan string, 64),
	}
}

// Submit queues a batch and returns its job.
func (m *Manager) Submit(rows []models.InputRow, pincode string) (*Job, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no input rows")
	}

	job := &Job{
		ID:        uuid.New().String(),
		Rows:      rows,
		Pincode:   pincode,
		Status:    StatusPending,
		RowsTotal: len(rows),
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	select {
	case m.pending <- job.ID:
	default:
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("job queue is full")
	}

	m.logger.Info("job submitted", "id", job.ID, "rows", len(rows))
	return job, nil
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// Work consumes pending jobs until the context ends. Run it in one
// goroutine.
func (m *Manager) Work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.pending:
			m.runJob(ctx, id)
		}
	}
}

func (m *Manager) runJob(ctx context.Context, id string) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = StatusRunning
	job.StartedAt = &now
	rows, pincode := job.Rows, job.Pincode
	m.mu.Unlock()

	m.logger.Info("job started", "id", id)
	results := m.runner.Run(ctx, rows, pincode)

	m.mu.Lock()
	defer m.mu.Unlock()
	done := time.Now()
	job.Results = results
	job.RowsDone = len(results)
	job.CompletedAt = &done
	if ctx.Err() != nil {
		job.Status = StatusFailed
		job.Error = ctx.Err().Error()
	} else {
		job.Status = StatusCompleted
	}
	m.logger.Info("job finished", "id", id, "results", len(results), "status", job.Status)
}
