// Package jobs runs and tracks background work: crawls, syncs, and
// analytics computation. Job records live in memory; the index and
// cache layers hold everything durable.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	StatusStarting = "starting"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Job kinds.
const (
	KindCrawl = "crawl"
	KindSync  = "sync"
)

// Job is one tracked background operation. Progress and Result hold
// the engine-specific progress and outcome values.
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Progress    any        `json:"progress,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Registry tracks jobs by id. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	// writerBusy serializes index-writing jobs: a crawl and a sync must
	// never interleave their batches.
	writerBusy bool
	writerID   string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Create registers a new job of the given kind and returns it.
func (r *Registry) Create(kind string) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusStarting,
		StartedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return job
}

// Get returns a copy of the job, or nil if unknown.
func (r *Registry) Get(id string) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil
	}

	copied := *job

	return &copied
}

// Update applies fn to the job under the registry lock.
func (r *Registry) Update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		fn(job)
	}
}

// Complete marks the job finished with a result.
func (r *Registry) Complete(id string, result any) {
	now := time.Now().UTC()

	r.Update(id, func(job *Job) {
		job.Status = StatusComplete
		job.Result = result
		job.CompletedAt = &now
	})
}

// Fail marks the job failed.
func (r *Registry) Fail(id string, err error) {
	now := time.Now().UTC()

	r.Update(id, func(job *Job) {
		job.Status = StatusError
		job.Error = err.Error()
		job.CompletedAt = &now
	})
}

// AcquireWriter claims the index-writer slot for a job. Returns the id
// of the job currently holding the slot and false when it is taken.
func (r *Registry) AcquireWriter(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writerBusy {
		return r.writerID, false
	}

	r.writerBusy = true
	r.writerID = id

	return id, true
}

// ReleaseWriter frees the index-writer slot. Only the holder releases.
func (r *Registry) ReleaseWriter(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writerID == id {
		r.writerBusy = false
		r.writerID = ""
	}
}
