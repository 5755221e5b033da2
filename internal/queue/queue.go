// ABOUTME: Enqueuer contract for the asynchronous job queue plus an in-memory fake.
// ABOUTME: At-least-once delivery; consumers live outside this process.

package queue

import (
	"context"
	"sync"
)

// Options control how a job is retried and retained.
type Options struct {
	// Attempts is the maximum number of delivery attempts.
	Attempts int

	// RemoveOnComplete drops the job row once a worker completes it.
	RemoveOnComplete bool
}

// Enqueuer accepts jobs for asynchronous processing. Implementations provide
// at-least-once delivery to external workers; callers must tolerate
// duplicate processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobName string, payload any, opts Options) error
}

// MemQueue is an in-memory Enqueuer for tests.
type MemQueue struct {
	mu   sync.Mutex
	jobs []MemJob

	// FailWith makes Enqueue return this error when set.
	FailWith error
}

// MemJob is one captured enqueue call.
type MemJob struct {
	Name    string
	Payload any
	Opts    Options
}

// NewMemQueue creates an empty MemQueue.
func NewMemQueue() *MemQueue {
	return &MemQueue{}
}

// Enqueue records the job in memory.
func (q *MemQueue) Enqueue(ctx context.Context, jobName string, payload any, opts Options) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.FailWith != nil {
		return q.FailWith
	}
	q.jobs = append(q.jobs, MemJob{Name: jobName, Payload: payload, Opts: opts})
	return nil
}

// Jobs returns a copy of the captured jobs.
func (q *MemQueue) Jobs() []MemJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]MemJob, len(q.jobs))
	copy(out, q.jobs)
	return out
}
