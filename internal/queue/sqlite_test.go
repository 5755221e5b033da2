// ABOUTME: Tests for the SQLite job queue
// ABOUTME: Exercises enqueue, claim, retry accounting, and remove-on-complete

package queue

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *SQLiteQueue {
	t.Helper()
	q, err := NewSQLiteQueue(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

type testPayload struct {
	TenantID string `json:"tenantId"`
	Content  string `json:"content"`
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	err := q.Enqueue(ctx, "process-message", testPayload{TenantID: "org-1", Content: "oi"}, Options{
		Attempts:         3,
		RemoveOnComplete: true,
	})
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, "process-message")
	require.NoError(t, err)
	assert.Equal(t, "process-message", job.Name)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, 3, job.MaxAttempts)

	var p testPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, "org-1", p.TenantID)
	assert.Equal(t, "oi", p.Content)
}

func TestDequeueEmpty(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.Dequeue(context.Background(), "process-message")
	assert.ErrorIs(t, err, ErrNoJobs)
}

func TestDequeueOldestFirst(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "process-message", testPayload{Content: "first"}, Options{}))
	require.NoError(t, q.Enqueue(ctx, "process-message", testPayload{Content: "second"}, Options{}))

	job, err := q.Dequeue(ctx, "process-message")
	require.NoError(t, err)

	var p testPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, "first", p.Content)
}

func TestCompleteRemovesWhenRequested(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "process-message", testPayload{}, Options{
		Attempts:         3,
		RemoveOnComplete: true,
	}))

	job, err := q.Dequeue(ctx, "process-message")
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx, job.ID))

	n, err := q.PendingCount(ctx, "process-message")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = q.Dequeue(ctx, "process-message")
	assert.ErrorIs(t, err, ErrNoJobs)
}

func TestFailRequeuesUntilAttemptsExhausted(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "process-message", testPayload{}, Options{Attempts: 2}))

	// First attempt fails: back to pending.
	job, err := q.Dequeue(ctx, "process-message")
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempt)
	require.NoError(t, q.Fail(ctx, job.ID))

	n, err := q.PendingCount(ctx, "process-message")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Second attempt fails: exhausted, not requeued.
	job, err = q.Dequeue(ctx, "process-message")
	require.NoError(t, err)
	assert.Equal(t, 2, job.Attempt)
	require.NoError(t, q.Fail(ctx, job.ID))

	_, err = q.Dequeue(ctx, "process-message")
	assert.ErrorIs(t, err, ErrNoJobs)
}

func TestMemQueueCapturesJobs(t *testing.T) {
	q := NewMemQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "process-message", testPayload{Content: "hello"}, Options{Attempts: 3}))

	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "process-message", jobs[0].Name)
	assert.Equal(t, 3, jobs[0].Opts.Attempts)
}
