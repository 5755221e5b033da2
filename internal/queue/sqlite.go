// ABOUTME: Durable SQLite-backed job queue using modernc.org/sqlite
// ABOUTME: Enqueue-side for the orchestrator, dequeue/complete/fail for external workers

package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Job statuses.
const (
	statusPending = "pending"
	statusActive  = "active"
	statusFailed  = "failed"
)

// ErrNoJobs is returned by Dequeue when no pending job is available.
var ErrNoJobs = errors.New("no pending jobs")

// Job is one dequeued unit of work.
type Job struct {
	ID          string
	Name        string
	Payload     json.RawMessage
	Attempt     int
	MaxAttempts int
	CreatedAt   time.Time
}

// SQLiteQueue is a durable job queue backed by SQLite. The orchestrator only
// enqueues; external worker processes dequeue, complete, or fail jobs.
type SQLiteQueue struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteQueue opens (or creates) the queue database at the given path.
func NewSQLiteQueue(path string) (*SQLiteQueue, error) {
	logger := slog.Default().With("component", "queue")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating queue directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening queue database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	q := &SQLiteQueue{db: db, logger: logger}
	if err := q.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating queue schema: %w", err)
	}

	logger.Info("SQLite job queue initialized", "path", path)
	return q, nil
}

func (q *SQLiteQueue) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempt INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 1,
			remove_on_complete INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_jobs_status_created
			ON jobs(status, created_at);
	`
	_, err := q.db.Exec(schema)
	return err
}

// Enqueue inserts a pending job. The payload is stored as JSON.
func (q *SQLiteQueue) Enqueue(ctx context.Context, jobName string, payload any, opts Options) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload for job %s: %w", jobName, err)
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	removeOnComplete := 0
	if opts.RemoveOnComplete {
		removeOnComplete = 1
	}

	now := time.Now().UTC()
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO jobs (id, name, payload, status, attempt, max_attempts, remove_on_complete, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		uuid.New().String(), jobName, string(data), attempts, removeOnComplete, now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", jobName, err)
	}
	return nil
}

// Dequeue claims the oldest pending job for a worker, marking it active and
// incrementing its attempt counter. Returns ErrNoJobs when the queue is idle.
func (q *SQLiteQueue) Dequeue(ctx context.Context, jobName string) (*Job, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning dequeue transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, name, payload, attempt, max_attempts, created_at
		FROM jobs WHERE status = 'pending' AND name = ?
		ORDER BY created_at LIMIT 1`, jobName)

	var job Job
	var payload string
	if err := row.Scan(&job.ID, &job.Name, &payload, &job.Attempt, &job.MaxAttempts, &job.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJobs
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	job.Payload = json.RawMessage(payload)
	job.Attempt++

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = ?, attempt = ?, updated_at = ? WHERE id = ?`,
		statusActive, job.Attempt, time.Now().UTC(), job.ID,
	); err != nil {
		return nil, fmt.Errorf("claiming job %s: %w", job.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing dequeue: %w", err)
	}
	return &job, nil
}

// Complete finishes a job: deletes it when remove_on_complete is set,
// otherwise marks it completed.
func (q *SQLiteQueue) Complete(ctx context.Context, jobID string) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE id = ? AND remove_on_complete = 1`, jobID)
	if err != nil {
		return fmt.Errorf("removing completed job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = q.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("marking job %s completed: %w", jobID, err)
	}
	return nil
}

// Fail records a failed attempt. The job returns to pending while attempts
// remain, otherwise it is marked failed for inspection.
func (q *SQLiteQueue) Fail(ctx context.Context, jobID string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', updated_at = ?
		WHERE id = ? AND attempt < max_attempts`,
		time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("requeueing job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	if _, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		statusFailed, time.Now().UTC(), jobID,
	); err != nil {
		return fmt.Errorf("marking job %s failed: %w", jobID, err)
	}
	q.logger.Warn("job exhausted its attempts", "job_id", jobID)
	return nil
}

// PendingCount returns the number of pending jobs with the given name.
func (q *SQLiteQueue) PendingCount(ctx context.Context, jobName string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = 'pending' AND name = ?`, jobName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending jobs: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (q *SQLiteQueue) Close() error {
	return q.db.Close()
}
