// ABOUTME: SQLite implementation of the TenantStore interface using modernc.org/sqlite
// ABOUTME: Provides instance record persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the TenantStore interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite tenant store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS instances (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			instance_name TEXT NOT NULL,
			phone_number TEXT,
			status TEXT NOT NULL,
			last_connected_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_instances_tenant
			ON instances(tenant_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertInstanceStatus creates or updates the tenant's instance record.
func (s *SQLiteStore) UpsertInstanceStatus(ctx context.Context, tenantID string, upd StatusUpdate) error {
	existing, err := s.FindInstanceByTenant(ctx, tenantID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("looking up instance for tenant %s: %w", tenantID, err)
	}

	now := time.Now().UTC()

	if existing == nil {
		id := upd.InstanceID
		if id == "" {
			id = uuid.New().String()
		}
		name := upd.InstanceName
		if name == "" {
			name = "instance " + id[:8]
		}
		var phone sql.NullString
		if upd.PhoneNumber != nil {
			phone = sql.NullString{String: *upd.PhoneNumber, Valid: true}
		}
		var lastConnected sql.NullTime
		if upd.LastConnectedAt != nil {
			lastConnected = sql.NullTime{Time: upd.LastConnectedAt.UTC(), Valid: true}
		}

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO instances (id, tenant_id, instance_name, phone_number, status, last_connected_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, tenantID, name, phone, upd.Status, lastConnected, now, now,
		)
		if err != nil {
			return fmt.Errorf("inserting instance record: %w", err)
		}

		s.logger.Info("instance record created",
			"tenant_id", tenantID, "instance_id", id, "status", upd.Status)
		return nil
	}

	query := "UPDATE instances SET status = ?, updated_at = ?"
	args := []any{upd.Status, now}

	if upd.PhoneNumber != nil {
		query += ", phone_number = ?"
		args = append(args, *upd.PhoneNumber)
	}
	if upd.LastConnectedAt != nil {
		query += ", last_connected_at = ?"
		args = append(args, upd.LastConnectedAt.UTC())
	}
	query += " WHERE tenant_id = ?"
	args = append(args, tenantID)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating instance record: %w", err)
	}
	return nil
}

// FindInstanceByTenant returns the tenant's instance record.
func (s *SQLiteStore) FindInstanceByTenant(ctx context.Context, tenantID string) (*InstanceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, instance_name, phone_number, status, last_connected_at, created_at, updated_at
		FROM instances WHERE tenant_id = ?`, tenantID)

	rec, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying instance for tenant %s: %w", tenantID, err)
	}
	return rec, nil
}

// ListInstances returns up to limit records, newest first.
func (s *SQLiteStore) ListInstances(ctx context.Context, limit int) ([]*InstanceRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, instance_name, phone_number, status, last_connected_at, created_at, updated_at
		FROM instances ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	defer rows.Close()

	var records []*InstanceRecord
	for rows.Next() {
		rec, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning instance row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanInstance.
type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(sc scanner) (*InstanceRecord, error) {
	var rec InstanceRecord
	var phone sql.NullString
	var lastConnected sql.NullTime

	if err := sc.Scan(
		&rec.ID, &rec.TenantID, &rec.InstanceName, &phone,
		&rec.Status, &lastConnected, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if phone.Valid {
		rec.PhoneNumber = phone.String
	}
	if lastConnected.Valid {
		t := lastConnected.Time
		rec.LastConnectedAt = &t
	}
	return &rec, nil
}
