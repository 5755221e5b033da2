// ABOUTME: TenantStore interface and data types for durable instance records
// ABOUTME: Defines InstanceRecord, StatusUpdate and the persistence contract

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// InstanceRecord is the durable record of a tenant's messaging instance.
// It outlives the in-memory handle: after a process restart it is how a
// previously assigned instance identifier is recovered.
type InstanceRecord struct {
	ID              string
	TenantID        string
	InstanceName    string
	PhoneNumber     string
	Status          string
	LastConnectedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusUpdate carries the fields touched by a status upsert. Nil pointer
// fields are left unchanged on an existing record.
type StatusUpdate struct {
	InstanceID      string
	InstanceName    string
	Status          string
	PhoneNumber     *string
	LastConnectedAt *time.Time
}

// TenantStore defines the interface for durable instance record persistence
type TenantStore interface {
	// UpsertInstanceStatus creates the tenant's instance record if missing,
	// otherwise updates its status fields.
	UpsertInstanceStatus(ctx context.Context, tenantID string, upd StatusUpdate) error

	// FindInstanceByTenant returns the tenant's instance record, or
	// ErrNotFound if the tenant has never connected an instance.
	FindInstanceByTenant(ctx context.Context, tenantID string) (*InstanceRecord, error)

	// ListInstances returns up to limit records, newest first.
	ListInstances(ctx context.Context, limit int) ([]*InstanceRecord, error)

	// Close releases any resources held by the store
	Close() error
}
