// ABOUTME: In-memory TenantStore for unit tests
// ABOUTME: Thread-safe map-backed implementation with call counters

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory TenantStore implementation for tests.
type MockStore struct {
	mu      sync.Mutex
	records map[string]*InstanceRecord // tenantID -> record

	// UpsertCalls counts UpsertInstanceStatus invocations.
	UpsertCalls int

	// FailUpserts makes UpsertInstanceStatus return this error when set.
	FailUpserts error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{records: make(map[string]*InstanceRecord)}
}

// UpsertInstanceStatus creates or updates the tenant's record in memory.
func (m *MockStore) UpsertInstanceStatus(ctx context.Context, tenantID string, upd StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertCalls++
	if m.FailUpserts != nil {
		return m.FailUpserts
	}

	now := time.Now()
	rec, ok := m.records[tenantID]
	if !ok {
		id := upd.InstanceID
		if id == "" {
			id = uuid.New().String()
		}
		rec = &InstanceRecord{
			ID:           id,
			TenantID:     tenantID,
			InstanceName: upd.InstanceName,
			CreatedAt:    now,
		}
		m.records[tenantID] = rec
	}

	rec.Status = upd.Status
	rec.UpdatedAt = now
	if upd.PhoneNumber != nil {
		rec.PhoneNumber = *upd.PhoneNumber
	}
	if upd.LastConnectedAt != nil {
		t := *upd.LastConnectedAt
		rec.LastConnectedAt = &t
	}
	return nil
}

// Upserts returns the upsert call count.
func (m *MockStore) Upserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.UpsertCalls
}

// FindInstanceByTenant returns the tenant's record or ErrNotFound.
func (m *MockStore) FindInstanceByTenant(ctx context.Context, tenantID string) (*InstanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListInstances returns all records, newest first.
func (m *MockStore) ListInstances(ctx context.Context, limit int) ([]*InstanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]*InstanceRecord, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Close is a no-op.
func (m *MockStore) Close() error { return nil }
