// ABOUTME: Tests for the SQLite tenant store
// ABOUTME: Uses in-memory databases to exercise upsert and lookup semantics

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertCreatesRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	phone := "5511999998888"
	now := time.Now()
	err := s.UpsertInstanceStatus(ctx, "org-1", StatusUpdate{
		InstanceID:      "inst-1",
		InstanceName:    "main line",
		Status:          "connected",
		PhoneNumber:     &phone,
		LastConnectedAt: &now,
	})
	require.NoError(t, err)

	rec, err := s.FindInstanceByTenant(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", rec.ID)
	assert.Equal(t, "org-1", rec.TenantID)
	assert.Equal(t, "main line", rec.InstanceName)
	assert.Equal(t, phone, rec.PhoneNumber)
	assert.Equal(t, "connected", rec.Status)
	require.NotNil(t, rec.LastConnectedAt)
	assert.WithinDuration(t, now, *rec.LastConnectedAt, 2*time.Second)
}

func TestUpsertUpdatesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertInstanceStatus(ctx, "org-1", StatusUpdate{
		InstanceID: "inst-1",
		Status:     "connected",
	}))

	// Status-only update; phone untouched, same record.
	require.NoError(t, s.UpsertInstanceStatus(ctx, "org-1", StatusUpdate{
		Status: "disconnected",
	}))

	rec, err := s.FindInstanceByTenant(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", rec.ID)
	assert.Equal(t, "disconnected", rec.Status)
}

func TestUpsertGeneratesIDAndName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertInstanceStatus(ctx, "org-1", StatusUpdate{Status: "connecting"}))

	rec, err := s.FindInstanceByTenant(ctx, "org-1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.NotEmpty(t, rec.InstanceName)
}

func TestFindInstanceNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FindInstanceByTenant(context.Background(), "org-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListInstances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, tenant := range []string{"org-1", "org-2", "org-3"} {
		require.NoError(t, s.UpsertInstanceStatus(ctx, tenant, StatusUpdate{Status: "connected"}))
	}

	records, err := s.ListInstances(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	limited, err := s.ListInstances(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMockStoreMatchesInterface(t *testing.T) {
	var ts TenantStore = NewMockStore()
	ctx := context.Background()

	require.NoError(t, ts.UpsertInstanceStatus(ctx, "org-1", StatusUpdate{Status: "connected"}))

	rec, err := ts.FindInstanceByTenant(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "connected", rec.Status)

	_, err = ts.FindInstanceByTenant(ctx, "org-2")
	assert.ErrorIs(t, err, ErrNotFound)
}
