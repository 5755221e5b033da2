// ABOUTME: Read-only status and health aggregation over the registry and session store.
// ABOUTME: Pure reads with no side effects; safe to poll frequently.

package supervisor

import (
	"time"

	"github.com/2389/wagate/internal/registry"
)

// Health combines the live handle state with session storage facts for one
// instance. Running is false when no live handle exists; SessionExists can
// still be true then, meaning the instance could be re-initialized without
// re-pairing.
type Health struct {
	Running           bool
	Status            registry.State
	Connected         bool
	Degraded          bool
	SessionExists     bool
	PhoneNumber       string
	ReconnectAttempts int
	CreatedAt         time.Time
	LastActivityAt    time.Time
}

// GetStatus returns the current connection state for a key, or ErrNotFound.
func (s *Service) GetStatus(key registry.Key) (registry.State, error) {
	handle, ok := s.registry.Get(key)
	if !ok {
		return "", registry.ErrNotFound
	}
	return handle.Status(), nil
}

// IsConnected reports whether a live, connected handle exists for the key.
func (s *Service) IsConnected(key registry.Key) bool {
	handle, ok := s.registry.Get(key)
	return ok && handle.Status() == registry.StateConnected
}

// GetHealth aggregates registry state and session existence for a key. A
// degraded instance is connected but running on unpersisted credentials.
func (s *Service) GetHealth(key registry.Key) Health {
	h := Health{SessionExists: s.sessions.SessionExists(key)}

	handle, ok := s.registry.Get(key)
	if !ok {
		return h
	}

	h.Running = true
	h.Status = handle.Status()
	h.Connected = h.Status == registry.StateConnected
	h.Degraded = handle.Degraded()
	h.PhoneNumber = handle.PhoneNumber()
	h.ReconnectAttempts = handle.ReconnectAttempts()
	h.CreatedAt = handle.CreatedAt()
	h.LastActivityAt = handle.LastActivityAt()
	return h
}

// InstanceInfo is one row in a tenant's instance listing.
type InstanceInfo struct {
	Key            registry.Key
	Status         registry.State
	PhoneNumber    string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// ListInstances returns the live instances of a tenant.
func (s *Service) ListInstances(tenantID string) []InstanceInfo {
	handles := s.registry.ListByTenant(tenantID)
	infos := make([]InstanceInfo, 0, len(handles))
	for _, h := range handles {
		infos = append(infos, InstanceInfo{
			Key:            h.Key,
			Status:         h.Status(),
			PhoneNumber:    h.PhoneNumber(),
			CreatedAt:      h.CreatedAt(),
			LastActivityAt: h.LastActivityAt(),
		})
	}
	return infos
}
