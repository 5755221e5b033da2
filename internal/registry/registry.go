// ABOUTME: In-memory registry of live messaging instances, keyed by tenant and instance.
// ABOUTME: Single source of truth for what is currently running; rejects duplicate handles.

package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/wagate/internal/wa"
)

// ErrAlreadyRunning indicates a live handle already exists for the key.
var ErrAlreadyRunning = errors.New("instance already running")

// ErrNotFound indicates no live handle exists for the key.
var ErrNotFound = errors.New("instance not found")

// Key identifies one tenant-scoped instance. It is the sole lookup key for
// the registry, session directories, and durable records.
type Key struct {
	TenantID   string
	InstanceID string
}

// String returns the canonical form used for session directory names and
// cache keys: "<tenant>_<instance>".
func (k Key) String() string {
	return k.TenantID + "_" + k.InstanceID
}

// AuthMethod selects how an unregistered instance authenticates.
type AuthMethod string

const (
	AuthPairingCode AuthMethod = "pairing_code"
	AuthQRCode      AuthMethod = "qr_code"
)

// Registry is the authoritative map of live instance handles. At most one
// handle exists per key; Register rejects duplicates rather than merging.
type Registry struct {
	mu        sync.RWMutex
	instances map[Key]*Handle
	keyLocks  map[Key]*sync.Mutex
	logger    *slog.Logger
}

// New creates an empty Registry. Pass nil logger for default.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		instances: make(map[Key]*Handle),
		keyLocks:  make(map[Key]*sync.Mutex),
		logger:    logger.With("component", "registry"),
	}
}

// Register adds a new handle for its key.
// Returns ErrAlreadyRunning if a handle for the key exists.
func (r *Registry) Register(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[h.Key]; exists {
		return ErrAlreadyRunning
	}

	r.instances[h.Key] = h
	r.logger.Info("instance registered",
		"tenant_id", h.Key.TenantID,
		"instance_id", h.Key.InstanceID,
		"auth_method", h.AuthMethod,
		"total_instances", len(r.instances),
	)
	return nil
}

// Get retrieves the handle for a key.
func (r *Registry) Get(key Key) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.instances[key]
	return h, ok
}

// Remove deletes the handle for a key, if present.
func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[key]; exists {
		delete(r.instances, key)
		r.logger.Info("instance removed",
			"tenant_id", key.TenantID,
			"instance_id", key.InstanceID,
			"total_instances", len(r.instances),
		)
	}
}

// ListByTenant returns the handles belonging to a tenant.
func (r *Registry) ListByTenant(tenantID string) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var handles []*Handle
	for key, h := range r.instances {
		if key.TenantID == tenantID {
			handles = append(handles, h)
		}
	}
	return handles
}

// List returns all live handles.
func (r *Registry) List() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]*Handle, 0, len(r.instances))
	for _, h := range r.instances {
		handles = append(handles, h)
	}
	return handles
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// LockKey acquires the per-key lifecycle lock and returns its release func.
// Lifecycle operations (initialize, disconnect, force-reconnect) for the same
// key must not interleave; operations on different keys proceed freely. The
// lock survives handle removal so a disconnect and a concurrent re-create
// still serialize.
func (r *Registry) LockKey(key Key) func() {
	r.mu.Lock()
	l, ok := r.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		r.keyLocks[key] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Handle is the in-memory state of one live instance. The socket reference
// is owned by the supervisor; all other fields are guarded by the handle's
// own mutex so health reads never race lifecycle writes.
type Handle struct {
	Key        Key
	AuthMethod AuthMethod

	mu                sync.RWMutex
	socket            wa.Socket
	status            State
	phoneNumber       string
	createdAt         time.Time
	lastActivityAt    time.Time
	reconnectAttempts int
	degraded          bool
}

// NewHandle creates a handle in StateConnecting.
func NewHandle(key Key, method AuthMethod, phoneNumber string, socket wa.Socket) *Handle {
	now := time.Now()
	return &Handle{
		Key:            key,
		AuthMethod:     method,
		socket:         socket,
		status:         StateConnecting,
		phoneNumber:    phoneNumber,
		createdAt:      now,
		lastActivityAt: now,
	}
}

// Socket returns the underlying socket reference.
func (h *Handle) Socket() wa.Socket {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.socket
}

// Status returns the current connection state.
func (h *Handle) Status() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// SetStatus transitions the handle to a new state. Entering StateConnected
// resets the reconnect counter, exactly once per transition.
func (h *Handle) SetStatus(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = s
	if s == StateConnected {
		h.reconnectAttempts = 0
	}
}

// PhoneNumber returns the phone number associated with the instance, if any.
func (h *Handle) PhoneNumber() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.phoneNumber
}

// SetPhoneNumber records the phone number learned from the network.
func (h *Handle) SetPhoneNumber(p string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.phoneNumber = p
}

// CreatedAt returns when the handle was created.
func (h *Handle) CreatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.createdAt
}

// LastActivityAt returns the time of the last observed activity.
func (h *Handle) LastActivityAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastActivityAt
}

// TouchActivity updates the last-activity timestamp to now.
func (h *Handle) TouchActivity() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivityAt = time.Now()
}

// ReconnectAttempts returns the current reconnect attempt count.
func (h *Handle) ReconnectAttempts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.reconnectAttempts
}

// SetReconnectAttempts overwrites the reconnect attempt count. Used when a
// replacement handle inherits the count from the one it supersedes.
func (h *Handle) SetReconnectAttempts(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reconnectAttempts = n
}

// Degraded reports whether the instance is running with unpersisted
// credential state.
func (h *Handle) Degraded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.degraded
}

// SetDegraded marks or clears the degraded flag.
func (h *Handle) SetDegraded(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degraded = v
}
