// ABOUTME: In-memory fan-out broadcaster for real-time instance lifecycle events.
// ABOUTME: Fire-and-forget Emit with per-tenant subscriptions and non-blocking sends.

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Event names emitted by the connection supervisor.
const (
	EventQRGenerated          = "qr_generated"
	EventPairingCodeGenerated = "pairing_code_generated"
	EventConnected            = "connected"
	EventDisconnected         = "disconnected"
	EventReconnecting         = "reconnecting"
	EventFailed               = "failed"
)

// Event is one lifecycle notification. Payload contents vary by name:
// qr_generated carries the rendered QR data URL, pairing_code_generated the
// code, reconnecting the attempt schedule, disconnected the close reason.
type Event struct {
	Name       string         `json:"name"`
	TenantID   string         `json:"tenantId"`
	InstanceID string         `json:"instanceId"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Sink receives lifecycle events. Emit must never block the caller.
type Sink interface {
	Emit(event Event)
}

// Broadcaster provides in-memory pub/sub for lifecycle events. Subscribers
// register for a tenant and receive that tenant's events as they are
// emitted. Delivery is best-effort: events are dropped for subscribers whose
// channels are full, never queued against the emitter.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event // tenantID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan Event),
		logger:      logger.With("component", "notify"),
	}
}

// Subscribe registers a subscriber for a tenant's events. Returns the event
// channel and a subscription ID for later unsubscription. The subscription
// is automatically cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, tenantID string) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[tenantID]; !ok {
		b.subscribers[tenantID] = make(map[string]chan Event)
	}
	b.subscribers[tenantID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "tenant_id", tenantID, "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(tenantID, subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(tenantID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[tenantID]
	if !ok {
		return
	}
	if ch, ok := subs[subID]; ok {
		close(ch)
		delete(subs, subID)
	}
	if len(subs) == 0 {
		delete(b.subscribers, tenantID)
	}
}

// Emit delivers an event to every subscriber of its tenant. Fire-and-forget:
// a missing timestamp is stamped, full subscriber channels drop the event.
func (b *Broadcaster) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs, ok := b.subscribers[event.TenantID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy subscriber channels under read lock to avoid holding it during sends
	targets := make([]chan Event, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			// Subscriber channel full — drop event for this subscriber
			b.logger.Debug("dropped event for slow subscriber",
				"tenant_id", event.TenantID,
				"event", event.Name)
		}
	}
}

// SubscriberCount returns the number of subscribers for a tenant.
func (b *Broadcaster) SubscriberCount(tenantID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[tenantID])
}
