// ABOUTME: Inbound message routing: normalize SDK messages and hand them to the job queue.
// ABOUTME: Receipt is decoupled from processing; enqueue failures never propagate to the socket.

package ingress

import (
	"context"
	"log/slog"

	"github.com/2389/wagate/internal/queue"
	"github.com/2389/wagate/internal/registry"
	"github.com/2389/wagate/internal/wa"
)

// jobName is the queue job consumed by the external message processor.
const jobName = "process-message"

// enqueueOpts matches what the downstream worker pool expects: bounded
// retries, and completed jobs dropped rather than retained.
var enqueueOpts = queue.Options{Attempts: 3, RemoveOnComplete: true}

// Job is the normalized payload enqueued for each inbound message.
type Job struct {
	TenantID    string `json:"tenantId"`
	InstanceID  string `json:"instanceId"`
	From        string `json:"from"`
	PhoneNumber string `json:"phoneNumber"`
	Content     string `json:"content"`
	MessageID   string `json:"messageId"`
	Timestamp   int64  `json:"timestamp"`
	MessageType string `json:"messageType"`
	PushName    string `json:"pushName,omitempty"`
}

// Router receives inbound-message batches from connection event loops,
// normalizes each message, and enqueues it for asynchronous processing. No
// business logic runs inline: the router's only side effects are the
// enqueue, a log line, and an activity timestamp on the instance handle.
type Router struct {
	queue  queue.Enqueuer
	logger *slog.Logger
}

// NewRouter creates a Router over the given queue.
func NewRouter(q queue.Enqueuer, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		queue:  q,
		logger: logger.With("component", "ingress"),
	}
}

// HandleMessages processes one inbound batch for an instance. Own outgoing
// messages and messages with no derivable content are skipped. Enqueue
// failures are logged and swallowed: the socket has already acknowledged
// receipt, so queue unavailability must not surface as a socket error.
func (r *Router) HandleMessages(ctx context.Context, key registry.Key, handle *registry.Handle, msgs []wa.Message) {
	logger := r.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	for _, msg := range msgs {
		if msg.FromMe {
			continue
		}

		content := deriveContent(msg)
		if content == "" {
			logger.Debug("skipping message with no derivable content",
				"message_id", msg.ID, "kind", string(msg.Kind))
			continue
		}

		job := Job{
			TenantID:    key.TenantID,
			InstanceID:  key.InstanceID,
			From:        msg.ChatJID,
			PhoneNumber: wa.PhoneFromJID(msg.ChatJID),
			Content:     content,
			MessageID:   msg.ID,
			Timestamp:   msg.Timestamp.Unix(),
			MessageType: string(msg.Kind),
			PushName:    msg.PushName,
		}

		if err := r.queue.Enqueue(ctx, jobName, job, enqueueOpts); err != nil {
			logger.Error("failed to enqueue inbound message",
				"message_id", msg.ID,
				"from", msg.ChatJID,
				"error", err)
			continue
		}

		logger.Info("inbound message enqueued",
			"message_id", msg.ID,
			"from", msg.ChatJID,
			"kind", string(msg.Kind))
	}

	if handle != nil {
		handle.TouchActivity()
	}
}

// deriveContent extracts the textual content of a message. Media without a
// caption gets a bracketed placeholder so downstream processors always see
// something; unknown kinds with no text yield empty and are skipped.
func deriveContent(msg wa.Message) string {
	switch msg.Kind {
	case wa.KindText:
		return msg.Body
	case wa.KindImage:
		return placeholder("[Image]", msg.Caption)
	case wa.KindVideo:
		return placeholder("[Video]", msg.Caption)
	case wa.KindAudio:
		return "[Audio]"
	case wa.KindDocument:
		return placeholder("[Document]", msg.Caption)
	case wa.KindSticker:
		return "[Sticker]"
	case wa.KindLocation:
		return "[Location]"
	case wa.KindContact:
		return "[Contact]"
	default:
		if msg.Body != "" {
			return msg.Body
		}
		return ""
	}
}

func placeholder(tag, caption string) string {
	if caption != "" {
		return tag + " " + caption
	}
	return tag
}
