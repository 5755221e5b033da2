// ABOUTME: Outbound message delivery: text, media, and audio sends plus liveness probing.
// ABOUTME: SDK errors become typed failure results; they never cross the API boundary as panics.

package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/wagate/internal/registry"
	"github.com/2389/wagate/internal/wa"
)

// ErrNotConnected indicates the instance exists but is not in a connected
// state, or does not exist at all.
var ErrNotConnected = errors.New("instance not connected")

// SendResult is the outcome of one delivery attempt.
type SendResult struct {
	Success   bool
	MessageID string
	Timestamp int64
	Error     string
}

// SendText delivers a text message. The instance must be connected; if not,
// the socket is never touched and a failure result is returned.
func (s *Service) SendText(ctx context.Context, key registry.Key, to, text string) SendResult {
	return s.send(ctx, key, to, wa.TextPayload{Text: text})
}

// SendMedia delivers an image with an optional caption.
func (s *Service) SendMedia(ctx context.Context, key registry.Key, to string, data []byte, caption string) SendResult {
	return s.send(ctx, key, to, wa.ImagePayload{Data: data, Caption: caption})
}

// SendAudio delivers an audio message, rendered as a voice note.
func (s *Service) SendAudio(ctx context.Context, key registry.Key, to string, data []byte, mimeType string) SendResult {
	return s.send(ctx, key, to, wa.AudioPayload{Data: data, MIMEType: mimeType, PTT: true})
}

func (s *Service) send(ctx context.Context, key registry.Key, to string, payload wa.Payload) SendResult {
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	handle, ok := s.registry.Get(key)
	if !ok || handle.Status() != registry.StateConnected {
		return SendResult{Error: ErrNotConnected.Error()}
	}

	receipt, err := handle.Socket().SendMessage(ctx, wa.FormatJID(to), payload)
	if err != nil {
		logger.Error("message delivery failed", "to", to, "error", err)
		return SendResult{Error: fmt.Sprintf("delivery failed: %v", err)}
	}

	handle.TouchActivity()
	logger.Debug("message delivered", "to", to, "message_id", receipt.MessageID)
	return SendResult{
		Success:   true,
		MessageID: receipt.MessageID,
		Timestamp: receipt.Timestamp,
	}
}

// VerifyConnection probes end-to-end delivery by sending a test message to
// the instance's own number. Socket-level "connected" can lie after a silent
// network partition; a round-tripped self-message cannot.
func (s *Service) VerifyConnection(ctx context.Context, key registry.Key) (bool, error) {
	handle, ok := s.registry.Get(key)
	if !ok || handle.Status() != registry.StateConnected {
		return false, ErrNotConnected
	}

	self := handle.Socket().SelfJID()
	if self == "" {
		self = wa.FormatJID(handle.PhoneNumber())
	}
	if self == "" || self == "@s.whatsapp.net" {
		return false, errors.New("no self address known for verification")
	}

	_, err := handle.Socket().SendMessage(ctx, self, wa.TextPayload{Text: "connection check"})
	if err != nil {
		return false, fmt.Errorf("verification send failed: %w", err)
	}

	handle.TouchActivity()
	return true, nil
}

// GetProfilePicture returns the profile picture URL for a contact's phone
// number, or empty when the contact has none or hides it.
func (s *Service) GetProfilePicture(ctx context.Context, key registry.Key, phone string) (string, error) {
	handle, ok := s.registry.Get(key)
	if !ok || handle.Status() != registry.StateConnected {
		return "", ErrNotConnected
	}

	url, err := handle.Socket().FetchProfilePictureURL(ctx, wa.FormatJID(phone))
	if err != nil {
		return "", fmt.Errorf("profile picture fetch failed: %w", err)
	}
	return url, nil
}
