// ABOUTME: Sealed event types delivered by a Socket's event stream.
// ABOUTME: Connection updates are a closed variant type so state transitions are exhaustive.

package wa

import "time"

// Event is a sealed union of the three event classes a socket delivers:
// credential updates, connection updates, and inbound messages.
type Event interface {
	isEvent()
}

// CredentialsChanged signals that the SDK mutated the credential bundle and
// it must be persisted now via the SaveCredsFunc for this instance.
type CredentialsChanged struct{}

func (CredentialsChanged) isEvent() {}

// ConnectionChanged carries one connection-update payload.
type ConnectionChanged struct {
	Event ConnectionEvent
}

func (ConnectionChanged) isEvent() {}

// MessagesReceived carries a batch of inbound messages.
type MessagesReceived struct {
	Messages []Message
}

func (MessagesReceived) isEvent() {}

// ConnectionEvent is a sealed union of the connection-update payloads:
// a QR offer, a successful open, or a close with a disconnect code.
type ConnectionEvent interface {
	isConnectionEvent()
}

// QRCode is an authentication QR payload offered by the network. The raw
// string is what a linking device scans; rendering is the caller's concern.
type QRCode struct {
	Code string
}

func (QRCode) isConnectionEvent() {}

// Opened signals the connection is established and authenticated.
type Opened struct {
	SelfJID string
}

func (Opened) isConnectionEvent() {}

// Closed signals the connection dropped. Code classifies the cause; Err is
// the underlying error when the SDK supplied one.
type Closed struct {
	Code DisconnectCode
	Err  error
}

func (Closed) isConnectionEvent() {}

// MessageKind classifies inbound message content.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindVideo    MessageKind = "video"
	KindAudio    MessageKind = "audio"
	KindDocument MessageKind = "document"
	KindSticker  MessageKind = "sticker"
	KindLocation MessageKind = "location"
	KindContact  MessageKind = "contact"
	KindUnknown  MessageKind = "unknown"
)

// Message is one inbound message as surfaced by the SDK.
type Message struct {
	ID        string
	ChatJID   string // sender JID for direct chats
	PushName  string // sender's self-chosen display name, may be empty
	Timestamp time.Time
	FromMe    bool
	Kind      MessageKind
	Body      string // text body for KindText
	Caption   string // media caption, may be empty
}
