// ABOUTME: Narrow capability interfaces over the external messaging-network SDK.
// ABOUTME: Defines Dialer/Socket plus the credential loader contract used by the session store.

package wa

import "context"

// Credentials is the SDK's credential bundle for one linked device. The
// contents beyond Registered/SelfJID are opaque to this module; the SDK
// serializes them itself via SaveCredsFunc.
type Credentials struct {
	// Registered reports whether this device is already linked with the
	// network. Unregistered credentials require pairing (code or QR).
	Registered bool

	// SelfJID is the network address of the linked device, empty until
	// registration completes.
	SelfJID string
}

// AuthState bundles the credentials loaded for one instance.
type AuthState struct {
	Creds *Credentials
}

// SaveCredsFunc persists the current credential state to the session
// directory it was loaded from. The SDK hands one back from AuthLoader.
type SaveCredsFunc func() error

// AuthLoader is the SDK's file-based credential loader: given a session
// directory it loads (or creates) the credential bundle and returns the
// save hook for subsequent credential-update events.
type AuthLoader func(dir string) (*AuthState, SaveCredsFunc, error)

// Dialer opens sockets against the messaging network.
type Dialer interface {
	Dial(ctx context.Context, auth *AuthState) (Socket, error)
}

// Socket is one live connection to the messaging network. It is exclusively
// owned by the supervisor entry for its instance key; no other component
// touches it directly.
type Socket interface {
	// Events returns the socket's event stream. The channel is closed when
	// the socket is closed; a Closed connection event is delivered first.
	Events() <-chan Event

	// RequestPairingCode asks the network for a short pairing code for the
	// given phone number (digits only).
	RequestPairingCode(ctx context.Context, phone string) (string, error)

	// SendMessage delivers a payload to the given JID.
	SendMessage(ctx context.Context, jid string, payload Payload) (*SendReceipt, error)

	// FetchProfilePictureURL returns the profile picture URL for a JID, or
	// empty if the contact has none.
	FetchProfilePictureURL(ctx context.Context, jid string) (string, error)

	// SelfJID returns the JID of the linked device, empty until connected.
	SelfJID() string

	// Logout invalidates the session with the network.
	Logout(ctx context.Context) error

	// Close tears the socket down without logging out.
	Close() error
}

// SendReceipt is the network's acknowledgement of a sent message.
type SendReceipt struct {
	MessageID string
	Timestamp int64
}
