// ABOUTME: Disconnect code taxonomy and the permanent-vs-transient classification.
// ABOUTME: Permanent closes remove the instance; everything else triggers bounded reconnection.

package wa

// DisconnectCode identifies why the network closed a connection.
type DisconnectCode int

const (
	CodeUnknown DisconnectCode = iota
	CodeLoggedOut
	CodeConnectionLost
	CodeConnectionClosed
	CodeConnectionReplaced
	CodeTimedOut
	CodeBadSession
	CodeRestartRequired
)

// String returns the snake_case name used in logs and durable records.
func (c DisconnectCode) String() string {
	switch c {
	case CodeLoggedOut:
		return "logged_out"
	case CodeConnectionLost:
		return "connection_lost"
	case CodeConnectionClosed:
		return "connection_closed"
	case CodeConnectionReplaced:
		return "connection_replaced"
	case CodeTimedOut:
		return "timed_out"
	case CodeBadSession:
		return "bad_session"
	case CodeRestartRequired:
		return "restart_required"
	default:
		return "unknown"
	}
}

// Permanent reports whether the close is unrecoverable for this instance.
// A logged-out or replaced session can never be resumed with the stored
// credentials; the caller must re-provision. Every other code, including
// unknown, is treated as transient and eligible for reconnection.
func (c DisconnectCode) Permanent() bool {
	switch c {
	case CodeLoggedOut, CodeConnectionReplaced:
		return true
	default:
		return false
	}
}
