// ABOUTME: Connection state enum for instance handles.
// ABOUTME: Removed and Failed are terminal; Connected resets the reconnect counter.

package registry

// State is the connection lifecycle state of an instance.
//
// Connecting → {PairingPending | QRPending} → Connected → Disconnected →
// {Reconnecting → Connecting | Removed}, with Failed reachable from any
// pre-Connected state.
type State string

const (
	StateConnecting     State = "connecting"
	StatePairingPending State = "pairing_pending"
	StateQRPending      State = "qr_pending"
	StateConnected      State = "connected"
	StateDisconnected   State = "disconnected"
	StateReconnecting   State = "reconnecting"
	StateRemoved        State = "removed"
	StateFailed         State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateRemoved || s == StateFailed
}
