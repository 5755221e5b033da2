// Package wa wraps the external messaging-network SDK behind narrow
// capability interfaces so the connection supervisor can be tested without a
// live network.
//
// # Surface
//
// Two interfaces cover everything the orchestrator needs:
//
//   - Dialer: opens a Socket from loaded credentials
//   - Socket: event stream, pairing-code request, message send, logout
//
// The handshake and encryption of the underlying protocol are not
// reimplemented here; a production binary provides a Dialer backed by the
// real SDK, tests provide a fake.
//
// # Events
//
// Socket.Events() delivers a sealed Event union:
//
//   - CredentialsChanged: persist the credential bundle now
//   - ConnectionChanged: one of QRCode, Opened, Closed (also sealed)
//   - MessagesReceived: a batch of inbound messages
//
// Keeping the connection-update payload a closed variant type makes the
// supervisor's transition handling exhaustive: a new payload shape is a
// compile-time hole, not a silently ignored map key.
//
// # Disconnect classification
//
// DisconnectCode.Permanent reports whether a close can ever be recovered by
// reconnecting with the same credentials. Logged-out and replaced sessions
// are permanent; everything else, including unknown codes, is transient.
package wa
