// Package supervisor owns the lifecycle of every messaging instance in the
// process: initialization, authentication negotiation, the connection state
// machine, reconnection, and outbound sends.
//
// Each live socket gets exactly one event-loop goroutine, which applies
// credential saves in arrival order, forwards inbound messages to the
// ingress router, and drives state transitions on connection updates.
// Lifecycle operations for one key (initialize, disconnect, force-reconnect)
// serialize on the registry's per-key lock; operations on different keys
// proceed concurrently.
//
// Authentication has two mutually exclusive paths. Pairing-code auth
// resolves synchronously against the SDK. QR auth waits up to a bounded
// timeout for the network's first QR offer; whichever of QR-arrival and
// timeout fires first wins, and the other can never produce a second
// resolution.
//
// Closes are classified by their disconnect code. A permanent close (logout,
// session replaced) removes the instance with no reconnection — stored
// credentials cannot resume it. Any other close schedules bounded
// reconnection under an exponential backoff policy; entering Connected
// resets the attempt counter.
package supervisor
