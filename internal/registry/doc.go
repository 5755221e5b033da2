// Package registry tracks the live messaging instances of every tenant.
//
// # Overview
//
// The Registry is the single authoritative map from an instance Key
// (tenant ID + instance ID) to its in-memory Handle. Exactly one handle may
// exist per key at any time: Register returns ErrAlreadyRunning for a
// duplicate rather than merging, so a second initialization attempt can
// never produce a second socket.
//
// # Handles
//
// A Handle carries the instance's connection state, auth method, phone
// number, activity timestamps, and reconnect counter. Handle fields are
// individually mutex-guarded so health queries can read them while the
// supervisor mutates state from its event loop. The socket reference is
// opaque here; only the supervisor drives it.
//
// # Per-key serialization
//
// LockKey hands out a mutex scoped to one key. The supervisor wraps
// lifecycle operations (initialize, disconnect, force-reconnect) in it so
// that, even on a parallel runtime, two operations on the same key never
// interleave past their read-current-handle step. Operations on different
// keys do not contend.
package registry
