// Package notify fans instance lifecycle events out to real-time listeners.
//
// The supervisor emits qr_generated, pairing_code_generated, connected,
// disconnected, reconnecting, and failed events through the Sink interface.
// Broadcaster is the in-process implementation: per-tenant subscriptions,
// non-blocking delivery, slow subscribers drop rather than back-pressure the
// connection state machine. An outer transport (websocket hub, SSE) consumes
// the subscription channel; none lives in this module.
package notify
