// Package ingress decouples message receipt from message processing.
//
// Connection event loops hand each inbound batch to the Router, which
// normalizes every message into a Job and enqueues it to the external
// processing queue. Nothing downstream of the queue runs in this process.
//
// The socket acknowledges receipt independently of queue availability, so
// an enqueue failure is logged and dropped rather than propagated: the
// alternative would be failing the socket read loop over a queue outage,
// which helps nobody.
package ingress
