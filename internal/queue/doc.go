// Package queue decouples message receipt from message processing.
//
// The orchestrator never processes inbound traffic inline: the ingress
// router serializes each message into a job and hands it to an Enqueuer.
// External worker processes consume jobs with Dequeue/Complete/Fail.
//
// SQLiteQueue is the durable implementation (WAL mode, attempt accounting,
// optional remove-on-complete). Delivery is at-least-once: a worker that
// crashes after Dequeue leaves the job active until an operator requeues it,
// and a Fail before max_attempts returns the job to pending. Consumers must
// tolerate duplicates.
//
// MemQueue captures enqueues in memory for tests.
package queue
