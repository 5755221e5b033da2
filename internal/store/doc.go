// Package store provides durable tenant instance records using SQLite.
//
// # Records
//
// One InstanceRecord exists per tenant: the identifier of the messaging
// instance the tenant paired, its phone number, current status, and last
// connection time. The record is how a previously assigned instance is
// recovered after a process restart — the in-memory registry is rebuilt,
// the durable record survives.
//
// # SQLite configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite and
// NewMockStore() for unit tests.
package store
