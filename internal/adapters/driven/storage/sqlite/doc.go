// Package sqlite provides a SQLite-based implementation of the Nexus stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. One database connection pool backs three stores:
//
//   - UserStore: accounts and the per-user storage counter
//   - SessionStore: issued login sessions
//   - DocumentStore: uploaded documents, their original bytes, and usage accounting
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory.
//
// # Quota accounting
//
// Saving a document inserts it and increments the owner's counter in one
// transaction. The increment only applies while the new total stays within
// the quota passed by the caller, so the stored counter can never exceed it
// even if the in-process reservation was bypassed.
//
// # Data Location
//
// By default, the database is stored at ~/.nexus/data/nexus.db
package sqlite
