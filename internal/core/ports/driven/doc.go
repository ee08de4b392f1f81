// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - UserStore, SessionStore, DocumentStore: persistence (SQLite or memory)
//   - PKBIndex, Scorer: per-user lexical index over uploaded documents
//   - SearchProvider: one external search source (web, Wikipedia, DuckDuckGo)
//   - Normaliser, NormaliserRegistry: text extraction from uploaded files
//   - PostProcessor: chunking of extracted text
//   - PasswordHasher, TokenSigner: credential primitives
//   - ConfigStore: application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, provider, or normaliser package
package driven
