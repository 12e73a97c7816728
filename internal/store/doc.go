// Package store provides SQLite-backed persistence for lexgate.
//
// # Entities
//
//   - Client / AdminUser: the two kinds of authenticated principals
//   - Process / ProcessConsultation: legal processes and raw provider payloads
//   - Document: metadata for files held in external blob storage
//   - Conversation / ChatMessage: the per-client chat thread and its messages
//
// # Invariants enforced here
//
// The conversations table carries a UNIQUE constraint on client_id, so at
// most one conversation can exist per client even when two opens race; the
// loser receives ErrDuplicateConversation and re-reads.
//
// Chat messages carry a database-assigned monotonic seq column used as the
// tiebreak when creation timestamps collide, giving ListMessages a total
// order. Each message also carries a unique idempotency key; a retried
// insert with the same key returns ErrDuplicateMessage instead of a second
// row.
//
// Use NewSQLiteStore for production and MockStore for tests that don't need
// a real database.
package store
