// Package store provides persistent storage for carterclient using SQLite.
//
// # Data Models
//
//   - Agent: a configured remote persona (name + access key); at most one is
//     selected at a time
//   - Conversation: a thread of turns between the user and one agent
//   - Message: one side of a turn; is_from_agent defaults to true
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Deleting an agent cascades to its conversations and their messages.
//
// # Atomicity
//
// CreateMessages writes its whole batch in one transaction. The turn
// orchestrator relies on this: a chat turn persists its user message and agent
// reply together or not at all, and a crash mid-write never leaves an orphaned
// half-turn.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicate: an entity with the same ID already exists
//
// All methods accept context.Context for cancellation support.
package store
