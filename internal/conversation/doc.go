// Package conversation orchestrates chat turns against the local store.
//
// A turn is one user input paired with one agent reply. The service calls the
// remote agent first and only then writes both halves of the turn as a single
// transactional batch, so the store never holds a user message without its
// reply. An exchange the agent answered with no output persists nothing.
//
// Openers are the agent-initiated counterpart: one agent-side message, no user
// half.
//
// The service deliberately does not retry, deduplicate, or compensate the
// remote call when the local write fails afterward; callers own any such
// policy.
package conversation
