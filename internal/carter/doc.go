// Package carter is the protocol adapter for the Carter conversational API.
//
// # Overview
//
// The Carter API is an HTTP JSON interface for holding multi-turn
// conversations with a remotely hosted agent persona. Every operation POSTs a
// small envelope (key, user_id, text, speak) and decodes a JSON reply. Three
// endpoints exist:
//
//   - api/chat: one conversational turn
//   - api/opener: an agent-initiated conversation-starting message
//   - api/personalise: a tone/persona-shaping turn
//
// Chat and opener replies may legitimately carry no output; personalise
// replies must. The asymmetry is part of the remote contract.
//
// # Plugin directory
//
// Agents expose capabilities ("plugins") only through a text convention on the
// chat channel: "/plugin list" returns a header line plus one "<id> - <name>"
// line per plugin, and "/plugin info <id>" returns a small line-positional
// block with the id, display name, and Key: Value metadata. PluginList and
// PluginInfo decode that free-text protocol into Plugin records. The grammar
// is deliberately strict: any deviation is a DecodeError, never a guess, and a
// listing either resolves completely or fails as a whole.
//
// # Error handling
//
// Transport failures (connection, non-2xx status, undecodable body) surface as
// wrapped errors from the operation that issued them. ErrNoReply marks the
// legitimate-absence condition. DecodeError marks a plugin reply that violates
// the grammar. The package performs no retries; retry policy belongs to the
// caller.
package carter
