// ABOUTME: Store interface and data types for carterclient persistence
// ABOUTME: Defines Agent, Conversation, Message structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when creating an entity whose ID already exists
var ErrDuplicate = errors.New("already exists")

// Agent is a locally configured remote persona: a display name plus the opaque
// access key used to talk to it. At most one agent is selected at a time.
type Agent struct {
	ID         string
	Name       string
	Key        string
	IsSelected bool
	CreatedAt  time.Time
}

// Conversation is a persisted thread of turns between the user and one agent.
type Conversation struct {
	ID        string
	Title     string
	AgentID   string
	CreatedAt time.Time

	// Messages is populated by GetConversation, chronological order.
	Messages []*Message
	// LastMessage is populated by ListConversations: the newest agent-authored
	// message, used as a preview line. Nil when the conversation is empty.
	LastMessage *Message
}

// Message is one side of a turn. IsFromAgent defaults to true in the schema;
// only user-authored messages set it false explicitly.
type Message struct {
	ID             string
	ConversationID string
	Content        string
	IsFromAgent    bool
	CreatedAt      time.Time
}

// Store defines the interface for agent, conversation, and message persistence
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	UpdateAgent(ctx context.Context, agent *Agent) error
	DeleteAgent(ctx context.Context, id string) error
	ListAgents(ctx context.Context) ([]*Agent, error)

	// Selection: SetSelectedAgent marks one agent selected and clears all
	// others in the same transaction. GetSelectedAgent returns ErrNotFound
	// when no agent is selected.
	SetSelectedAgent(ctx context.Context, id string) (*Agent, error)
	GetSelectedAgent(ctx context.Context) (*Agent, error)

	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	ListConversations(ctx context.Context, agentID string) ([]*Conversation, error)

	// Messages. CreateMessages writes the batch in a single transaction:
	// either every message lands or none does.
	CreateMessages(ctx context.Context, messages []*Message) error

	Close() error
}
